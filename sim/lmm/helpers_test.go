package lmm

import (
	"math"
	"testing"

	"github.com/simgrid/simgrid-sub014/sim"
)

const tol = 1e-9

// newTestSystem builds a System with invariant checks on.
func newTestSystem(t *testing.T, solver string, selective bool) *System {
	t.Helper()
	cfg := sim.DefaultKernelConfig()
	cfg.Solver = solver
	cfg.SelectiveUpdate = selective
	cfg.CheckInvariants = true
	return NewSystem(cfg)
}

func assertClose(t *testing.T, name string, want, got float64) {
	t.Helper()
	if math.Abs(want-got) > 1e-6*math.Max(1, math.Abs(want)) {
		t.Errorf("%s: got %v, want %v", name, got, want)
	}
}

// randomSystem is a randomly shaped system plus the handles needed to mutate it.
type randomSystem struct {
	s     *System
	cnsts []*Constraint
	vars  []*Variable
}

func buildRandomSystem(cfg sim.KernelConfig, seed int64, nCnsts, nVars int) *randomSystem {
	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(seed))
	cr := rng.ForSubsystem(sim.SubsystemConstraints)
	ar := rng.ForSubsystem(sim.SubsystemActions)

	rs := &randomSystem{s: NewSystem(cfg)}
	for i := range nCnsts {
		c := rs.s.ConstraintNew(i, 1+cr.Float64()*99)
		if cr.Intn(5) == 0 {
			c.SetSharingPolicy(Fatpipe, nil)
		}
		if cr.Intn(4) == 0 {
			rs.s.SetConcurrencyLimit(c, 2+cr.Intn(3))
		}
		rs.cnsts = append(rs.cnsts, c)
	}
	for j := range nVars {
		rs.vars = append(rs.vars, rs.newVariable(ar.Int63(), j))
	}
	return rs
}

// newVariable adds a variable whose shape is fully determined by seed.
func (rs *randomSystem) newVariable(seed int64, id int) *Variable {
	r := sim.NewPartitionedRNG(sim.NewSimulationKey(seed)).ForSubsystem(sim.SubsystemActions)
	k := 1 + r.Intn(min(3, len(rs.cnsts)))
	bound := -1.0
	if r.Intn(3) == 0 {
		bound = 1 + r.Float64()*20
	}
	v := rs.s.VariableNew(id, float64(1+r.Intn(3)), bound, k)
	for _, ci := range r.Perm(len(rs.cnsts))[:k] {
		rs.s.Expand(rs.cnsts[ci], v, 0.5+r.Float64())
	}
	return v
}
