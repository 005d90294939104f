package lmm

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simgrid/simgrid-sub014/sim"
	"github.com/simgrid/simgrid-sub014/sim/internal/testutil"
)

// assertCapacity checks every constraint and bounded variable after a solve.
func assertCapacity(t *testing.T, rs *randomSystem) {
	t.Helper()
	eps := rs.s.Config().Precision.WorkAmount
	for _, c := range rs.cnsts {
		testutil.AssertAtMost(t, c.String(), c.DynamicBound(), c.Usage(), eps)
	}
	for _, v := range rs.vars {
		if v.Bound() > 0 {
			testutil.AssertAtMost(t, v.String(), v.Bound(), v.Value(), eps)
		}
		assert.GreaterOrEqual(t, v.Value(), 0.0, v.String())
	}
}

func TestSolvers_RandomSystems_NeverExceedCapacity(t *testing.T) {
	for _, solver := range []string{sim.SolverMaxMin, sim.SolverFairBottleneck, sim.SolverBMF} {
		for seed := int64(1); seed <= 5; seed++ {
			t.Run(fmt.Sprintf("%s/seed=%d", solver, seed), func(t *testing.T) {
				cfg := sim.DefaultKernelConfig()
				cfg.Solver = solver
				cfg.CheckInvariants = true
				rs := buildRandomSystem(cfg, seed, 8, 30)

				require.NotPanics(t, rs.s.Solve)

				assertCapacity(t, rs)
			})
		}
	}
}

func TestMaxMin_RandomSystems_SomeConstraintSaturatesPerVariable(t *testing.T) {
	// every unbounded variable is limited by at least one saturated constraint
	cfg := sim.DefaultKernelConfig()
	rs := buildRandomSystem(cfg, 42, 6, 20)
	rs.s.Solve()

	eps := cfg.Precision.WorkAmount
	for _, v := range rs.vars {
		if !v.IsEnabled() {
			continue
		}
		if v.Bound() > 0 && v.Value() >= v.Bound()*(1-eps) {
			continue
		}
		saturated := false
		for i := range v.NumberOfConstraints() {
			c := v.Constraint(i)
			if c.Usage() >= c.DynamicBound()*(1-2*eps) {
				saturated = true
			}
		}
		assert.True(t, saturated, "%v has value %g but no saturated constraint", v, v.Value())
	}
}

// mutate applies the same random change to both systems and returns its description.
func mutate(step int, pick func(n int) int, a, b *randomSystem) string {
	switch pick(4) {
	case 0:
		i := pick(len(a.cnsts))
		bound := 1 + float64(pick(50))
		a.s.UpdateConstraintBound(a.cnsts[i], bound)
		b.s.UpdateConstraintBound(b.cnsts[i], bound)
		return fmt.Sprintf("constraint %d bound %g", i, bound)
	case 1:
		j := pick(len(a.vars))
		bound := float64(pick(10))
		a.s.UpdateVariableBound(a.vars[j], bound)
		b.s.UpdateVariableBound(b.vars[j], bound)
		return fmt.Sprintf("variable %d bound %g", j, bound)
	case 2:
		j := pick(len(a.vars))
		penalty := float64(pick(3))
		a.s.UpdateVariablePenalty(a.vars[j], penalty)
		b.s.UpdateVariablePenalty(b.vars[j], penalty)
		return fmt.Sprintf("variable %d penalty %g", j, penalty)
	default:
		j := pick(len(a.vars))
		seed := int64(1000 + step)
		a.s.VariableFree(a.vars[j])
		b.s.VariableFree(b.vars[j])
		a.vars[j] = a.newVariable(seed, j)
		b.vars[j] = b.newVariable(seed, j)
		return fmt.Sprintf("variable %d replaced", j)
	}
}

func TestSolvers_SelectiveUpdate_MatchesFullSolve(t *testing.T) {
	for _, solver := range []string{sim.SolverMaxMin, sim.SolverFairBottleneck, sim.SolverBMF} {
		t.Run(solver, func(t *testing.T) {
			// GIVEN the same random system solved fully and selectively
			full := sim.DefaultKernelConfig()
			full.Solver = solver
			full.CheckInvariants = true
			selective := full
			selective.SelectiveUpdate = true
			a := buildRandomSystem(full, 7, 10, 25)
			b := buildRandomSystem(selective, 7, 10, 25)
			picker := sim.NewPartitionedRNG(sim.NewSimulationKey(7)).ForSubsystem(sim.SubsystemEvents)

			// WHEN both go through the same sequence of changes, sometimes two between solves
			for step := range 40 {
				what := mutate(step, picker.Intn, a, b)
				if picker.Intn(2) == 0 {
					what += ", " + mutate(1000+step, picker.Intn, a, b)
				}
				a.s.Solve()
				b.s.Solve()

				// THEN every variable has the same value
				for j := range a.vars {
					assertClose(t, fmt.Sprintf("step %d (%s): variable %d", step, what, j), a.vars[j].Value(), b.vars[j].Value())
				}
			}
		})
	}
}
