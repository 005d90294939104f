package scenario

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simgrid/simgrid-sub014/sim"
	"github.com/simgrid/simgrid-sub014/sim/engine"
	"github.com/simgrid/simgrid-sub014/sim/resource"
	"github.com/simgrid/simgrid-sub014/sim/trace"
)

func generate(seed int64, n int) *Scenario {
	return Generate(sim.NewPartitionedRNG(sim.NewSimulationKey(seed)), n)
}

func TestGenerate_SameSeed_SameScenario(t *testing.T) {
	assert.Empty(t, cmp.Diff(generate(11, 30), generate(11, 30)))
}

func TestGenerate_DifferentSeeds_Differ(t *testing.T) {
	assert.NotEmpty(t, cmp.Diff(generate(1, 30), generate(2, 30)))
}

func TestGenerate_IsValid(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		s := generate(seed, 25)
		require.NoError(t, s.Validate(), "seed %d", seed)
		assert.Len(t, s.Actions, 25)
		assert.Len(t, s.Constraints, 8)
		for _, a := range s.Actions {
			assert.NotEmpty(t, a.Uses)
			assert.Greater(t, a.Cost, 0.0)
		}
	}
}

func TestGenerate_CoversTimingAndConcurrencyFeatures(t *testing.T) {
	s := generate(5, 200)

	var limited, deadlines, latencies, setMax int
	for _, c := range s.Constraints {
		if c.ConcurrencyLimit != nil {
			limited++
			assert.GreaterOrEqual(t, *c.ConcurrencyLimit, 1)
		}
	}
	for _, a := range s.Actions {
		if a.MaxDuration != nil {
			deadlines++
			assert.GreaterOrEqual(t, *a.MaxDuration, 1.0)
		}
		if a.Latency > 0 {
			latencies++
		}
	}
	for _, ev := range s.Events {
		if ev.Op == OpSetMaxDuration {
			setMax++
		}
	}
	assert.Positive(t, limited)
	assert.Positive(t, deadlines)
	assert.Positive(t, latencies)
	assert.Positive(t, setMax)
}

func TestGenerate_ZeroActions_EmptyScenario(t *testing.T) {
	s := generate(3, 0)
	assert.Empty(t, s.Actions)
	assert.Empty(t, s.Constraints)
}

func runScenario(t *testing.T, s *Scenario, update string) *trace.SimulationTrace {
	t.Helper()
	cfg := s.Kernel
	cfg.Update = update
	cfg.CheckInvariants = true
	copied := *s
	copied.Kernel = cfg
	m := resource.NewModel(cfg)
	inst, err := Build(&copied, m)
	require.NoError(t, err)
	e := engine.New(m)
	inst.Schedule(e)
	return e.Run(engine.NoHorizon)
}

func TestGeneratedScenarios_LazyAndFullAgree(t *testing.T) {
	for _, solver := range []string{sim.SolverMaxMin, sim.SolverFairBottleneck, sim.SolverBMF} {
		for seed := int64(1); seed <= 8; seed++ {
			t.Run(fmt.Sprintf("%s/seed=%d", solver, seed), func(t *testing.T) {
				// GIVEN one random scenario
				s := generate(seed, 24)
				s.Kernel.Solver = solver

				// WHEN run under each update discipline
				full := runScenario(t, s, sim.UpdateFull)
				lazy := runScenario(t, s, sim.UpdateLazy)

				// THEN the (action, finish time) pairs agree
				require.Equal(t, full.Len(), lazy.Len())
				assert.Empty(t, cmp.Diff(full.ByAction(), lazy.ByAction(), cmpopts.EquateApprox(1e-7, 1e-9)))
			})
		}
	}
}
