package lmm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/simgrid/simgrid-sub014/sim"
	"github.com/simgrid/simgrid-sub014/sim/internal/testutil"
)

func TestMaxMin_TwoEqualVariables_SplitEvenly(t *testing.T) {
	s := newTestSystem(t, sim.SolverMaxMin, false)
	c := s.ConstraintNew("link", 10)
	a, b := s.VariableNew("a", 1, -1, 1), s.VariableNew("b", 1, -1, 1)
	s.Expand(c, a, 1)
	s.Expand(c, b, 1)

	s.Solve()

	testutil.AssertFloat64Equal(t, "a", 5, a.Value(), tol)
	testutil.AssertFloat64Equal(t, "b", 5, b.Value(), tol)
	testutil.AssertFloat64Equal(t, "usage", 10, c.Usage(), tol)
}

func TestMaxMin_Penalty_DividesShare(t *testing.T) {
	// GIVEN a penalty 2 variable sharing 9 units with a penalty 1 variable
	s := newTestSystem(t, sim.SolverMaxMin, false)
	c := s.ConstraintNew("link", 9)
	light, heavy := s.VariableNew("light", 1, -1, 1), s.VariableNew("heavy", 2, -1, 1)
	s.Expand(c, light, 1)
	s.Expand(c, heavy, 1)

	s.Solve()

	// THEN the penalized one gets half the rate of the other
	testutil.AssertFloat64Equal(t, "light", 6, light.Value(), tol)
	testutil.AssertFloat64Equal(t, "heavy", 3, heavy.Value(), tol)
}

func TestMaxMin_Bound_ReleasesCapacityToOthers(t *testing.T) {
	s := newTestSystem(t, sim.SolverMaxMin, false)
	c := s.ConstraintNew("link", 10)
	bounded, free := s.VariableNew("bounded", 1, 2, 1), s.VariableNew("free", 1, -1, 1)
	s.Expand(c, bounded, 1)
	s.Expand(c, free, 1)

	s.Solve()

	testutil.AssertFloat64Equal(t, "bounded", 2, bounded.Value(), tol)
	testutil.AssertFloat64Equal(t, "free", 8, free.Value(), tol)
}

func TestMaxMin_LoneBoundedVariable_StopsAtBound(t *testing.T) {
	s := newTestSystem(t, sim.SolverMaxMin, false)
	c := s.ConstraintNew("link", 10)
	v := s.VariableNew("v", 1, 3, 1)
	s.Expand(c, v, 1)

	s.Solve()

	testutil.AssertFloat64Equal(t, "v", 3, v.Value(), tol)
	testutil.AssertFloat64Equal(t, "usage", 3, c.Usage(), tol)
}

func TestMaxMin_Weights_EqualRatesWeightedConsumption(t *testing.T) {
	s := newTestSystem(t, sim.SolverMaxMin, false)
	c := s.ConstraintNew("link", 9)
	double, single := s.VariableNew("double", 1, -1, 1), s.VariableNew("single", 1, -1, 1)
	s.Expand(c, double, 2)
	s.Expand(c, single, 1)

	s.Solve()

	testutil.AssertFloat64Equal(t, "double", 3, double.Value(), tol)
	testutil.AssertFloat64Equal(t, "single", 3, single.Value(), tol)
	testutil.AssertFloat64Equal(t, "usage", 9, c.Usage(), tol)
}

func TestMaxMin_ThreeLinksOneFlowAcross_SharesBottlenecks(t *testing.T) {
	// GIVEN links l1, L2, l3 of capacity 1, 10, 1, a flow crossing all three
	// and one flow on each link alone
	s := newTestSystem(t, sim.SolverMaxMin, false)
	l1, L2, l3 := s.ConstraintNew("l1", 1), s.ConstraintNew("L2", 10), s.ConstraintNew("l3", 1)
	across := s.VariableNew("across", 1, -1, 3)
	for _, c := range []*Constraint{l1, L2, l3} {
		s.Expand(c, across, 1)
	}
	on1, on2, on3 := s.VariableNew("on1", 1, -1, 1), s.VariableNew("on2", 1, -1, 1), s.VariableNew("on3", 1, -1, 1)
	s.Expand(l1, on1, 1)
	s.Expand(L2, on2, 1)
	s.Expand(l3, on3, 1)

	// WHEN solved
	s.Solve()

	// THEN the crossing flow gets half of the small links and the others take what remains
	testutil.AssertFloat64Equal(t, "across", 0.5, across.Value(), tol)
	testutil.AssertFloat64Equal(t, "on1", 0.5, on1.Value(), tol)
	testutil.AssertFloat64Equal(t, "on2", 9.5, on2.Value(), tol)
	testutil.AssertFloat64Equal(t, "on3", 0.5, on3.Value(), tol)
}

func TestMaxMin_Fatpipe_EveryUserGetsFullCapacity(t *testing.T) {
	s := newTestSystem(t, sim.SolverMaxMin, false)
	c := s.ConstraintNew("backbone", 10)
	c.SetSharingPolicy(Fatpipe, nil)
	a, b := s.VariableNew("a", 1, -1, 1), s.VariableNew("b", 1, -1, 1)
	s.Expand(c, a, 1)
	s.Expand(c, b, 1)

	s.Solve()

	testutil.AssertFloat64Equal(t, "a", 10, a.Value(), tol)
	testutil.AssertFloat64Equal(t, "b", 10, b.Value(), tol)
	testutil.AssertFloat64Equal(t, "usage", 10, c.Usage(), tol)
}

func TestMaxMin_Fatpipe_SharedDownstreamLink(t *testing.T) {
	// GIVEN a fatpipe of 10 followed by a shared link of 4 used by one of the flows
	s := newTestSystem(t, sim.SolverMaxMin, false)
	pipe := s.ConstraintNew("pipe", 10)
	pipe.SetSharingPolicy(Fatpipe, nil)
	link := s.ConstraintNew("link", 4)
	a, b := s.VariableNew("a", 1, -1, 2), s.VariableNew("b", 1, -1, 1)
	s.Expand(pipe, a, 1)
	s.Expand(link, a, 1)
	s.Expand(pipe, b, 1)

	s.Solve()

	testutil.AssertFloat64Equal(t, "a", 4, a.Value(), tol)
	testutil.AssertFloat64Equal(t, "b", 10, b.Value(), tol)
}

func TestMaxMin_Nonlinear_BoundShrinksWithConcurrency(t *testing.T) {
	// GIVEN a constraint losing half its capacity when shared
	s := newTestSystem(t, sim.SolverMaxMin, false)
	c := s.ConstraintNew("disk", 10)
	c.SetSharingPolicy(Nonlinear, func(bound float64, n int) float64 {
		if n > 1 {
			return bound / 2
		}
		return bound
	})
	a := s.VariableNew("a", 1, -1, 1)
	s.Expand(c, a, 1)
	s.Solve()
	testutil.AssertFloat64Equal(t, "alone", 10, a.Value(), tol)

	// WHEN a second user arrives
	b := s.VariableNew("b", 1, -1, 1)
	s.Expand(c, b, 1)
	s.Solve()

	// THEN both share the reduced capacity
	testutil.AssertFloat64Equal(t, "a", 2.5, a.Value(), tol)
	testutil.AssertFloat64Equal(t, "b", 2.5, b.Value(), tol)
	assert.Equal(t, 5.0, c.DynamicBound())
}

func TestMaxMin_ZeroCapacity_PinsUsersAtZero(t *testing.T) {
	s := newTestSystem(t, sim.SolverMaxMin, false)
	dead := s.ConstraintNew("dead", 0)
	alive := s.ConstraintNew("alive", 10)
	stuck := s.VariableNew("stuck", 1, -1, 2)
	s.Expand(dead, stuck, 1)
	s.Expand(alive, stuck, 1)
	other := s.VariableNew("other", 1, -1, 1)
	s.Expand(alive, other, 1)

	s.Solve()

	assert.Equal(t, 0.0, stuck.Value())
	testutil.AssertFloat64Equal(t, "other", 10, other.Value(), tol)
}

func TestMaxMin_ConstraintBoundUpdate_Resolves(t *testing.T) {
	s := newTestSystem(t, sim.SolverMaxMin, true)
	c := s.ConstraintNew("link", 10)
	a, b := s.VariableNew("a", 1, -1, 1), s.VariableNew("b", 1, -1, 1)
	s.Expand(c, a, 1)
	s.Expand(c, b, 1)
	s.Solve()

	s.UpdateConstraintBound(c, 4)
	s.Solve()

	testutil.AssertFloat64Equal(t, "a", 2, a.Value(), tol)
	testutil.AssertFloat64Equal(t, "b", 2, b.Value(), tol)
}

func TestMaxMin_DisabledVariable_ConsumesNothing(t *testing.T) {
	s := newTestSystem(t, sim.SolverMaxMin, false)
	c := s.ConstraintNew("link", 10)
	a, idle := s.VariableNew("a", 1, -1, 1), s.VariableNew("idle", 0, -1, 1)
	s.Expand(c, a, 1)
	s.Expand(c, idle, 1)

	s.Solve()

	testutil.AssertFloat64Equal(t, "a", 10, a.Value(), tol)
	assert.Equal(t, 0.0, idle.Value())
	assert.Equal(t, 1, c.VariableAmount())
}
