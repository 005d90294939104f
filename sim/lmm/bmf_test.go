package lmm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	"github.com/simgrid/simgrid-sub014/sim"
	"github.com/simgrid/simgrid-sub014/sim/internal/testutil"
)

func TestBMF_TwoEqualPlayers_SplitEvenly(t *testing.T) {
	s := newTestSystem(t, sim.SolverBMF, false)
	c := s.ConstraintNew("link", 10)
	a, b := s.VariableNew("a", 1, -1, 1), s.VariableNew("b", 1, -1, 1)
	s.Expand(c, a, 1)
	s.Expand(c, b, 1)

	s.Solve()

	testutil.AssertFloat64Equal(t, "a", 5, a.Value(), tol)
	testutil.AssertFloat64Equal(t, "b", 5, b.Value(), tol)
}

func TestBMF_BoundedPlayer_OthersTakeTheRest(t *testing.T) {
	// GIVEN one player bounded at 3 on a resource of 10
	s := newTestSystem(t, sim.SolverBMF, false)
	c := s.ConstraintNew("link", 10)
	bounded, free := s.VariableNew("bounded", 1, 3, 1), s.VariableNew("free", 1, -1, 1)
	s.Expand(c, bounded, 1)
	s.Expand(c, free, 1)

	s.Solve()

	testutil.AssertFloat64Equal(t, "bounded", 3, bounded.Value(), tol)
	testutil.AssertFloat64Equal(t, "free", 7, free.Value(), tol)
}

func TestBMF_ThreeLinksOneFlowAcross_SharesBottlenecks(t *testing.T) {
	s := newTestSystem(t, sim.SolverBMF, false)
	l1, L2, l3 := s.ConstraintNew("l1", 1), s.ConstraintNew("L2", 10), s.ConstraintNew("l3", 1)
	across := s.VariableNew("across", 1, -1, 3)
	for _, c := range []*Constraint{l1, L2, l3} {
		s.Expand(c, across, 1)
	}
	on1, on2, on3 := s.VariableNew("on1", 1, -1, 1), s.VariableNew("on2", 1, -1, 1), s.VariableNew("on3", 1, -1, 1)
	s.Expand(l1, on1, 1)
	s.Expand(L2, on2, 1)
	s.Expand(l3, on3, 1)

	s.Solve()

	testutil.AssertFloat64Equal(t, "across", 0.5, across.Value(), tol)
	testutil.AssertFloat64Equal(t, "on1", 0.5, on1.Value(), tol)
	testutil.AssertFloat64Equal(t, "on2", 9.5, on2.Value(), tol)
	testutil.AssertFloat64Equal(t, "on3", 0.5, on3.Value(), tol)
}

func TestBMF_Fatpipe_EachPlayerFillsTheResource(t *testing.T) {
	s := newTestSystem(t, sim.SolverBMF, false)
	c := s.ConstraintNew("backbone", 10)
	c.SetSharingPolicy(Fatpipe, nil)
	a, b := s.VariableNew("a", 1, -1, 1), s.VariableNew("b", 1, -1, 1)
	s.Expand(c, a, 1)
	s.Expand(c, b, 1)

	s.Solve()

	testutil.AssertFloat64Equal(t, "a", 10, a.Value(), tol)
	testutil.AssertFloat64Equal(t, "b", 10, b.Value(), tol)
}

func TestBMF_UnweightedVariable_GetsUnitValue(t *testing.T) {
	s := newTestSystem(t, sim.SolverBMF, false)
	c := s.ConstraintNew("link", 10)
	v := s.VariableNew("v", 1, -1, 1)
	w := s.VariableNew("w", 1, -1, 1)
	s.Expand(c, v, 0)
	s.Expand(c, w, 1)

	s.Solve()

	testutil.AssertFloat64Equal(t, "v", 1, v.Value(), tol)
	testutil.AssertFloat64Equal(t, "w", 10, w.Value(), tol)
}

func TestBMFSolver_Verify_RejectsOverCapacity(t *testing.T) {
	// GIVEN a one-resource problem and a rate vector that overflows it
	A := mat.NewDense(1, 2, []float64{1, 1})
	b := newBMFSolver(A, mat.DenseCopyOf(A), []float64{10}, []bool{true}, []float64{-1, -1}, 10, sim.DefaultPrecision)

	// THEN verification fails, and a fair vector passes
	assert.Error(t, b.verify([]float64{6, 6}))
	assert.Error(t, b.verify([]float64{2, 8}))
	assert.NoError(t, b.verify([]float64{5, 5}))
}

func TestSolveLinear_Singular_FallsBackToLeastNorm(t *testing.T) {
	// x + y = 2 written twice has no unique solution; the least-norm one is (1, 1)
	a := mat.NewDense(2, 2, []float64{1, 1, 1, 1})
	rhs := mat.NewVecDense(2, []float64{2, 2})

	x := solveLinear(a, rhs)

	testutil.AssertFloat64Equal(t, "x0", 1, x.AtVec(0), 1e-9)
	testutil.AssertFloat64Equal(t, "x1", 1, x.AtVec(1), 1e-9)
}

func TestBMF_Penalty_EqualizesWeightedShares(t *testing.T) {
	// GIVEN a penalty 2 player sharing 9 units with a penalty 1 player
	s := newTestSystem(t, sim.SolverBMF, false)
	c := s.ConstraintNew("link", 9)
	light, heavy := s.VariableNew("light", 1, -1, 1), s.VariableNew("heavy", 2, -1, 1)
	s.Expand(c, light, 1)
	s.Expand(c, heavy, 1)

	s.Solve()

	// THEN rate times penalty is the same for both
	testutil.AssertFloat64Equal(t, "light", 6, light.Value(), tol)
	testutil.AssertFloat64Equal(t, "heavy", 3, heavy.Value(), tol)
}

func TestBMF_PenalizedPlayersAcrossTwoLinks_StayWithinCapacity(t *testing.T) {
	// GIVEN a penalty 3 player crossing two links, each shared with a penalty 1 player
	s := newTestSystem(t, sim.SolverBMF, false)
	l1, l2 := s.ConstraintNew("l1", 4), s.ConstraintNew("l2", 8)
	across := s.VariableNew("across", 3, -1, 2)
	s.Expand(l1, across, 1)
	s.Expand(l2, across, 1)
	on1, on2 := s.VariableNew("on1", 1, -1, 1), s.VariableNew("on2", 1, -1, 1)
	s.Expand(l1, on1, 1)
	s.Expand(l2, on2, 1)

	s.Solve()

	// THEN l1 is the bottleneck of across (3*1 = on1) and on2 takes what l2 has left
	testutil.AssertFloat64Equal(t, "across", 1, across.Value(), tol)
	testutil.AssertFloat64Equal(t, "on1", 3, on1.Value(), tol)
	testutil.AssertFloat64Equal(t, "on2", 7, on2.Value(), tol)
}

func TestBMF_SubFlowWeight_SetsTheShare(t *testing.T) {
	// GIVEN a player consuming twice per unit of rate, next to a unit-weight one
	s := newTestSystem(t, sim.SolverBMF, false)
	c := s.ConstraintNew("link", 9)
	double, single := s.VariableNew("double", 1, -1, 1), s.VariableNew("single", 1, -1, 1)
	s.Expand(c, double, 2)
	s.Expand(c, single, 1)

	s.Solve()

	// THEN both sub-flows get the same share: 2*double = single and 2*double + single = 9
	testutil.AssertFloat64Equal(t, "double", 2.25, double.Value(), tol)
	testutil.AssertFloat64Equal(t, "single", 4.5, single.Value(), tol)
	testutil.AssertFloat64Equal(t, "usage", 9, c.Usage(), tol)
}

func TestBMF_FatpipeLimit_ReleasesSharedCapacity(t *testing.T) {
	// GIVEN a player limited to 2 by a fatpipe, sharing a link of 10 with a free player
	s := newTestSystem(t, sim.SolverBMF, false)
	pipe := s.ConstraintNew("pipe", 2)
	pipe.SetSharingPolicy(Fatpipe, nil)
	link := s.ConstraintNew("link", 10)
	capped := s.VariableNew("capped", 1, -1, 2)
	s.Expand(pipe, capped, 1)
	s.Expand(link, capped, 1)
	free := s.VariableNew("free", 1, -1, 1)
	s.Expand(link, free, 1)

	s.Solve()

	testutil.AssertFloat64Equal(t, "capped", 2, capped.Value(), tol)
	testutil.AssertFloat64Equal(t, "free", 8, free.Value(), tol)
}

func TestBMF_IndependentGroups_SolvedSeparately(t *testing.T) {
	s := newTestSystem(t, sim.SolverBMF, false)
	c1, c2 := s.ConstraintNew("c1", 4), s.ConstraintNew("c2", 9)
	a, b := s.VariableNew("a", 1, -1, 1), s.VariableNew("b", 2, -1, 1)
	s.Expand(c1, a, 1)
	s.Expand(c2, b, 1)

	s.Solve()

	testutil.AssertFloat64Equal(t, "a", 4, a.Value(), tol)
	testutil.AssertFloat64Equal(t, "b", 9, b.Value(), tol)
}

func TestBMFSolver_FairShare_CapsPlayersLimitedElsewhere(t *testing.T) {
	// GIVEN one resource of 10 used by a player bounded at 1 and a free player
	A := mat.NewDense(1, 2, []float64{1, 1})
	b := newBMFSolver(A, mat.DenseCopyOf(A), []float64{10}, []bool{true}, []float64{1, -1}, 10, sim.DefaultPrecision)

	// THEN the level filling it leaves 9 to the free player
	testutil.AssertFloat64Equal(t, "level", 9, b.fairShare(0, []float64{math.Inf(1)}), tol)
}

func TestBMFSolver_FairShare_UnfillableResource_IsUnlimited(t *testing.T) {
	A := mat.NewDense(1, 1, []float64{1})
	b := newBMFSolver(A, mat.DenseCopyOf(A), []float64{10}, []bool{true}, []float64{2}, 10, sim.DefaultPrecision)

	assert.True(t, math.IsInf(b.fairShare(0, []float64{math.Inf(1)}), 1))
}
