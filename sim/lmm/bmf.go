package lmm

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/simgrid/simgrid-sub014/sim"
)

// BMF solves the system for a Bottleneck Max Fairness allocation: every variable
// (player) is either limited by its own bound or gets the largest weighted share on
// at least one saturated constraint (resource). The weighted share of a player on a
// resource is its rate times its largest sub-flow weight times its penalty.
//
// Fatpipe resources act as per-player bounds. Shared resources are solved as a fixed
// point over per-resource fair share levels; the allocation the levels settle on is
// then solved exactly as a linear system.
type BMF struct{}

// Solve implements Solver. Players coupled through shared constraints are solved
// together, one group at a time, in rank order.
func (BMF) Solve(s *System) {
	cnsts := s.solvingConstraints().Values()
	if len(cnsts) == 0 {
		return
	}
	solving := make(map[*Constraint]bool, len(cnsts))
	for _, c := range cnsts {
		solving[c] = true
		if c.policy == Nonlinear && !s.warnedNonlinear {
			logrus.Warnf("lmm: BMF solver ignores the bound function of %v", c)
			s.warnedNonlinear = true
		}
		c.dynamicBound = c.bound
	}

	var players []*Variable
	for _, v := range s.solvingVariables() {
		linked, weighted := false, false
		for i := range v.cnsts {
			e := &v.cnsts[i]
			if !solving[e.constraint] {
				continue
			}
			linked = true
			weighted = weighted || e.consumptionWeight > 0
		}
		switch {
		case !linked:
		case !weighted:
			v.value = 1
		default:
			players = append(players, v)
		}
	}
	slices.SortFunc(players, func(a, b *Variable) int { return cmp.Compare(a.rank, b.rank) })

	for _, group := range bmfGroups(players, solving) {
		p := newBMFProblem(group, solving)
		solver := newBMFSolver(p.A, p.maxA, p.C, p.shared, p.phi, s.cfg.BMFMaxIterations, s.cfg.Precision)
		rho := solver.solve()
		for i, v := range group {
			v.value = rho[i]
		}
	}
}

// bmfGroups splits players into groups coupled through shared constraints, in
// the order of their first player.
func bmfGroups(players []*Variable, solving map[*Constraint]bool) [][]*Variable {
	parent := make([]int, len(players))
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	first := make(map[*Constraint]int)
	for p, v := range players {
		for i := range v.cnsts {
			e := &v.cnsts[i]
			c := e.constraint
			if !solving[c] || e.consumptionWeight <= 0 || c.policy == Fatpipe {
				continue
			}
			q, seen := first[c]
			if !seen {
				first[c] = p
				continue
			}
			if a, b := find(p), find(q); a != b {
				parent[max(a, b)] = min(a, b)
			}
		}
	}

	var groups [][]*Variable
	slot := make(map[int]int)
	for p, v := range players {
		root := find(p)
		g, ok := slot[root]
		if !ok {
			g = len(groups)
			slot[root] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], v)
	}
	return groups
}

// bmfProblem is the matrix form of one group of players.
type bmfProblem struct {
	A, maxA *mat.Dense
	C       []float64
	shared  []bool
	phi     []float64
}

func newBMFProblem(players []*Variable, solving map[*Constraint]bool) bmfProblem {
	var resources []*Constraint
	index := make(map[*Constraint]int)
	for _, v := range players {
		for i := range v.cnsts {
			e := &v.cnsts[i]
			if _, ok := index[e.constraint]; ok || !solving[e.constraint] || e.consumptionWeight <= 0 {
				continue
			}
			index[e.constraint] = -1
			resources = append(resources, e.constraint)
		}
	}
	slices.SortFunc(resources, func(a, b *Constraint) int { return cmp.Compare(a.rank, b.rank) })

	p := bmfProblem{
		A:      mat.NewDense(len(resources), len(players), nil),
		maxA:   mat.NewDense(len(resources), len(players), nil),
		C:      make([]float64, len(resources)),
		shared: make([]bool, len(resources)),
		phi:    make([]float64, len(players)),
	}
	for r, c := range resources {
		index[c] = r
		p.C[r] = c.bound
		p.shared[r] = c.policy != Fatpipe
	}
	for j, v := range players {
		p.phi[j] = v.bound
		for i := range v.cnsts {
			e := &v.cnsts[i]
			r, ok := index[e.constraint]
			if !ok || r < 0 || e.consumptionWeight <= 0 {
				continue
			}
			p.A.Set(r, j, p.A.At(r, j)+e.consumptionWeight)
			sub := e.maxConsumptionWeight
			if sub <= 0 {
				sub = e.consumptionWeight
			}
			p.maxA.Set(r, j, max(p.maxA.At(r, j), sub*v.sharingPenalty))
		}
	}
	return p
}

const noResource = -1

// bmfSolver holds one BMF problem: A (summed weights), maxA (largest weight times
// penalty), C (capacities), which resources are shared, and the player bounds phi.
// Bounds include the limit each fatpipe puts on the players using it.
type bmfSolver struct {
	A, maxA  *mat.Dense
	C        []float64
	shared   []bool
	phi      []float64 // +Inf when unbounded
	nRes     int
	nPlayers int

	maxIterations int
	precision     float64 // level comparisons
	workAmount    float64 // capacity and rate comparisons
}

func newBMFSolver(A, maxA *mat.Dense, C []float64, shared []bool, phi []float64,
	maxIterations int, precision sim.Precision) *bmfSolver {
	nRes, nPlayers := A.Dims()
	assertf(len(C) == nRes && len(shared) == nRes, "BMF: %d resources but %d capacities", nRes, len(C))
	assertf(len(phi) == nPlayers, "BMF: %d players but %d bounds", nPlayers, len(phi))
	b := &bmfSolver{
		A: A, maxA: maxA, C: C, shared: shared,
		phi:  make([]float64, nPlayers),
		nRes: nRes, nPlayers: nPlayers,
		maxIterations: maxIterations,
		precision:     precision.BMF,
		workAmount:    precision.WorkAmount,
	}
	for p := range nPlayers {
		b.phi[p] = math.Inf(1)
		if phi[p] > 0 {
			b.phi[p] = phi[p]
		}
		for r := range nRes {
			if a := A.At(r, p); a > 0 && !shared[r] {
				b.phi[p] = math.Min(b.phi[p], C[r]/a)
			}
		}
	}
	return b
}

func (b *bmfSolver) solve() []float64 {
	levels := make([]float64, b.nRes)
	for r := range levels {
		levels[r] = math.Inf(1)
	}
	initial := slices.Clone(levels)
	for r := range b.nRes {
		if b.shared[r] {
			initial[r] = b.fairShare(r, levels)
		}
	}
	levels = initial

	it := 0
	for ; it < b.maxIterations; it++ {
		stable := true
		for r := range b.nRes {
			if !b.shared[r] {
				continue
			}
			l := b.fairShare(r, levels)
			if !b.sameLevel(l, levels[r]) {
				stable = false
			}
			levels[r] = l
		}
		if stable {
			break
		}
	}
	if it == b.maxIterations {
		logrus.Debugf("lmm: BMF levels still moving after %d iterations", it)
	}

	rho := b.rates(levels)
	if alloc, ok := b.assignment(rho); ok {
		if exact := b.equilibrium(alloc); b.verify(exact) == nil {
			rho = exact
		}
		logrus.Debugf("lmm: BMF %d iterations alloc=%v rho=%v", it, alloc, rho)
	}
	if err := b.verify(rho); err != nil {
		panic(fmt.Sprintf("BMF: computed allocation is not BMF: %v (levels=%v rho=%v)", err, levels, rho))
	}
	return rho
}

func (b *bmfSolver) sameLevel(x, y float64) bool {
	if math.IsInf(x, 1) || math.IsInf(y, 1) {
		return x == y
	}
	return math.Abs(x-y) <= b.precision*math.Max(1, math.Abs(y))
}

// capElsewhere returns the largest rate p may get without considering r.
func (b *bmfSolver) capElsewhere(p, r int, levels []float64) float64 {
	c := b.phi[p]
	for s := range b.nRes {
		if s != r && b.shared[s] && b.A.At(s, p) > 0 {
			c = math.Min(c, levels[s]/b.maxA.At(s, p))
		}
	}
	return c
}

// fairShare returns the smallest level at which the shared resource r is filled
// when each player q on r runs at min(cap_q, level/maxA[r,q]), or +Inf when the
// players on r cannot fill it.
func (b *bmfSolver) fairShare(r int, levels []float64) float64 {
	type breakpoint struct{ at, a, m, cap float64 }
	var bps []breakpoint
	for p := range b.nPlayers {
		a := b.A.At(r, p)
		if a <= 0 {
			continue
		}
		m := b.maxA.At(r, p)
		c := b.capElsewhere(p, r, levels)
		bps = append(bps, breakpoint{at: c * m, a: a, m: m, cap: c})
	}
	slices.SortStableFunc(bps, func(x, y breakpoint) int { return cmp.Compare(x.at, y.at) })
	// slope[i] is the usage growth per level unit while players i.. are not capped
	slope := make([]float64, len(bps)+1)
	for i := len(bps) - 1; i >= 0; i-- {
		slope[i] = slope[i+1] + bps[i].a/bps[i].m
	}

	fixed := 0.0
	for i, bp := range bps {
		if math.IsInf(bp.at, 1) {
			return (b.C[r] - fixed) / slope[i]
		}
		if fixed+slope[i]*bp.at >= b.C[r] {
			return (b.C[r] - fixed) / slope[i]
		}
		fixed += bp.a * bp.cap
	}
	return math.Inf(1)
}

// rates returns the rate of every player under the given levels.
func (b *bmfSolver) rates(levels []float64) []float64 {
	rho := make([]float64, b.nPlayers)
	for p := range b.nPlayers {
		rho[p] = b.capElsewhere(p, noResource, levels)
	}
	return rho
}

// assignment maps each player to the saturated shared resource where its weighted
// share is the largest, or to noResource when it runs at its bound.
func (b *bmfSolver) assignment(rho []float64) ([]int, bool) {
	saturated := b.saturated(b.usage(rho))
	alloc := make([]int, b.nPlayers)
	for p := range b.nPlayers {
		alloc[p] = noResource
		if b.atBound(p, rho[p]) {
			continue
		}
		r := b.bottleneck(p, rho, saturated)
		if r == noResource {
			return nil, false
		}
		alloc[p] = r
	}
	return alloc, true
}

// groups returns, per resource, the players assigned to it in ascending order,
// and the players limited by their own bound.
func (b *bmfSolver) groups(alloc []int) ([][]int, []int) {
	byRes := make([][]int, b.nRes)
	var bounded []int
	for p, r := range alloc {
		if r == noResource {
			bounded = append(bounded, p)
		} else {
			byRes[r] = append(byRes[r], p)
		}
	}
	return byRes, bounded
}

// resourceCapacity returns the capacity of r left once bounded players took their bound.
func (b *bmfSolver) resourceCapacity(r int, bounded []int) float64 {
	c := b.C[r]
	for _, p := range bounded {
		c -= b.A.At(r, p) * b.phi[p]
	}
	return math.Max(0, c)
}

// equilibrium solves the linear system of one allocation: the players assigned to
// a shared resource get equal weighted shares while the resource is exactly filled.
func (b *bmfSolver) equilibrium(alloc []int) []float64 {
	rho := make([]float64, b.nPlayers)
	byRes, bounded := b.groups(alloc)
	for _, p := range bounded {
		rho[p] = b.phi[p]
	}

	col := make([]int, b.nPlayers)
	n := 0
	for p, r := range alloc {
		col[p] = -1
		if r != noResource {
			col[p] = n
			n++
		}
	}
	if n == 0 {
		return rho
	}

	a := mat.NewDense(n, n, nil)
	rhs := mat.NewVecDense(n, nil)
	row := 0
	for r, ps := range byRes {
		if len(ps) == 0 {
			continue
		}
		for q := range b.nPlayers {
			if col[q] >= 0 {
				a.Set(row, col[q], b.A.At(r, q))
			}
		}
		rhs.SetVec(row, b.resourceCapacity(r, bounded))
		row++
		first := ps[0]
		for _, k := range ps[1:] {
			a.Set(row, col[first], b.maxA.At(r, first))
			a.Set(row, col[k], -b.maxA.At(r, k))
			row++
		}
	}
	assertf(row == n, "BMF: %d equations for %d unknowns", row, n)

	x := solveLinear(a, rhs)
	for p, c := range col {
		if c >= 0 {
			rho[p] = x.AtVec(c)
		}
	}
	return rho
}

// solveLinear solves a*x = rhs by LU, falling back to the SVD least-norm
// solution when a is singular.
func solveLinear(a *mat.Dense, rhs *mat.VecDense) *mat.VecDense {
	var x mat.VecDense
	if err := x.SolveVec(a, rhs); err == nil {
		return &x
	}
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		panic("BMF: SVD factorization failed")
	}
	rank := svd.Rank(1e-12)
	if rank == 0 {
		n, _ := a.Dims()
		return mat.NewVecDense(n, nil)
	}
	svd.SolveVecTo(&x, rhs, rank)
	return &x
}

// usage returns the consumption of every resource: A*rho for shared ones,
// the largest single consumption for the others.
func (b *bmfSolver) usage(rho []float64) *mat.VecDense {
	var usage mat.VecDense
	usage.MulVec(b.A, mat.NewVecDense(b.nPlayers, slices.Clone(rho)))
	for r := range b.nRes {
		if b.shared[r] {
			continue
		}
		m := 0.0
		for p := range b.nPlayers {
			m = max(m, b.A.At(r, p)*rho[p])
		}
		usage.SetVec(r, m)
	}
	return &usage
}

func (b *bmfSolver) capacityTolerance(r int) float64 {
	return b.C[r]*b.workAmount + b.precision
}

func (b *bmfSolver) saturated(usage *mat.VecDense) []bool {
	out := make([]bool, b.nRes)
	for r := range b.nRes {
		out[r] = !sim.DoublePositive(b.C[r]-usage.AtVec(r), b.capacityTolerance(r))
	}
	return out
}

// verify checks the BMF properties of rho: rates are finite, non-negative and
// within bounds, capacities are respected, and every player is at its bound or
// has a maximal weighted share on a saturated shared resource.
func (b *bmfSolver) verify(rho []float64) error {
	if len(rho) != b.nPlayers {
		return fmt.Errorf("no allocation computed")
	}
	for p, x := range rho {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("player %d has no finite rate (%g)", p, x)
		}
		if x < -b.workAmount {
			return fmt.Errorf("player %d has a negative rate %g", p, x)
		}
		if bound := b.phi[p]; sim.DoublePositive(x-bound, bound*b.workAmount) {
			return fmt.Errorf("player %d rate %g exceeds its bound %g", p, x, bound)
		}
	}

	usage := b.usage(rho)
	for r := range b.nRes {
		if u := usage.AtVec(r); sim.DoublePositive(u-b.C[r], b.capacityTolerance(r)) {
			return fmt.Errorf("resource %d used %g beyond capacity %g", r, u, b.C[r])
		}
	}
	saturated := b.saturated(usage)

	anySaturated := slices.Contains(saturated, true)
	allBounded := true
	for p := range b.nPlayers {
		if b.atBound(p, rho[p]) {
			continue
		}
		allBounded = false
		if b.bottleneck(p, rho, saturated) == noResource {
			return fmt.Errorf("player %d (rho=%g) has no bottleneck", p, rho[p])
		}
	}
	if !anySaturated && !allBounded {
		return fmt.Errorf("no saturated resource")
	}
	return nil
}

func (b *bmfSolver) atBound(p int, rho float64) bool {
	bound := b.phi[p]
	return !math.IsInf(bound, 1) && !sim.DoublePositive(bound-rho, bound*b.workAmount)
}

// bottleneck returns the first saturated shared resource on which p has a maximal
// weighted share, or noResource.
func (b *bmfSolver) bottleneck(p int, rho []float64, saturated []bool) int {
	for r := range b.nRes {
		if !saturated[r] || !b.shared[r] || b.A.At(r, p) <= 0 {
			continue
		}
		mine := b.maxA.At(r, p) * rho[p]
		best := 0.0
		for q := range b.nPlayers {
			if b.A.At(r, q) > 0 {
				best = max(best, b.maxA.At(r, q)*rho[q])
			}
		}
		if !sim.DoublePositive(best-mine, math.Max(best, 1)*b.workAmount) {
			return r
		}
	}
	return noResource
}
