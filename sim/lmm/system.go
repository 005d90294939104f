package lmm

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/simgrid/simgrid-sub014/sim"
	"github.com/simgrid/simgrid-sub014/sim/internal/ilist"
)

// System owns the Constraints and Variables of one sharing problem and the
// Solver that computes their values.
type System struct {
	cfg    sim.KernelConfig
	solver Solver

	selectiveUpdate bool
	modified        bool
	visitedCounter  uint64
	solveStamp      uint64

	constraints         ilist.List[*Constraint]
	activeConstraints   ilist.List[*Constraint]
	modifiedConstraints ilist.List[*Constraint]
	variables           ilist.List[*Variable]
	saturated           ilist.List[*Variable]
	modifiedVariables   ilist.List[*Variable]

	pool []*Variable

	nextConstraintRank int
	nextVariableRank   int

	warnedNonlinear bool
}

// NewSystem creates an empty System using the solver named by cfg.Solver.
// Panics on an unknown solver name.
func NewSystem(cfg sim.KernelConfig) *System {
	cfg = cfg.Normalized()
	return NewSystemWithSolver(cfg, NewSolver(cfg.Solver))
}

// NewSystemWithSolver creates an empty System driven by an explicit Solver.
func NewSystemWithSolver(cfg sim.KernelConfig, solver Solver) *System {
	cfg = cfg.Normalized()
	assertf(solver != nil, "NewSystemWithSolver: nil solver")
	logrus.Debugf("lmm: new system solver=%s selective_update=%t", cfg.Solver, cfg.SelectiveUpdate)
	return &System{
		cfg:             cfg,
		solver:          solver,
		selectiveUpdate: cfg.SelectiveUpdate,
		visitedCounter:  1,
	}
}

// Config returns the normalized configuration of the system.
func (s *System) Config() sim.KernelConfig { return s.cfg }

// IsSelective reports whether solves only revisit modified constraints.
func (s *System) IsSelective() bool { return s.selectiveUpdate }

// IsModified reports whether the system changed since the last solve.
func (s *System) IsModified() bool { return s.modified }

// Constraints returns a snapshot of every constraint in creation order.
func (s *System) Constraints() []*Constraint { return s.constraints.Values() }

// ActiveConstraints returns a snapshot of the constraints that have elements.
func (s *System) ActiveConstraints() []*Constraint { return s.activeConstraints.Values() }

// Variables returns a snapshot of the variables, enabled ones first.
func (s *System) Variables() []*Variable { return s.variables.Values() }

func (s *System) precision() float64 { return s.cfg.Precision.WorkAmount }

func (s *System) checking() bool {
	return s.cfg.CheckInvariants || logrus.IsLevelEnabled(logrus.DebugLevel)
}

// ConstraintNew creates a constraint of capacity bound. New constraints take
// the concurrency limit of the configuration and the Shared policy.
func (s *System) ConstraintNew(id any, bound float64) *Constraint {
	c := &Constraint{
		id:               id,
		rank:             s.nextConstraintRank,
		bound:            bound,
		dynamicBound:     bound,
		light:            -1,
		concurrencyLimit: s.cfg.ConcurrencyLimit,
	}
	if c.concurrencyLimit < 0 {
		c.concurrencyLimit = -1
	}
	s.nextConstraintRank++
	s.constraints.PushBack(c, &c.constraintHook)
	return c
}

// VariableNew creates a variable able to hold up to maxConstraints elements.
// A penalty of 0 creates a disabled variable; a bound <= 0 means unbounded.
func (s *System) VariableNew(id any, penalty, bound float64, maxConstraints int) *Variable {
	assertf(maxConstraints >= 0, "VariableNew: negative number of constraints %d", maxConstraints)
	assertf(penalty >= 0, "VariableNew: negative sharing penalty %g", penalty)

	var v *Variable
	if n := len(s.pool); n > 0 {
		v = s.pool[n-1]
		s.pool = s.pool[:n-1]
	} else {
		v = &Variable{}
	}
	cnsts := v.cnsts[:0]
	if cap(cnsts) < maxConstraints {
		cnsts = make([]Element, 0, maxConstraints)
	}
	*v = Variable{
		id:               id,
		rank:             s.nextVariableRank,
		cnsts:            cnsts,
		sharingPenalty:   penalty,
		bound:            bound,
		concurrencyShare: 1,
		visited:          s.visitedCounter - 1,
	}
	s.nextVariableRank++
	if penalty > 0 {
		s.variables.PushFront(v, &v.variableHook)
	} else {
		s.variables.PushBack(v, &v.variableHook)
	}
	logrus.Debugf("lmm: new %v penalty=%g bound=%g capacity=%d", v, penalty, bound, maxConstraints)
	return v
}

func (s *System) mustLive(v *Variable) {
	assertf(v != nil && !v.freed, "operating on a freed variable %v", v)
}

// Expand binds v to c with the given consumption weight. When the variable is enabled
// but c lacks the concurrency slack it needs, the variable is disabled and its penalty
// is staged, and the new element is created with weight 0.
func (s *System) Expand(c *Constraint, v *Variable, weight float64) {
	s.mustLive(v)
	s.modified = true

	// an element already enabled on c does not need extra slack
	currentShare := 0
	if v.concurrencyShare > 1 {
		for i := range v.cnsts {
			e := &v.cnsts[i]
			if e.constraint == c && e.enabledHook.Linked() {
				currentShare += e.concurrency()
			}
		}
	}

	if v.sharingPenalty > 0 && v.concurrencyShare-currentShare > c.ConcurrencySlack() {
		penalty := v.sharingPenalty
		s.disableVar(v)
		for i := range v.cnsts {
			s.OnDisabledVar(v.cnsts[i].constraint)
		}
		weight = 0
		v.stagedPenalty = penalty
		logrus.Debugf("lmm: %v staged on %v (slack %d < share %d)", v, c, c.ConcurrencySlack(), v.concurrencyShare)
	}

	assertf(len(v.cnsts) < cap(v.cnsts), "%v: too many constraints (capacity %d)", v, cap(v.cnsts))
	v.cnsts = append(v.cnsts, Element{
		constraint:           c,
		variable:             v,
		consumptionWeight:    weight,
		maxConsumptionWeight: weight,
	})
	e := &v.cnsts[len(v.cnsts)-1]

	if v.sharingPenalty != 0 {
		c.enabled.PushFront(e, &e.enabledHook)
		e.increaseConcurrency()
	} else {
		c.disabled.PushBack(e, &e.disabledHook)
	}

	if !s.selectiveUpdate {
		s.makeConstraintActive(c)
	} else if e.consumptionWeight > 0 || v.sharingPenalty > 0 {
		s.makeConstraintActive(c)
		s.updateModifiedVariable(v)
	}

	s.checkConcurrency()
}

// ExpandAdd increases the consumption weight of v on c by value, or binds v to c
// when no element exists yet. Fatpipe constraints keep the maximum instead of the sum.
func (s *System) ExpandAdd(c *Constraint, v *Variable, value float64) {
	s.mustLive(v)
	s.modified = true
	s.checkConcurrency()

	e := v.elementOn(c)
	if e == nil {
		s.Expand(c, v, value)
		return
	}

	enabled := v.sharingPenalty > 0
	if enabled {
		e.decreaseConcurrency()
	}
	if c.policy == Fatpipe {
		e.consumptionWeight = math.Max(e.consumptionWeight, value)
	} else {
		e.consumptionWeight += value
	}
	e.maxConsumptionWeight = math.Max(e.maxConsumptionWeight, value)

	if enabled {
		if c.ConcurrencySlack() < e.concurrency() {
			// count the heavier element again so that disabling releases exactly what it holds
			c.concurrencyCurrent += e.concurrency()
			penalty := v.sharingPenalty
			s.disableVar(v)
			for i := range v.cnsts {
				s.OnDisabledVar(v.cnsts[i].constraint)
			}
			v.stagedPenalty = penalty
			logrus.Debugf("lmm: %v staged after weight increase on %v", v, c)
		} else {
			e.increaseConcurrency()
		}
	}
	if e.consumptionWeight > 0 {
		s.makeConstraintActive(c)
	}
	s.updateModifiedConstraintSet(c)
	s.checkConcurrency()
}

// UpdateVariableBound changes the upper bound of v. A bound <= 0 removes it.
func (s *System) UpdateVariableBound(v *Variable, bound float64) {
	s.mustLive(v)
	s.modified = true
	v.bound = bound
	s.updateModifiedVariable(v)
}

// UpdateConstraintBound changes the capacity of c.
func (s *System) UpdateConstraintBound(c *Constraint, bound float64) {
	s.modified = true
	s.updateModifiedConstraintSet(c)
	c.bound = bound
}

// UpdateVariablePenalty changes the sharing penalty of v. Moving from 0 to a positive value
// enables the variable, or stages the penalty when a constraint lacks concurrency slack.
// Moving to 0 disables it and lets waiting variables take its place.
func (s *System) UpdateVariablePenalty(v *Variable, penalty float64) {
	s.mustLive(v)
	assertf(penalty >= 0, "%v: negative sharing penalty %g", v, penalty)
	if penalty == v.sharingPenalty {
		if penalty == 0 && v.stagedPenalty > 0 {
			// a staged variable that is disabled again must not be promoted later
			v.stagedPenalty = 0
		}
		return
	}

	enabling := penalty > 0 && v.sharingPenalty <= 0
	disabling := penalty <= 0 && v.sharingPenalty > 0
	logrus.Debugf("lmm: %v penalty %g -> %g", v, v.sharingPenalty, penalty)
	s.modified = true

	switch {
	case enabling:
		v.stagedPenalty = penalty
		if slack := v.minConcurrencySlack(); slack < v.concurrencyShare {
			logrus.Debugf("lmm: %v staged: minimum slack %d < share %d", v, slack, v.concurrencyShare)
			return
		}
		s.enableVar(v)
	case disabling:
		s.disableVar(v)
		for i := range v.cnsts {
			s.OnDisabledVar(v.cnsts[i].constraint)
		}
	default:
		v.sharingPenalty = penalty
		s.updateModifiedVariable(v)
	}
	s.checkConcurrency()
}

// EnableVar applies the staged penalty of v. Panics when a constraint of v lacks
// the concurrency slack v needs.
func (s *System) EnableVar(v *Variable) {
	s.mustLive(v)
	assertf(v.canEnable(), "%v cannot be enabled: staged penalty %g, minimum slack %d, share %d",
		v, v.stagedPenalty, v.minConcurrencySlack(), v.concurrencyShare)
	s.modified = true
	s.enableVar(v)
	s.checkConcurrency()
}

// DisableVar disables v, moving its elements to the disabled sets, and gives
// the released concurrency to waiting variables.
func (s *System) DisableVar(v *Variable) {
	s.mustLive(v)
	if v.sharingPenalty <= 0 {
		return
	}
	s.modified = true
	s.disableVar(v)
	for i := range v.cnsts {
		s.OnDisabledVar(v.cnsts[i].constraint)
	}
	s.checkConcurrency()
}

func (s *System) enableVar(v *Variable) {
	assertf(v.stagedPenalty > 0, "%v: enabling without a staged penalty", v)
	v.sharingPenalty = v.stagedPenalty
	v.stagedPenalty = 0

	s.variables.Remove(&v.variableHook)
	s.variables.PushFront(v, &v.variableHook)
	for i := range v.cnsts {
		e := &v.cnsts[i]
		e.constraint.disabled.Remove(&e.disabledHook)
		if !e.enabledHook.Linked() {
			e.constraint.enabled.PushFront(e, &e.enabledHook)
		}
		e.increaseConcurrency()
		s.makeConstraintActive(e.constraint)
	}
	s.updateModifiedVariable(v)
}

func (s *System) disableVar(v *Variable) {
	assertf(v.stagedPenalty == 0, "%v: staged penalty should have been cleared", v)

	s.variables.Remove(&v.variableHook)
	s.variables.PushBack(v, &v.variableHook)
	s.updateModifiedVariable(v)
	for i := range v.cnsts {
		e := &v.cnsts[i]
		c := e.constraint
		if c.enabled.Remove(&e.enabledHook) {
			c.disabled.PushBack(e, &e.disabledHook)
		}
		e.makeInactive()
		e.decreaseConcurrency()
	}
	v.sharingPenalty = 0
	v.stagedPenalty = 0
	v.value = 0
}

// OnDisabledVar tries to enable staged variables waiting on c after concurrency
// was released. Candidates are visited first-fit in disabled-set order; a heavy
// variable at the head may block lighter ones behind it.
func (s *System) OnDisabledVar(c *Constraint) {
	if c.concurrencyLimit < 0 {
		return
	}
	remaining := c.disabled.Len()
	if remaining == 0 {
		return
	}
	for e := range c.disabled.All() {
		if remaining == 0 {
			break
		}
		remaining--
		v := e.variable
		if v.stagedPenalty > 0 && v.canEnable() {
			logrus.Debugf("lmm: %v promoted on %v", v, c)
			s.enableVar(v)
		}
		if c.concurrencyCurrent >= c.concurrencyLimit {
			break
		}
	}
}

// VariableFree unbinds v from every constraint and returns it to the pool.
// Any later use of v panics.
func (s *System) VariableFree(v *Variable) {
	s.mustLive(v)
	s.modified = true
	s.updateModifiedVariable(v)

	for i := range v.cnsts {
		e := &v.cnsts[i]
		c := e.constraint
		if v.sharingPenalty > 0 {
			e.decreaseConcurrency()
		}
		c.enabled.Remove(&e.enabledHook)
		c.disabled.Remove(&e.disabledHook)
		c.active.Remove(&e.activeHook)
	}
	for i := range v.cnsts {
		c := v.cnsts[i].constraint
		if c.ElementCount() == 0 {
			s.makeConstraintInactive(c)
		} else {
			s.OnDisabledVar(c)
		}
	}

	s.variables.Remove(&v.variableHook)
	s.saturated.Remove(&v.saturatedHook)
	s.modifiedVariables.Remove(&v.modifiedHook)

	clear(v.cnsts)
	v.cnsts = v.cnsts[:0]
	v.id = nil
	v.freed = true
	s.pool = append(s.pool, v)
	s.checkConcurrency()
}

// ConstraintFree removes c from the system. Panics while elements are still bound to it.
func (s *System) ConstraintFree(c *Constraint) {
	assertf(c.ElementCount() == 0, "%v freed while %d elements are still bound to it", c, c.ElementCount())
	s.makeConstraintInactive(c)
	s.constraints.Remove(&c.constraintHook)
}

func (s *System) makeConstraintActive(c *Constraint) {
	if !c.activeHook.Linked() {
		s.activeConstraints.PushBack(c, &c.activeHook)
	}
}

func (s *System) makeConstraintInactive(c *Constraint) {
	s.activeConstraints.Remove(&c.activeHook)
	s.modifiedConstraints.Remove(&c.modifiedHook)
}

// Solve recomputes the values of the variables when the system changed since
// the last call. Under selective update, only the modified constraints are
// revisited and the variables bound to them are queued as modified.
func (s *System) Solve() {
	if !s.modified {
		return
	}
	s.solveStamp++
	s.solver.Solve(s)
	s.modified = false

	if s.selectiveUpdate {
		for c := range s.modifiedConstraints.All() {
			for e := range c.enabled.All() {
				if e.consumptionWeight > 0 {
					s.markModified(e.variable)
				}
			}
		}
		s.removeAllModifiedConstraints()
	}

	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		s.Print()
	}
	if s.checking() {
		s.checkCapacity()
	}
	s.checkConcurrency()
}

// solvingConstraints returns the constraints the next solve must visit.
func (s *System) solvingConstraints() *ilist.List[*Constraint] {
	if s.selectiveUpdate {
		return &s.modifiedConstraints
	}
	return &s.activeConstraints
}

// solvingVariables returns the enabled variables bound to the solving constraints,
// each once, in first-seen order.
func (s *System) solvingVariables() []*Variable {
	if !s.selectiveUpdate {
		out := make([]*Variable, 0, s.variables.Len())
		for v := range s.variables.All() {
			if v.sharingPenalty > 0 {
				out = append(out, v)
			}
		}
		return out
	}
	var out []*Variable
	for c := range s.modifiedConstraints.All() {
		for e := range c.enabled.All() {
			if e.variable.seen != s.solveStamp {
				e.variable.seen = s.solveStamp
				out = append(out, e.variable)
			}
		}
	}
	return out
}

// SetConcurrencyLimit changes the concurrency limit of c (-1 disables it) and
// promotes staged variables that fit under a raised limit. Setting a limit below
// the maximum concurrency already observed panics.
func (s *System) SetConcurrencyLimit(c *Constraint, limit int) {
	c.setConcurrencyLimit(limit)
	s.OnDisabledVar(c)
	s.checkConcurrency()
}
