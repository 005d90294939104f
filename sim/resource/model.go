package resource

import (
	"github.com/sirupsen/logrus"

	"github.com/simgrid/simgrid-sub014/sim"
	"github.com/simgrid/simgrid-sub014/sim/internal/ilist"
	"github.com/simgrid/simgrid-sub014/sim/lmm"
)

// Model owns one System, its Actions grouped by state, and the ActionHeap
// used by the lazy update discipline.
type Model struct {
	cfg    sim.KernelConfig
	system *lmm.System
	lazy   bool
	heap   ActionHeap
	sets   [stateCount]ilist.List[*Action]
	now    float64

	// OnStateChange, when set, is called after an action changed state.
	OnStateChange func(a *Action, previous State)
}

// NewModel creates a model and its System from cfg. The lazy update
// discipline forces selective update on the System.
func NewModel(cfg sim.KernelConfig) *Model {
	cfg = cfg.Normalized()
	m := &Model{
		cfg:    cfg,
		system: lmm.NewSystem(cfg),
		lazy:   cfg.IsLazy(),
	}
	logrus.Debugf("resource: new model update=%s solver=%s", cfg.Update, cfg.Solver)
	return m
}

// System returns the sharing system of the model.
func (m *Model) System() *lmm.System { return m.system }

// Config returns the normalized configuration.
func (m *Model) Config() sim.KernelConfig { return m.cfg }

// IsLazy reports whether the lazy update discipline is in use.
func (m *Model) IsLazy() bool { return m.lazy }

// Heap returns the action heap. It stays empty under full update.
func (m *Model) Heap() *ActionHeap { return &m.heap }

// Now returns the date of the last NextOccurringEvent or UpdateActionsState call.
func (m *Model) Now() float64 { return m.now }

// Actions returns a snapshot of the actions in state s.
func (m *Model) Actions(s State) []*Action { return m.sets[s].Values() }

// ActionCount returns the number of actions in state s.
func (m *Model) ActionCount(s State) int { return m.sets[s].Len() }

// NewAction creates an action without variable, started or failed.
func (m *Model) NewAction(cost float64, failed bool) *Action {
	a := &Action{
		model:          m,
		cost:           cost,
		remains:        cost,
		startTime:      m.now,
		finishTime:     -1,
		maxDuration:    NoMaxDuration,
		sharingPenalty: 1,
		lastUpdate:     m.now,
		refcount:       1,
		state:          StateStarted,
	}
	if failed {
		a.state = StateFailed
	}
	m.sets[a.state].PushBack(a, &a.stateHook)
	return a
}

// NewActionWithVariable creates a started action and its variable, able to use
// up to maxConstraints constraints. A penalty <= 0 selects 1.
func (m *Model) NewActionWithVariable(cost, bound, penalty float64, maxConstraints int) *Action {
	if penalty <= 0 {
		penalty = 1
	}
	a := m.NewAction(cost, false)
	a.sharingPenalty = penalty
	a.variable = m.system.VariableNew(a, penalty, bound, maxConstraints)
	if m.lazy {
		// revisited at the next event even if it never gets a share
		m.system.QueueModified(a.variable)
	}
	return a
}

// Expand binds the variable of a to c with the given consumption weight. When c
// lacks the concurrency slack the action needs, the action waits for it with its
// element bound at full weight.
func (m *Model) Expand(a *Action, c *lmm.Constraint, weight float64) {
	a.mustLive()
	v := a.variable
	if !v.IsEnabled() || v.ConcurrencyShare() <= c.ConcurrencySlack() {
		m.system.Expand(c, v, weight)
		return
	}
	penalty := v.Penalty()
	m.system.UpdateVariablePenalty(v, 0)
	m.system.Expand(c, v, weight)
	m.system.UpdateVariablePenalty(v, penalty)
	logrus.Debugf("resource: action %s waits for concurrency on %v", a.name, c)
}

// ExpandAdd adds consumption weight of a on c, binding a to c when it does not use it yet.
func (m *Model) ExpandAdd(a *Action, c *lmm.Constraint, weight float64) {
	a.mustLive()
	if !a.uses(c) {
		m.Expand(a, c, weight)
		return
	}
	m.system.ExpandAdd(c, a.variable, weight)
}

// ExtractDoneAction pops the oldest finished action, or returns nil.
func (m *Model) ExtractDoneAction() *Action {
	a, _ := m.sets[StateFinished].PopFront()
	return a
}

// ExtractFailedAction pops the oldest failed action, or returns nil.
func (m *Model) ExtractFailedAction() *Action {
	a, _ := m.sets[StateFailed].PopFront()
	return a
}

// NextOccurringEvent solves the system and returns the delay from now until the
// next action completion, or -1 when nothing is scheduled.
func (m *Model) NextOccurringEvent(now float64) float64 {
	m.now = now
	if m.lazy {
		return m.nextOccurringEventLazy(now)
	}
	return m.nextOccurringEventFull()
}

func (m *Model) nextOccurringEventLazy(now float64) float64 {
	m.system.Solve()

	for {
		v, ok := m.system.PopModified()
		if !ok {
			break
		}
		a, ok := v.ID().(*Action)
		if !ok {
			continue
		}
		if a.state != StateStarted || !a.stateHook.Linked() || a.inLatency() {
			continue
		}

		a.updateRemainsLazy(now)
		if a.state != StateStarted {
			continue
		}
		if v.Penalty() <= 0 {
			// suspended or waiting for concurrency
			a.scheduleDeadline()
			continue
		}

		date := -1.0
		switch share := v.Value(); {
		case v.NumberOfConstraints() == 0:
			// no resource used: infinite rate
			date = now
		case share > 0:
			ttc := 0.0
			if a.remains > 0 {
				ttc = a.remains / share
			}
			date = now + ttc
		}
		reason := HeapNormal
		if a.maxDuration != NoMaxDuration && (date <= -1 || now+a.maxDuration < date) {
			date = now + a.maxDuration
			reason = HeapMaxDuration
		}
		logrus.Debugf("resource: action %s share=%g remains=%g may finish at %g (%s)", a.name, v.Value(), a.remains, date, reason)

		if date > -1 {
			m.heap.Update(a, date, reason)
		} else {
			// no progress and no deadline: nothing to schedule until the rate changes
			m.heap.Remove(a)
		}
	}

	if top, ok := m.heap.TopDate(); ok {
		return top - now
	}
	return -1
}

func (m *Model) nextOccurringEventFull() float64 {
	m.system.Solve()
	if m.system.IsSelective() {
		m.system.ClearModified()
	}

	next := -1.0
	for a := range m.sets[StateStarted].All() {
		if v := a.variable; v != nil && v.NumberOfConstraints() == 0 && v.Penalty() > 0 {
			next = 0
		}
		if rate := a.Rate(); rate > 0 {
			d := 0.0
			if a.remains > 0 {
				d = a.remains / rate
			}
			if next < 0 || d < next {
				next = d
			}
		}
		if a.maxDuration >= 0 && (next < 0 || a.maxDuration < next) {
			next = a.maxDuration
		}
		if a.latency > 0 && (next < 0 || a.latency < next) {
			next = a.latency
		}
	}
	return next
}

// UpdateActionsState brings every action to date now, delta after the previous
// update, and finishes those whose work or maximum duration ran out.
func (m *Model) UpdateActionsState(now, delta float64) {
	m.now = now
	if m.lazy {
		m.updateActionsStateLazy(now)
		return
	}
	m.updateActionsStateFull(delta)
}

func (m *Model) updateActionsStateLazy(now float64) {
	timing := m.cfg.Precision.Timing
	for {
		top, ok := m.heap.TopDate()
		if !ok || sim.DoublePositive(top-now, timing) {
			return
		}
		a := m.heap.PopAction()
		switch a.heapReason {
		case HeapLatency:
			logrus.Debugf("resource: latency paid for action %s at %g", a.name, now)
			a.UpdateMaxDuration(now - a.lastUpdate)
			a.latency = 0
			a.heapReason = HeapUnset
			a.lastUpdate = now
			a.lastValue = 0
			if !a.suspended {
				m.system.UpdateVariablePenalty(a.variable, a.sharingPenalty)
			}
			a.queue()
		case HeapMaxDuration, HeapNormal:
			a.heapReason = HeapUnset
			a.Finish(StateFinished)
		}
	}
}

func (m *Model) updateActionsStateFull(delta float64) {
	timing := m.cfg.Precision.Timing
	for a := range m.sets[StateStarted].All() {
		deltap := delta
		if a.latency > 0 {
			if a.latency > deltap {
				sim.DoubleUpdate(&a.latency, deltap, timing)
				deltap = 0
			} else {
				sim.DoubleUpdate(&deltap, a.latency, timing)
				a.latency = 0
			}
			if a.latency <= 0 && !a.suspended && a.variable != nil {
				m.system.UpdateVariablePenalty(a.variable, a.sharingPenalty)
			}
		}
		if a.variable != nil && a.variable.NumberOfConstraints() == 0 {
			// no resource used: infinite rate
			a.UpdateRemains(a.remains)
		}
		a.UpdateRemains(a.Rate() * deltap)
		a.UpdateMaxDuration(delta)

		if (a.remains <= 0 && a.variable != nil && a.variable.Penalty() > 0) ||
			(a.maxDuration != NoMaxDuration && a.maxDuration <= 0) {
			a.Finish(StateFinished)
		}
	}
}
