// Package resource turns solved LMM values into activity completions. An Action is
// one activity consuming resources through its lmm.Variable; a Model owns the
// System, the Actions grouped by lifecycle state, and the date-ordered ActionHeap
// used by the lazy update discipline.
//
// Thread-safety: NOT thread-safe. A Model and its Actions are driven from one goroutine.
package resource

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/simgrid/simgrid-sub014/sim"
	"github.com/simgrid/simgrid-sub014/sim/internal/ilist"
	"github.com/simgrid/simgrid-sub014/sim/lmm"
)

// State is the lifecycle state of an Action, given by the Model collection holding it.
type State int

const (
	StateInited State = iota
	StateStarted
	StateFinished
	StateFailed
	StateIgnored
	stateCount
)

func (s State) String() string {
	switch s {
	case StateInited:
		return "inited"
	case StateStarted:
		return "started"
	case StateFinished:
		return "finished"
	case StateFailed:
		return "failed"
	case StateIgnored:
		return "ignored"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// NoMaxDuration disables the maximum duration of an Action.
const NoMaxDuration = -1.0

// Action is one activity: an amount of work (cost) progressing at the rate of its Variable.
type Action struct {
	model    *Model
	name     string
	variable *lmm.Variable

	cost    float64
	remains float64

	startTime   float64
	finishTime  float64
	maxDuration float64
	latency     float64

	sharingPenalty float64
	lastUpdate     float64
	lastValue      float64

	suspended bool
	refcount  int

	state     State
	stateHook ilist.Hook[*Action]

	heapEntry  *heapEntry
	heapReason HeapReason

	// Data is an opaque user payload.
	Data any
}

// Name returns the action name, used in logs and traces.
func (a *Action) Name() string { return a.name }

// SetName changes the action name.
func (a *Action) SetName(name string) { a.name = name }

// Model returns the owning model.
func (a *Action) Model() *Model { return a.model }

// Variable returns the LMM variable of the action, nil for actions created without one.
func (a *Action) Variable() *lmm.Variable { return a.variable }

// State returns the lifecycle state.
func (a *Action) State() State { return a.state }

// Cost returns the initial amount of work.
func (a *Action) Cost() float64 { return a.cost }

// Remains returns the work left. Under lazy update the value is brought up to
// the current date of the model first.
func (a *Action) Remains() float64 {
	if a.model.lazy && a.isRunning() && !a.inLatency() {
		a.updateRemainsLazy(a.model.now)
	}
	return a.remains
}

// RemainsNoUpdate returns the work left as of the last update.
func (a *Action) RemainsNoUpdate() float64 { return a.remains }

// StartTime returns the creation date.
func (a *Action) StartTime() float64 { return a.startTime }

// FinishTime returns the date the action finished, or -1 while it runs.
func (a *Action) FinishTime() float64 { return a.finishTime }

// MaxDuration returns the time left before the action is forced to finish, or NoMaxDuration.
func (a *Action) MaxDuration() float64 { return a.maxDuration }

// Latency returns the startup latency still to be paid.
func (a *Action) Latency() float64 { return a.latency }

// SharingPenalty returns the penalty the action competes with when running.
func (a *Action) SharingPenalty() float64 { return a.sharingPenalty }

// Bound returns the rate bound of the action, or a non-positive value when unbounded.
func (a *Action) Bound() float64 {
	if a.variable == nil {
		return -1
	}
	return a.variable.Bound()
}

// Rate returns the current rate: the value of the variable.
func (a *Action) Rate() float64 {
	if a.variable == nil {
		return 0
	}
	return a.variable.Value()
}

// LastUpdate returns the date remains was last brought up to date.
func (a *Action) LastUpdate() float64 { return a.lastUpdate }

// LastValue returns the rate at the last update.
func (a *Action) LastValue() float64 { return a.lastValue }

// HeapReason returns why the action is scheduled, or HeapUnset.
func (a *Action) HeapReason() HeapReason { return a.heapReason }

// IsSuspended reports whether the action is suspended.
func (a *Action) IsSuspended() bool { return a.suspended }

func (a *Action) isRunning() bool {
	return a.state == StateStarted && !a.suspended && a.stateHook.Linked()
}

func (a *Action) inLatency() bool { return a.latency > 0 }

func (a *Action) mustLive() {
	if a.refcount <= 0 {
		panic(fmt.Sprintf("action %s used after destruction", a.name))
	}
}

func (a *Action) workPrecision() float64 {
	p := a.model.cfg.Precision
	return p.WorkAmount * p.Timing
}

// UpdateRemains subtracts delta from the work left, snapping to 0 within precision.
func (a *Action) UpdateRemains(delta float64) {
	sim.DoubleUpdate(&a.remains, delta, a.workPrecision())
}

// UpdateMaxDuration subtracts delta from the maximum duration when one is set.
func (a *Action) UpdateMaxDuration(delta float64) {
	if a.maxDuration != NoMaxDuration {
		sim.DoubleUpdate(&a.maxDuration, delta, a.model.cfg.Precision.Timing)
	}
}

// SetState moves the action to the collection of state s and fires the model hook.
func (a *Action) SetState(s State) {
	a.mustLive()
	prev := a.state
	a.model.sets[prev].Remove(&a.stateHook)
	a.state = s
	a.model.sets[s].PushBack(a, &a.stateHook)
	logrus.Debugf("resource: action %s %s -> %s at %g", a.name, prev, s, a.model.now)
	if prev != s && a.model.OnStateChange != nil {
		a.model.OnStateChange(a, prev)
	}
}

// Finish ends the action now in state s.
func (a *Action) Finish(s State) {
	a.finishTime = a.model.now
	a.remains = 0
	a.SetState(s)
}

// Cancel fails the action immediately. Under lazy update it leaves the modified queue and the heap.
func (a *Action) Cancel() {
	a.mustLive()
	a.SetState(StateFailed)
	if a.model.lazy {
		if a.variable != nil {
			a.model.system.RemoveModified(a.variable)
		}
		a.model.heap.Remove(a)
	}
}

// Suspend stops the progress of the action until Resume. A maximum duration keeps
// running while the action is suspended.
func (a *Action) Suspend() {
	a.mustLive()
	if a.suspended {
		return
	}
	if a.variable != nil && !a.inLatency() {
		a.model.system.UpdateVariablePenalty(a.variable, 0)
		if a.model.lazy {
			a.updateRemainsLazy(a.model.now)
			a.model.heap.Remove(a)
			a.queue()
		}
	}
	a.suspended = true
}

// Resume restores the progress of a suspended action.
func (a *Action) Resume() {
	a.mustLive()
	if !a.suspended {
		return
	}
	a.suspended = false
	if a.inLatency() || a.variable == nil {
		return
	}
	a.model.system.UpdateVariablePenalty(a.variable, a.sharingPenalty)
	if a.model.lazy && a.state == StateStarted {
		// the suspended time counts against the maximum duration
		a.UpdateMaxDuration(a.model.now - a.lastUpdate)
		a.lastUpdate = a.model.now
		a.lastValue = 0
		a.model.heap.Remove(a)
		a.queue()
	}
}

// SetBound changes the rate bound of the action. A bound <= 0 removes it.
func (a *Action) SetBound(bound float64) {
	a.mustLive()
	if a.variable == nil {
		return
	}
	a.model.system.UpdateVariableBound(a.variable, bound)
	if a.model.lazy && !a.inLatency() {
		a.model.heap.Remove(a)
		a.queue()
	}
}

// SetSharingPenalty changes the penalty the action competes with.
func (a *Action) SetSharingPenalty(penalty float64) {
	a.mustLive()
	a.sharingPenalty = penalty
	if a.variable == nil {
		return
	}
	if !a.suspended && !a.inLatency() {
		a.model.system.UpdateVariablePenalty(a.variable, penalty)
	}
	if a.model.lazy && !a.inLatency() {
		a.model.heap.Remove(a)
		a.queue()
	}
}

// SetMaxDuration sets the time, counted from now, after which the action finishes
// regardless of its progress.
func (a *Action) SetMaxDuration(duration float64) {
	a.mustLive()
	now := a.model.now
	if a.model.lazy && a.isRunning() && a.variable != nil && !a.inLatency() {
		a.updateRemainsLazy(now)
		if !a.stateHook.In(&a.model.sets[StateStarted]) {
			return
		}
	}
	a.maxDuration = duration
	if !a.model.lazy || a.state != StateStarted {
		return
	}
	switch {
	case a.inLatency():
		sim.DoubleUpdate(&a.latency, now-a.lastUpdate, a.model.cfg.Precision.Timing)
		a.lastUpdate = now
		a.scheduleLatency()
	case a.variable == nil:
		a.lastUpdate = now
		a.scheduleDeadline()
	default:
		if a.suspended {
			a.lastUpdate = now
		}
		a.model.heap.Remove(a)
		a.queue()
	}
}

// SetLatency delays the start of the action by latency: its variable is disabled
// until the latency is paid. Must be called before the action makes any progress.
func (a *Action) SetLatency(latency float64) {
	a.mustLive()
	if latency <= 0 || a.variable == nil {
		a.latency = 0
		return
	}
	a.latency = latency
	a.model.system.UpdateVariablePenalty(a.variable, 0)
	if !a.model.lazy {
		return
	}
	a.lastUpdate = a.model.now
	a.scheduleLatency()
}

// scheduleLatency schedules the end of the latency, or the deadline when it comes first.
// Both are counted from lastUpdate.
func (a *Action) scheduleLatency() {
	date, reason := a.lastUpdate+a.latency, HeapLatency
	if a.maxDuration != NoMaxDuration && a.maxDuration <= a.latency {
		date, reason = a.lastUpdate+a.maxDuration, HeapMaxDuration
	}
	a.model.heap.Update(a, date, reason)
}

// scheduleDeadline schedules an action that makes no progress at the end of its
// maximum duration, counted from lastUpdate, or unschedules it when it has none.
func (a *Action) scheduleDeadline() {
	if a.maxDuration == NoMaxDuration {
		a.model.heap.Remove(a)
		return
	}
	a.model.heap.Update(a, a.lastUpdate+a.maxDuration, HeapMaxDuration)
}

// uses reports whether the variable of a is bound to c.
func (a *Action) uses(c *lmm.Constraint) bool {
	for i := range a.variable.NumberOfConstraints() {
		if a.variable.Constraint(i) == c {
			return true
		}
	}
	return false
}

// queue asks the next lazy event computation to reschedule the action.
func (a *Action) queue() {
	if a.variable != nil && a.state == StateStarted {
		a.model.system.QueueModified(a.variable)
	}
}

// updateRemainsLazy accounts for the progress made at the last rate since the last
// update, and finishes the action when its work or its maximum duration is exhausted.
func (a *Action) updateRemainsLazy(now float64) {
	if !a.isRunning() {
		return
	}
	delta := now - a.lastUpdate
	if a.remains > 0 {
		sim.DoubleUpdate(&a.remains, a.lastValue*delta, a.workPrecision())
	}
	a.UpdateMaxDuration(delta)

	if (a.remains <= 0 && a.variable != nil && a.variable.Penalty() > 0) ||
		(a.maxDuration != NoMaxDuration && a.maxDuration <= 0) {
		a.Finish(StateFinished)
		a.model.heap.Remove(a)
	}
	a.lastUpdate = now
	a.lastValue = a.Rate()
}

// Ref adds a reference to the action.
func (a *Action) Ref() {
	a.mustLive()
	a.refcount++
}

// Unref drops a reference and destroys the action when it was the last one:
// the action leaves its state collection, its variable is freed and its heap
// entry and modified mark are dropped. Returns true when the action was destroyed.
func (a *Action) Unref() bool {
	a.mustLive()
	a.refcount--
	if a.refcount > 0 {
		return false
	}
	m := a.model
	m.sets[a.state].Remove(&a.stateHook)
	if a.variable != nil {
		m.system.RemoveModified(a.variable)
		m.system.VariableFree(a.variable)
		a.variable = nil
	}
	m.heap.Remove(a)
	logrus.Debugf("resource: action %s destroyed", a.name)
	return true
}

func (a *Action) String() string {
	return fmt.Sprintf("action %s (%s)", a.name, a.state)
}
