// Package engine drives one or more resource Models through time: it asks every
// model for its next completion, advances the clock to the earliest of those and
// of the scheduled external events, updates the actions, applies the due events
// and drains the completed actions into a trace.
package engine

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/simgrid/simgrid-sub014/sim"
	"github.com/simgrid/simgrid-sub014/sim/resource"
	"github.com/simgrid/simgrid-sub014/sim/trace"
)

// NoHorizon runs until no model and no event has anything left to do.
const NoHorizon = -1.0

// Engine owns the simulated clock.
type Engine struct {
	Clock  float64
	Models []*resource.Model
	Events *EventHeap
	Trace  *trace.SimulationTrace

	// OnCompletion, when set, sees each drained action before it is released.
	OnCompletion func(a *resource.Action)

	timing  float64
	nextSeq uint64
	steps   int
}

// New creates an engine at date 0 driving models.
func New(models ...*resource.Model) *Engine {
	e := &Engine{
		Events: NewEventHeap(),
		Trace:  trace.NewSimulationTrace(),
		timing: sim.DefaultPrecision.Timing,
	}
	for _, m := range models {
		e.AddModel(m)
	}
	return e
}

// AddModel adds a model to drive. The clock tolerance is the smallest timing
// precision among the models.
func (e *Engine) AddModel(m *resource.Model) {
	if t := m.Config().Precision.Timing; len(e.Models) == 0 || t < e.timing {
		e.timing = t
	}
	e.Models = append(e.Models, m)
}

// Steps returns the number of completed Step calls that advanced the clock.
func (e *Engine) Steps() int { return e.steps }

// At schedules fn at date. Panics if date is in the past.
func (e *Engine) At(date float64, label string, fn func(e *Engine)) {
	if date < e.Clock {
		panic(fmt.Sprintf("event %q scheduled in the past: %g < %g", label, date, e.Clock))
	}
	e.Events.Schedule(&Event{Date: date, Label: label, Apply: fn, seq: e.nextSeq})
	e.nextSeq++
}

// NextDate returns the date of the next thing to happen, either a completion
// in a model or a scheduled event, and false when there is none.
func (e *Engine) NextDate() (float64, bool) {
	next := -1.0
	for _, m := range e.Models {
		d := m.NextOccurringEvent(e.Clock)
		if d >= 0 && (next < 0 || d < next) {
			next = d
		}
	}
	date, ok := -1.0, false
	if next >= 0 {
		date, ok = e.Clock+next, true
	}
	if ev := e.Events.Peek(); ev != nil && (!ok || ev.Date < date) {
		date, ok = ev.Date, true
	}
	return date, ok
}

// Step advances the clock to the next date, capped by horizon unless it is
// NoHorizon. It returns false when nothing is left to do before the horizon.
func (e *Engine) Step(horizon float64) bool {
	if horizon >= 0 && e.Clock >= horizon {
		return false
	}
	target, ok := e.NextDate()
	if !ok {
		return false
	}
	if horizon >= 0 && target > horizon {
		target = horizon
	}

	// clock monotonicity
	if target < e.Clock {
		panic(fmt.Sprintf("Clock went backwards: %g < %g", target, e.Clock))
	}
	delta := target - e.Clock
	e.Clock = target
	e.steps++

	for _, m := range e.Models {
		m.UpdateActionsState(e.Clock, delta)
	}
	for {
		ev := e.Events.Peek()
		if ev == nil || sim.DoublePositive(ev.Date-e.Clock, e.timing) {
			break
		}
		e.Events.PopNext()
		logrus.Debugf("engine: applying %q at %g", ev.Label, e.Clock)
		ev.Apply(e)
	}
	e.drain()
	return true
}

// Run steps until horizon (or until nothing is left with NoHorizon) and returns the trace.
func (e *Engine) Run(horizon float64) *trace.SimulationTrace {
	for e.Step(horizon) {
	}
	logrus.Infof("engine: stopped at %g after %d steps, %d completions", e.Clock, e.steps, e.Trace.Len())
	return e.Trace
}

func (e *Engine) drain() {
	for _, m := range e.Models {
		for a := m.ExtractDoneAction(); a != nil; a = m.ExtractDoneAction() {
			e.complete(a, resource.StateFinished)
		}
		for a := m.ExtractFailedAction(); a != nil; a = m.ExtractFailedAction() {
			e.complete(a, resource.StateFailed)
		}
	}
}

func (e *Engine) complete(a *resource.Action, s resource.State) {
	at := a.FinishTime()
	if at < 0 {
		at = e.Clock
	}
	e.Trace.Record(trace.CompletionRecord{
		Action: a.Name(),
		State:  s.String(),
		Start:  a.StartTime(),
		Time:   at,
		Cost:   a.Cost(),
	})
	if e.OnCompletion != nil {
		e.OnCompletion(a)
	}
	a.Unref()
}
