package scenario

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/simgrid/simgrid-sub014/sim/engine"
	"github.com/simgrid/simgrid-sub014/sim/lmm"
	"github.com/simgrid/simgrid-sub014/sim/resource"
)

// Instance is a scenario materialized on a Model.
type Instance struct {
	Scenario    *Scenario
	Model       *resource.Model
	Constraints map[string]*lmm.Constraint
	// Actions holds the actions created so far; delayed actions appear at their start date.
	Actions map[string]*resource.Action

	order []string
}

// Build validates s and creates its constraints and the actions starting at
// date 0 on m. Delayed actions and events only exist once Schedule is called.
func Build(s *Scenario, m *resource.Model) (*Instance, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	inst := &Instance{
		Scenario:    s,
		Model:       m,
		Constraints: make(map[string]*lmm.Constraint, len(s.Constraints)),
		Actions:     make(map[string]*resource.Action, len(s.Actions)),
	}
	sys := m.System()
	for _, cs := range s.Constraints {
		c := sys.ConstraintNew(cs.Name, cs.Bound)
		policy, _ := lmm.ParseSharingPolicy(cs.Policy)
		var fn lmm.NonlinearFunc
		if policy == lmm.Nonlinear {
			fn = degradation(cs.Degradation)
		}
		c.SetSharingPolicy(policy, fn)
		if cs.ConcurrencyLimit != nil {
			sys.SetConcurrencyLimit(c, *cs.ConcurrencyLimit)
		}
		inst.Constraints[cs.Name] = c
	}
	for i := range s.Actions {
		inst.order = append(inst.order, s.Actions[i].Name)
		if s.Actions[i].Start == 0 {
			inst.start(&s.Actions[i])
		}
	}
	logrus.Debugf("scenario: built %d constraints, %d of %d actions", len(inst.Constraints), len(inst.Actions), len(s.Actions))
	return inst, nil
}

// ActionNames returns the action names in declaration order.
func (inst *Instance) ActionNames() []string { return inst.order }

// Schedule registers the delayed action starts and the events of the scenario on e.
func (inst *Instance) Schedule(e *engine.Engine) {
	for i := range inst.Scenario.Actions {
		def := &inst.Scenario.Actions[i]
		if def.Start > 0 {
			e.At(def.Start, "start "+def.Name, func(*engine.Engine) { inst.start(def) })
		}
	}
	for _, ev := range inst.Scenario.Events {
		label := fmt.Sprintf("%s %s%s", ev.Op, ev.Action, ev.Constraint)
		e.At(ev.Date, label, func(*engine.Engine) { inst.apply(ev) })
	}
}

func (inst *Instance) start(def *ActionSpec) {
	m := inst.Model
	bound := def.Bound
	if bound == 0 {
		bound = -1
	}
	a := m.NewActionWithVariable(def.Cost, bound, def.Penalty, len(def.Uses))
	a.SetName(def.Name)
	for _, u := range def.Uses {
		c := inst.Constraints[u.Constraint]
		if u.Add {
			m.ExpandAdd(a, c, u.Weight)
		} else {
			m.Expand(a, c, u.Weight)
		}
	}
	if def.MaxDuration != nil {
		a.SetMaxDuration(*def.MaxDuration)
	}
	if def.Latency > 0 {
		a.SetLatency(def.Latency)
	}
	inst.Actions[def.Name] = a
}

func (inst *Instance) apply(ev EventSpec) {
	if constraintOps[ev.Op] {
		c := inst.Constraints[ev.Constraint]
		switch ev.Op {
		case OpSetCapacity:
			inst.Model.System().UpdateConstraintBound(c, ev.Value)
		case OpSetConcurrency:
			limit := int(ev.Value)
			c.ResetConcurrencyMaximum()
			if limit >= 0 && limit < c.ConcurrencyCurrent() {
				logrus.Warnf("scenario: %s ignored on %s: %d units in use", ev.Op, ev.Constraint, c.ConcurrencyCurrent())
				return
			}
			inst.Model.System().SetConcurrencyLimit(c, limit)
		}
		return
	}

	a, ok := inst.Actions[ev.Action]
	if !ok || a.State() != resource.StateStarted {
		logrus.Warnf("scenario: %s ignored: action %s is not running", ev.Op, ev.Action)
		return
	}
	switch ev.Op {
	case OpSuspend:
		a.Suspend()
	case OpResume:
		a.Resume()
	case OpCancel:
		a.Cancel()
	case OpSetBound:
		a.SetBound(ev.Value)
	case OpSetPenalty:
		a.SetSharingPenalty(ev.Value)
	case OpSetMaxDuration:
		a.SetMaxDuration(ev.Value)
	}
}

// degradation returns a nonlinear bound shrinking with the number of concurrent users.
func degradation(factor float64) lmm.NonlinearFunc {
	return func(bound float64, n int) float64 {
		if n <= 1 {
			return bound
		}
		return bound / (1 + factor*float64(n-1))
	}
}
