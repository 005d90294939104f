package lmm

import (
	"github.com/simgrid/simgrid-sub014/sim"
)

// MaxMin solves the system by progressive filling: at each round the constraints
// with the smallest remaining/usage ratio saturate, and the variables they hold
// are fixed at that share (or at their own bound when it is tighter).
type MaxMin struct {
	light     []constraintLight
	saturated []int // indexes into light
}

// constraintLight is the per-solve record of a constraint that still has capacity and users.
type constraintLight struct {
	cnst               *Constraint
	remainingOverUsage float64
}

// Solve implements Solver.
func (m *MaxMin) Solve(s *System) {
	eps := s.precision()
	cnsts := s.solvingConstraints()
	m.light = m.light[:0]
	m.saturated = m.saturated[:0]
	s.saturated.Clear()

	// constraints without capacity pin their users at 0
	for c := range cnsts.All() {
		c.light = -1
		c.active.Clear()
		c.dynamicBound = c.effectiveBound()
		c.remaining = c.dynamicBound
		c.usage = 0
		for e := range c.enabled.All() {
			assertf(e.variable.sharingPenalty > 0, "%v: enabled element of disabled %v", c, e.variable)
			e.variable.value = 0
			if !sim.DoublePositive(c.remaining, c.dynamicBound*eps) && e.consumptionWeight > 0 {
				e.variable.pinned = s.solveStamp
			}
		}
	}

	minUsage := -1.0
	for c := range cnsts.All() {
		if !sim.DoublePositive(c.remaining, c.dynamicBound*eps) {
			continue
		}
		for e := range c.enabled.All() {
			if e.consumptionWeight <= 0 || e.variable.pinned == s.solveStamp {
				continue
			}
			u := e.consumptionWeight / e.variable.sharingPenalty
			if c.policy == Fatpipe {
				c.usage = max(c.usage, u)
			} else {
				c.usage += u
			}
			e.makeActive()
		}
		if c.usage > 0 {
			c.light = len(m.light)
			m.light = append(m.light, constraintLight{cnst: c, remainingOverUsage: c.remaining / c.usage})
			m.saturatedConstraintsUpdate(c.remaining/c.usage, c.light, &minUsage)
		}
	}
	m.saturatedVariablesUpdate(s)

	for len(m.light) > 0 {
		minBound := -1.0
		for v := range s.saturated.All() {
			if v.bound > 0 && v.bound*v.sharingPenalty < minUsage {
				if minBound < 0 {
					minBound = v.bound * v.sharingPenalty
				} else {
					minBound = min(minBound, v.bound*v.sharingPenalty)
				}
			}
		}

		for !s.saturated.Empty() {
			v, _ := s.saturated.PopFront()
			switch {
			case minBound < 0:
				v.value = minUsage / v.sharingPenalty
			case sim.DoubleEquals(minBound, v.bound*v.sharingPenalty, eps):
				v.value = v.bound
			default:
				// a tighter bound goes first; v comes back in a later round
				continue
			}
			for i := range v.cnsts {
				m.consume(s, &v.cnsts[i], eps)
			}
		}

		minUsage = -1
		m.saturated = m.saturated[:0]
		for pos := range m.light {
			l := &m.light[pos]
			assertf(!l.cnst.active.Empty(), "%v: light constraint without active elements", l.cnst)
			m.saturatedConstraintsUpdate(l.remainingOverUsage, pos, &minUsage)
		}
		m.saturatedVariablesUpdate(s)
	}
	s.saturated.Clear()
}

// consume charges the value of a freshly fixed variable to the constraint of e.
func (m *MaxMin) consume(s *System, e *Element, eps float64) {
	c := e.constraint
	v := e.variable
	if c.policy == Fatpipe {
		e.makeInactive()
		c.usage = 0
		for other := range c.enabled.All() {
			if other.variable.value > 0 || other.variable.pinned == s.solveStamp {
				continue
			}
			if other.consumptionWeight > 0 {
				c.usage = max(c.usage, other.consumptionWeight/other.variable.sharingPenalty)
			}
		}
	} else {
		sim.DoubleUpdate(&c.remaining, e.consumptionWeight*v.value, c.dynamicBound*eps)
		sim.DoubleUpdate(&c.usage, e.consumptionWeight/v.sharingPenalty, eps)
		e.makeInactive()
	}
	if !sim.DoublePositive(c.usage, eps) || !sim.DoublePositive(c.remaining, c.dynamicBound*eps) {
		m.removeLight(c)
	} else if c.light >= 0 {
		m.light[c.light].remainingOverUsage = c.remaining / c.usage
	}
}

func (m *MaxMin) saturatedConstraintsUpdate(usage float64, pos int, minUsage *float64) {
	assertf(usage > 0, "impossible: non-positive remaining/usage ratio %g", usage)
	switch {
	case *minUsage < 0 || *minUsage > usage:
		*minUsage = usage
		m.saturated = append(m.saturated[:0], pos)
	case *minUsage == usage:
		m.saturated = append(m.saturated, pos)
	}
}

func (m *MaxMin) saturatedVariablesUpdate(s *System) {
	for _, pos := range m.saturated {
		for e := range m.light[pos].cnst.active.All() {
			v := e.variable
			assertf(v.sharingPenalty > 0, "%v: active element of disabled %v", e.constraint, v)
			if e.consumptionWeight > 0 && !v.saturatedHook.Linked() {
				s.saturated.PushBack(v, &v.saturatedHook)
			}
		}
	}
}

// removeLight drops c from the light table by moving the last record into its slot.
func (m *MaxMin) removeLight(c *Constraint) {
	if c.light < 0 {
		return
	}
	last := len(m.light) - 1
	m.light[c.light] = m.light[last]
	m.light[c.light].cnst.light = c.light
	m.light = m.light[:last]
	c.light = -1
}
