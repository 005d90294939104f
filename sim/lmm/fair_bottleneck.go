package lmm

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/simgrid/simgrid-sub014/sim"
)

// FairBottleneck solves the system by repeated fair splitting: each round every
// constraint divides its remaining capacity among its unsaturated variables, and
// every variable takes the smallest offer of its constraints.
type FairBottleneck struct {
	cnsts []*Constraint
}

// Solve implements Solver.
func (f *FairBottleneck) Solve(s *System) {
	eps := s.precision()
	vars := s.solvingVariables()
	s.saturated.Clear()

	for _, v := range vars {
		v.value = 0
		v.mu = 0
		weighted := false
		for i := range v.cnsts {
			if v.cnsts[i].consumptionWeight > 0 {
				weighted = true
				break
			}
		}
		if weighted {
			s.saturated.PushBack(v, &v.saturatedHook)
		} else {
			v.value = 1
		}
	}

	f.cnsts = f.cnsts[:0]
	for c := range s.solvingConstraints().All() {
		c.dynamicBound = c.effectiveBound()
		c.remaining = c.dynamicBound
		c.usage = 0
		f.cnsts = append(f.cnsts, c)
	}

	rounds := 0
	for !s.saturated.Empty() {
		rounds++
		f.shareRemaining()

		for _, v := range vars {
			v.mu = 0
		}
		for v := range s.saturated.All() {
			inc := math.Inf(1)
			for i := range v.cnsts {
				e := &v.cnsts[i]
				if e.consumptionWeight > 0 {
					inc = min(inc, e.constraint.usage/e.consumptionWeight)
				}
			}
			if v.bound > 0 {
				inc = min(inc, v.bound-v.value)
			}
			v.mu = inc
			v.value += inc
			if v.bound > 0 && sim.DoubleEquals(v.value, v.bound, v.bound*eps) {
				s.saturated.Remove(&v.saturatedHook)
			}
		}

		kept := f.cnsts[:0]
		for _, c := range f.cnsts {
			if c.policy == Fatpipe {
				inc := 0.0
				for e := range c.enabled.All() {
					inc = max(inc, e.consumptionWeight*e.variable.mu)
				}
				sim.DoubleUpdate(&c.remaining, inc, c.dynamicBound*eps)
			} else {
				for e := range c.enabled.All() {
					sim.DoubleUpdate(&c.remaining, e.consumptionWeight*e.variable.mu, c.dynamicBound*eps)
				}
			}
			if c.remaining <= 0 {
				for e := range c.enabled.All() {
					if e.consumptionWeight > 0 {
						s.saturated.Remove(&e.variable.saturatedHook)
					}
				}
				continue
			}
			kept = append(kept, c)
		}
		f.cnsts = kept
	}
	logrus.Debugf("lmm: fair bottleneck converged in %d rounds", rounds)
}

// shareRemaining sets the usage of every live constraint to its fair share per
// unsaturated variable and drops the constraints nobody competes for.
func (f *FairBottleneck) shareRemaining() {
	kept := f.cnsts[:0]
	for _, c := range f.cnsts {
		nb := 0
		for e := range c.enabled.All() {
			if e.consumptionWeight > 0 && e.variable.saturatedHook.Linked() {
				nb++
			}
		}
		if nb == 0 {
			c.remaining = 0
			c.usage = 0
			continue
		}
		if c.policy == Fatpipe {
			nb = 1
		}
		c.usage = c.remaining / float64(nb)
		kept = append(kept, c)
	}
	f.cnsts = kept
}
