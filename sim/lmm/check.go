package lmm

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/simgrid/simgrid-sub014/sim"
)

func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}

// checkConcurrency verifies the concurrency bookkeeping of every constraint and
// that all elements of a variable share the same enabled/disabled state.
// Only runs when checking is on.
func (s *System) checkConcurrency() {
	if !s.checking() {
		return
	}
	for c := range s.constraints.All() {
		concurrency := 0
		for e := range c.enabled.All() {
			assertf(e.variable.sharingPenalty > 0, "%v: enabled element of disabled %v", c, e.variable)
			concurrency += e.concurrency()
		}
		for e := range c.disabled.All() {
			v := e.variable
			assertf(c.concurrencyLimit < 0 || v.stagedPenalty == 0 || v.minConcurrencySlack() < v.concurrencyShare,
				"%v: %v is staged although every constraint has slack", c, v)
		}
		assertf(c.concurrencyLimit < 0 || c.concurrencyLimit >= concurrency,
			"%v: concurrency %d exceeds limit %d", c, concurrency, c.concurrencyLimit)
		assertf(c.concurrencyCurrent == concurrency,
			"%v: concurrency_current is out-of-date (%d, counted %d)", c, c.concurrencyCurrent, concurrency)
	}

	for v := range s.variables.All() {
		if len(v.cnsts) == 0 {
			continue
		}
		enabled := v.cnsts[0].enabledHook.Linked()
		disabled := v.cnsts[0].disabledHook.Linked()
		for i := range v.cnsts {
			e := &v.cnsts[i]
			assertf(enabled == e.enabledHook.Linked(), "%v: inconsistent enabled element set membership", v)
			assertf(disabled == e.disabledHook.Linked(), "%v: inconsistent disabled element set membership", v)
		}
	}
}

// checkCapacity verifies that no constraint is used beyond its effective bound
// and no bounded variable exceeds its bound.
func (s *System) checkCapacity() {
	eps := s.precision()
	for c := range s.activeConstraints.All() {
		usage := c.Usage()
		assertf(!sim.DoublePositive(usage-c.dynamicBound, c.dynamicBound*eps),
			"%v: incorrect value (%g is not smaller than %g): %g", c, usage, c.dynamicBound, usage-c.dynamicBound)
	}
	for v := range s.variables.All() {
		if v.bound > 0 {
			assertf(!sim.DoublePositive(v.value-v.bound, v.bound*eps),
				"%v: incorrect value (%g is not smaller than %g)", v, v.value, v.bound)
		}
	}
}

// Print logs the current system at debug level: the objective, one line per
// active constraint and the solved value of every variable.
func (s *System) Print() {
	if !logrus.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	for _, line := range strings.Split(s.String(), "\n") {
		logrus.Debug(line)
	}
}

// String renders the system in the MAX-MIN dump format.
func (s *System) String() string {
	var b strings.Builder
	b.WriteString("MAX-MIN ( ")
	for v := range s.variables.All() {
		fmt.Fprintf(&b, "'%d'(%f) ", v.rank, v.sharingPenalty)
	}
	b.WriteString(")\nConstraints\n")

	for c := range s.activeConstraints.All() {
		open, sep := "(", " + "
		if c.policy == Fatpipe {
			open, sep = "max(", " , "
		}
		b.WriteString("\t" + open)
		for e := range c.enabled.All() {
			fmt.Fprintf(&b, "%f.'%d'(%f)%s", e.consumptionWeight, e.variable.rank, e.variable.value, sep)
		}
		for e := range c.disabled.All() {
			fmt.Fprintf(&b, "%f.'%d'(%f)%s", e.consumptionWeight, e.variable.rank, e.variable.value, sep)
		}
		fmt.Fprintf(&b, "0) <= %f ('%d')", c.bound, c.rank)
		if c.policy == Fatpipe {
			b.WriteString(" [MAX-Constraint]")
		}
		b.WriteString("\n")
	}

	b.WriteString("Variables")
	for v := range s.variables.All() {
		if v.bound > 0 {
			fmt.Fprintf(&b, "\n'%d'(%f) : %f (<=%f)", v.rank, v.sharingPenalty, v.value, v.bound)
		} else {
			fmt.Fprintf(&b, "\n'%d'(%f) : %f", v.rank, v.sharingPenalty, v.value)
		}
	}
	return b.String()
}
