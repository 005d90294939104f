package lmm

import (
	"fmt"
	"math"

	"github.com/simgrid/simgrid-sub014/sim/internal/ilist"
)

// SharingPolicy selects how a Constraint aggregates the consumption of its Elements.
type SharingPolicy int

const (
	// Shared constraints sum weight*value over their elements.
	Shared SharingPolicy = iota
	// Fatpipe constraints take the maximum weight*value: every user sees the full capacity.
	Fatpipe
	// Nonlinear constraints are Shared constraints whose effective bound is
	// recomputed at each solve from the current concurrency.
	Nonlinear
)

// String returns the policy name.
func (p SharingPolicy) String() string {
	switch p {
	case Shared:
		return "shared"
	case Fatpipe:
		return "fatpipe"
	case Nonlinear:
		return "nonlinear"
	default:
		return fmt.Sprintf("SharingPolicy(%d)", int(p))
	}
}

// ParseSharingPolicy maps a policy name to its value. The empty string selects Shared.
func ParseSharingPolicy(name string) (SharingPolicy, error) {
	switch name {
	case "", "shared":
		return Shared, nil
	case "fatpipe":
		return Fatpipe, nil
	case "nonlinear":
		return Nonlinear, nil
	default:
		return Shared, fmt.Errorf("unknown sharing policy %q", name)
	}
}

// NonlinearFunc computes the effective bound of a Nonlinear constraint from its
// nominal bound and the number of concurrency units currently in use.
type NonlinearFunc func(bound float64, concurrency int) float64

// Constraint is a finite capacity shared by the Variables bound to it.
type Constraint struct {
	id   any
	rank int

	bound        float64
	dynamicBound float64
	policy       SharingPolicy
	nonlinear    NonlinearFunc

	// solver scratch
	remaining float64
	usage     float64
	light     int

	concurrencyLimit   int // -1 means unlimited
	concurrencyCurrent int
	concurrencyMaximum int

	enabled  ilist.List[*Element]
	disabled ilist.List[*Element]
	active   ilist.List[*Element]

	constraintHook ilist.Hook[*Constraint]
	activeHook     ilist.Hook[*Constraint]
	modifiedHook   ilist.Hook[*Constraint]
}

// ID returns the opaque identifier given at creation.
func (c *Constraint) ID() any { return c.id }

// Rank returns the creation sequence number, used in logs and dumps.
func (c *Constraint) Rank() int { return c.rank }

// Bound returns the nominal capacity.
func (c *Constraint) Bound() float64 { return c.bound }

// DynamicBound returns the effective capacity used by the last solve.
func (c *Constraint) DynamicBound() float64 { return c.dynamicBound }

// SharingPolicy returns the aggregation policy.
func (c *Constraint) SharingPolicy() SharingPolicy { return c.policy }

// SetSharingPolicy changes the aggregation policy. fn is only meaningful for Nonlinear.
func (c *Constraint) SetSharingPolicy(policy SharingPolicy, fn NonlinearFunc) {
	assertf(policy != Nonlinear || fn != nil, "constraint %d: nonlinear policy requires a bound function", c.rank)
	c.policy = policy
	c.nonlinear = fn
}

// ConcurrencyLimit returns the maximum number of concurrency units, or -1 when unlimited.
func (c *Constraint) ConcurrencyLimit() int { return c.concurrencyLimit }

func (c *Constraint) setConcurrencyLimit(limit int) {
	assertf(limit < 0 || c.concurrencyMaximum <= limit,
		"%v: new concurrency limit %d is below the maximum observed concurrency %d; reset the maximum first",
		c, limit, c.concurrencyMaximum)
	if limit < 0 {
		limit = -1
	}
	c.concurrencyLimit = limit
}

// ConcurrencyCurrent returns the concurrency units currently in use.
func (c *Constraint) ConcurrencyCurrent() int { return c.concurrencyCurrent }

// ConcurrencyMaximum returns the high-water mark of ConcurrencyCurrent.
func (c *Constraint) ConcurrencyMaximum() int { return c.concurrencyMaximum }

// ResetConcurrencyMaximum lowers the high-water mark to the current concurrency.
func (c *Constraint) ResetConcurrencyMaximum() { c.concurrencyMaximum = c.concurrencyCurrent }

// ConcurrencySlack returns how many more concurrency units the constraint accepts.
func (c *Constraint) ConcurrencySlack() int {
	if c.concurrencyLimit < 0 {
		return math.MaxInt
	}
	return c.concurrencyLimit - c.concurrencyCurrent
}

// Usage returns the current consumption: the sum of weight*value over enabled
// elements for shared constraints, the maximum for fatpipes.
func (c *Constraint) Usage() float64 {
	usage := 0.0
	for e := range c.enabled.All() {
		if e.consumptionWeight <= 0 {
			continue
		}
		amount := e.consumptionWeight * e.variable.value
		if c.policy == Fatpipe {
			usage = math.Max(usage, amount)
		} else {
			usage += amount
		}
	}
	return usage
}

// VariableAmount returns the number of enabled elements with a positive weight.
func (c *Constraint) VariableAmount() int {
	n := 0
	for e := range c.enabled.All() {
		if e.consumptionWeight > 0 {
			n++
		}
	}
	return n
}

// EnabledElements returns a snapshot of the competing elements.
func (c *Constraint) EnabledElements() []*Element { return c.enabled.Values() }

// DisabledElements returns a snapshot of the elements waiting for concurrency slack.
func (c *Constraint) DisabledElements() []*Element { return c.disabled.Values() }

// ElementCount returns the number of elements bound to the constraint.
func (c *Constraint) ElementCount() int { return c.enabled.Len() + c.disabled.Len() }

func (c *Constraint) effectiveBound() float64 {
	if c.policy == Nonlinear && c.nonlinear != nil {
		return c.nonlinear(c.bound, c.concurrencyCurrent)
	}
	return c.bound
}

func (c *Constraint) String() string {
	return fmt.Sprintf("constraint %d (%v)", c.rank, c.id)
}
