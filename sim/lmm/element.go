package lmm

import "github.com/simgrid/simgrid-sub014/sim/internal/ilist"

// Element binds one Variable to one Constraint with a consumption weight.
// Elements live inside their Variable's fixed-capacity slice and are destroyed with it.
type Element struct {
	constraint *Constraint
	variable   *Variable

	consumptionWeight    float64
	maxConsumptionWeight float64 // largest single weight folded into consumptionWeight (BMF sub-flows)

	enabledHook  ilist.Hook[*Element]
	disabledHook ilist.Hook[*Element]
	activeHook   ilist.Hook[*Element]
}

// Constraint returns the bound constraint.
func (e *Element) Constraint() *Constraint { return e.constraint }

// Variable returns the bound variable.
func (e *Element) Variable() *Variable { return e.variable }

// ConsumptionWeight returns the weight applied to the variable's value on the constraint.
func (e *Element) ConsumptionWeight() float64 { return e.consumptionWeight }

// MaxConsumptionWeight returns the largest weight accumulated into this element.
func (e *Element) MaxConsumptionWeight() float64 { return e.maxConsumptionWeight }

// IsEnabled reports whether the element is actively competing on its constraint.
func (e *Element) IsEnabled() bool { return e.enabledHook.Linked() }

// concurrency is the number of concurrency units this element costs.
// Elements lighter than one (cross-traffic) are not counted.
func (e *Element) concurrency() int {
	if e.consumptionWeight >= 1 {
		return 1
	}
	return 0
}

func (e *Element) decreaseConcurrency() {
	c := e.constraint
	assertf(c.concurrencyCurrent >= e.concurrency(),
		"constraint %d: concurrency underflow (%d - %d)", c.rank, c.concurrencyCurrent, e.concurrency())
	c.concurrencyCurrent -= e.concurrency()
}

func (e *Element) increaseConcurrency() {
	c := e.constraint
	c.concurrencyCurrent += e.concurrency()
	if c.concurrencyCurrent > c.concurrencyMaximum {
		c.concurrencyMaximum = c.concurrencyCurrent
	}
	assertf(c.concurrencyLimit < 0 || c.concurrencyCurrent <= c.concurrencyLimit,
		"constraint %d: concurrency limit overflow (%d > %d)", c.rank, c.concurrencyCurrent, c.concurrencyLimit)
}

func (e *Element) makeActive() {
	if !e.activeHook.Linked() {
		e.constraint.active.PushFront(e, &e.activeHook)
	}
}

func (e *Element) makeInactive() {
	e.constraint.active.Remove(&e.activeHook)
}
