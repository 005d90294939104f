package lmm

import (
	"fmt"
	"math"

	"github.com/simgrid/simgrid-sub014/sim/internal/ilist"
)

// Variable is the quantity solved for one activity. Its Elements bind it to the
// Constraints it consumes; their number is fixed by the capacity given at creation.
type Variable struct {
	id   any
	rank int

	cnsts []Element

	sharingPenalty   float64 // 0 means disabled
	stagedPenalty    float64 // penalty waiting for concurrency slack
	bound            float64 // <= 0 means unbounded
	value            float64
	concurrencyShare int

	visited uint64 // last visitedCounter that walked the variable
	seen    uint64 // last solveStamp that collected the variable
	pinned  uint64 // last solveStamp that fixed the variable on a saturated-at-zero constraint
	mu      float64

	variableHook  ilist.Hook[*Variable]
	saturatedHook ilist.Hook[*Variable]
	modifiedHook  ilist.Hook[*Variable]

	freed bool
}

// ID returns the opaque identifier given at creation, typically the owning activity.
func (v *Variable) ID() any { return v.id }

// Rank returns the creation sequence number.
func (v *Variable) Rank() int { return v.rank }

// Value returns the rate computed by the last solve.
func (v *Variable) Value() float64 { return v.value }

// Bound returns the per-variable upper bound, or a non-positive value when unbounded.
func (v *Variable) Bound() float64 { return v.bound }

// Penalty returns the sharing penalty. A penalty of 0 means the variable is disabled.
func (v *Variable) Penalty() float64 { return v.sharingPenalty }

// StagedPenalty returns the penalty waiting to be applied once every constraint has slack.
func (v *Variable) StagedPenalty() float64 { return v.stagedPenalty }

// IsEnabled reports whether the variable competes for its constraints.
func (v *Variable) IsEnabled() bool { return v.sharingPenalty > 0 }

// ConcurrencyShare returns the number of concurrency units the variable needs on each constraint.
func (v *Variable) ConcurrencyShare() int { return v.concurrencyShare }

// SetConcurrencyShare changes the concurrency units the variable needs.
func (v *Variable) SetConcurrencyShare(share int) {
	assertf(share >= 0, "variable %d: negative concurrency share %d", v.rank, share)
	v.concurrencyShare = share
}

// NumberOfConstraints returns the number of elements of the variable.
func (v *Variable) NumberOfConstraints() int { return len(v.cnsts) }

// Constraint returns the i-th constraint the variable is bound to.
func (v *Variable) Constraint(i int) *Constraint { return v.cnsts[i].constraint }

// Weight returns the consumption weight on the i-th constraint.
func (v *Variable) Weight(i int) float64 { return v.cnsts[i].consumptionWeight }

// Element returns the i-th element.
func (v *Variable) Element(i int) *Element { return &v.cnsts[i] }

func (v *Variable) elementOn(c *Constraint) *Element {
	for i := range v.cnsts {
		if v.cnsts[i].constraint == c {
			return &v.cnsts[i]
		}
	}
	return nil
}

// minConcurrencySlack returns the smallest slack among the constraints of the variable.
func (v *Variable) minConcurrencySlack() int {
	slack := math.MaxInt
	for i := range v.cnsts {
		slack = min(slack, v.cnsts[i].constraint.ConcurrencySlack())
	}
	return slack
}

// canEnable reports whether the staged penalty can be applied without
// overflowing any concurrency limit.
func (v *Variable) canEnable() bool {
	return v.stagedPenalty > 0 && v.minConcurrencySlack() >= v.concurrencyShare
}

func (v *Variable) String() string {
	return fmt.Sprintf("variable %d (%v)", v.rank, v.id)
}
