package lmm

import (
	"fmt"

	"github.com/simgrid/simgrid-sub014/sim"
)

// Solver computes the value of every enabled variable of a System.
// Implementations read the graph through the System and write Variable values;
// the System handles the modified bookkeeping around each call.
type Solver interface {
	Solve(s *System)
}

// NewSolver creates a Solver by name. Valid names are exposed by sim.ValidSolvers.
// The empty string selects MaxMin. Panics on unrecognized names.
func NewSolver(name string) Solver {
	if !sim.ValidSolvers[name] {
		panic(fmt.Sprintf("unknown solver %q", name))
	}
	switch name {
	case "", sim.SolverMaxMin:
		return &MaxMin{}
	case sim.SolverFairBottleneck:
		return &FairBottleneck{}
	case sim.SolverBMF:
		return &BMF{}
	default:
		panic(fmt.Sprintf("unhandled solver %q", name))
	}
}
