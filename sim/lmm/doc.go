// Package lmm implements the linear max-min (LMM) sharing system: a graph of
// Constraints (finite shared capacities), Variables (quantities consumed by one
// activity each) and Elements (the weighted binding of one Variable to one
// Constraint), plus the interchangeable strategies that solve it.
//
// # Reading Guide
//
//   - element.go, constraint.go, variable.go: the graph records and their membership hooks
//   - system.go: graph construction and mutation (expand, enable/disable, bound and penalty updates)
//   - selective.go: the "modified" bookkeeping that lets a solve revisit only what changed
//   - maxmin.go, fair_bottleneck.go, bmf.go: the Solver implementations
//   - check.go: invariant assertions and the debug dump
//
// # Failure semantics
//
// There is no recoverable error path inside the solver. Every violated invariant
// (concurrency overflow, use of a freed Variable, unreachable algorithm state, a BMF
// result that fails verification) panics with the offending identifiers and the
// numeric relationship that failed. The expensive checks run only when logrus is at
// debug level or KernelConfig.CheckInvariants is set; the memory-safety checks always run.
//
// Thread-safety: NOT thread-safe. A System is driven from a single goroutine.
package lmm
