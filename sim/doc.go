// Package sim holds the vocabulary shared by the sharing kernel packages.
//
// # Reading Guide
//
// Start with these files to understand the kernel:
//   - lmm/system.go: the Constraint/Variable graph and the Solve entry point
//   - lmm/maxmin.go: the progressive-filling max-min solver
//   - resource/model.go: how solved rates become completion dates (lazy and full update)
//   - engine/engine.go: the driver loop advancing the clock
//
// # Architecture
//
// The sim package defines configuration and tolerance helpers; implementations
// live in sub-packages:
//   - sim/lmm/: linear max-min system and its solvers (MaxMin, FairBottleneck, BMF)
//   - sim/resource/: Actions, the ActionHeap and the Model owning a System
//   - sim/engine/: the clock, external events and completion draining
//   - sim/scenario/: declarative YAML scenarios and a random generator
//   - sim/trace/: completion records and their summary
//
// # Key Types
//
//   - KernelConfig: solver, update algorithm, selective update, precision and
//     default concurrency limit, loaded from YAML and validated with the Valid* maps
//   - Precision: tolerances for work amounts, dates and BMF rate comparisons
//   - PartitionedRNG: per-subsystem deterministic random streams
//
// # Failure Semantics
//
// Kernel invariant violations panic with a descriptive message. Configuration
// and scenario loading return wrapped errors.
package sim
