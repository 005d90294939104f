package sim

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Solver names accepted by KernelConfig.Solver.
const (
	SolverMaxMin         = "maxmin"
	SolverFairBottleneck = "fair-bottleneck"
	SolverBMF            = "bmf"
)

// Update algorithm names accepted by KernelConfig.Update.
const (
	UpdateFull = "full"
	UpdateLazy = "lazy"
)

// ValidSolvers is the set of recognized solver names.
// Shared by Validate() and lmm.NewSolver() to avoid duplication.
var ValidSolvers = map[string]bool{"": true, SolverMaxMin: true, SolverFairBottleneck: true, SolverBMF: true}

// ValidUpdateAlgorithms is the set of recognized update disciplines.
var ValidUpdateAlgorithms = map[string]bool{"": true, UpdateFull: true, UpdateLazy: true}

// DefaultBMFMaxIterations bounds the BMF fixed-point loop when the config leaves it unset.
const DefaultBMFMaxIterations = 1000

// KernelConfig groups the knobs of one System and of the Model that owns it.
// Empty strings select the defaults ("maxmin", "full").
type KernelConfig struct {
	Solver           string    `yaml:"solver"`
	Update           string    `yaml:"update"`
	SelectiveUpdate  bool      `yaml:"selective_update"` // forced on by the lazy update algorithm
	Precision        Precision `yaml:"precision"`
	BMFMaxIterations int       `yaml:"bmf_max_iterations"`
	ConcurrencyLimit int       `yaml:"concurrency_limit"` // limit given to new constraints, negative = unlimited
	CheckInvariants  bool      `yaml:"check_invariants"`  // run the debug invariant checks regardless of log level
}

// DefaultKernelConfig returns the configuration used when nothing is specified:
// MaxMin solver, full update, unlimited concurrency.
func DefaultKernelConfig() KernelConfig {
	return KernelConfig{
		Solver:           SolverMaxMin,
		Update:           UpdateFull,
		Precision:        DefaultPrecision,
		BMFMaxIterations: DefaultBMFMaxIterations,
		ConcurrencyLimit: -1,
	}
}

// IsLazy reports whether the lazy update algorithm is selected.
func (c KernelConfig) IsLazy() bool {
	return c.Update == UpdateLazy
}

// Normalized returns a copy with empty names and zero tolerances replaced by defaults,
// and selective update forced on under lazy update.
func (c KernelConfig) Normalized() KernelConfig {
	if c.Solver == "" {
		c.Solver = SolverMaxMin
	}
	if c.Update == "" {
		c.Update = UpdateFull
	}
	if c.IsLazy() {
		c.SelectiveUpdate = true
	}
	if c.BMFMaxIterations <= 0 {
		c.BMFMaxIterations = DefaultBMFMaxIterations
	}
	c.Precision = c.Precision.withDefaults()
	return c
}

// Validate checks that names and parameter ranges are valid.
func (c KernelConfig) Validate() error {
	if !ValidSolvers[c.Solver] {
		return fmt.Errorf("unknown solver %q", c.Solver)
	}
	if !ValidUpdateAlgorithms[c.Update] {
		return fmt.Errorf("unknown update algorithm %q", c.Update)
	}
	if c.Precision.WorkAmount < 0 || c.Precision.Timing < 0 || c.Precision.BMF < 0 {
		return fmt.Errorf("precision values must be non-negative, got %+v", c.Precision)
	}
	if c.BMFMaxIterations < 0 {
		return fmt.Errorf("bmf_max_iterations must be non-negative, got %d", c.BMFMaxIterations)
	}
	return nil
}

// LoadKernelConfig reads a YAML kernel configuration file.
// Fields absent from the file keep their DefaultKernelConfig value; unknown fields are errors.
func LoadKernelConfig(path string) (*KernelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading kernel config: %w", err)
	}
	cfg := DefaultKernelConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing kernel config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid kernel config: %w", err)
	}
	return &cfg, nil
}
