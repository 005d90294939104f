// Package scenario describes a sharing workload declaratively: constraints,
// actions and the external events that change them over time. A Scenario is
// loaded from YAML, validated, then built onto a resource.Model and scheduled on
// an engine.Engine.
package scenario

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/simgrid/simgrid-sub014/sim"
	"github.com/simgrid/simgrid-sub014/sim/lmm"
)

// Event operations.
const (
	OpSuspend        = "suspend"
	OpResume         = "resume"
	OpCancel         = "cancel"
	OpSetBound       = "set-bound"
	OpSetPenalty     = "set-penalty"
	OpSetMaxDuration = "set-max-duration"
	OpSetCapacity    = "set-capacity"
	OpSetConcurrency = "set-concurrency-limit"
)

var (
	actionOps = map[string]bool{
		OpSuspend: true, OpResume: true, OpCancel: true,
		OpSetBound: true, OpSetPenalty: true, OpSetMaxDuration: true,
	}
	constraintOps = map[string]bool{OpSetCapacity: true, OpSetConcurrency: true}
)

// Scenario is the top-level scenario document.
// Loaded from YAML via Load(path) or Parse(data).
type Scenario struct {
	Kernel      sim.KernelConfig `yaml:"kernel"`
	Horizon     float64          `yaml:"horizon,omitempty"` // 0 = run until nothing is left
	Constraints []ConstraintSpec `yaml:"constraints"`
	Actions     []ActionSpec     `yaml:"actions"`
	Events      []EventSpec      `yaml:"events,omitempty"`
}

// ConstraintSpec defines one shared resource.
type ConstraintSpec struct {
	Name             string  `yaml:"name"`
	Bound            float64 `yaml:"bound"`
	Policy           string  `yaml:"policy,omitempty"`            // shared (default), fatpipe, nonlinear
	Degradation      float64 `yaml:"degradation,omitempty"`       // nonlinear only: bound / (1 + degradation*(n-1))
	ConcurrencyLimit *int    `yaml:"concurrency_limit,omitempty"` // nil = kernel default
}

// ActionSpec defines one activity and the constraints it consumes.
type ActionSpec struct {
	Name        string    `yaml:"name"`
	Cost        float64   `yaml:"cost"`
	Start       float64   `yaml:"start,omitempty"`
	Bound       float64   `yaml:"bound,omitempty"`   // 0 = unbounded
	Penalty     float64   `yaml:"penalty,omitempty"` // 0 = 1
	MaxDuration *float64  `yaml:"max_duration,omitempty"`
	Latency     float64   `yaml:"latency,omitempty"`
	Uses        []UseSpec `yaml:"uses"`
}

// UseSpec binds an action to a constraint. With Add, the weight is added to a
// previous use of the same constraint instead of replacing it.
type UseSpec struct {
	Constraint string  `yaml:"constraint"`
	Weight     float64 `yaml:"weight"`
	Add        bool    `yaml:"add,omitempty"`
}

// EventSpec changes an action or a constraint at a given date.
type EventSpec struct {
	Date       float64 `yaml:"date"`
	Op         string  `yaml:"op"`
	Action     string  `yaml:"action,omitempty"`
	Constraint string  `yaml:"constraint,omitempty"`
	Value      float64 `yaml:"value,omitempty"`
}

// Load reads and parses a YAML scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML scenario. Uses strict parsing: unrecognized keys (typos)
// are rejected. Kernel fields absent from the document keep their default value.
func Parse(data []byte) (*Scenario, error) {
	s := Scenario{Kernel: sim.DefaultKernelConfig()}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	return &s, nil
}

// Encode writes the scenario as YAML.
func (s *Scenario) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encoding scenario: %w", err)
	}
	return enc.Close()
}

// Validate checks names, references and value ranges.
func (s *Scenario) Validate() error {
	if err := s.Kernel.Validate(); err != nil {
		return fmt.Errorf("kernel: %w", err)
	}
	if err := validateFiniteNonNegative("horizon", s.Horizon); err != nil {
		return err
	}
	if len(s.Actions) == 0 {
		return fmt.Errorf("at least one action required")
	}

	constraints := make(map[string]bool, len(s.Constraints))
	for i, c := range s.Constraints {
		prefix := fmt.Sprintf("constraint[%d]", i)
		if c.Name == "" {
			return fmt.Errorf("%s: name is required", prefix)
		}
		if constraints[c.Name] {
			return fmt.Errorf("%s: duplicate name %q", prefix, c.Name)
		}
		constraints[c.Name] = true
		if err := validateFiniteNonNegative(prefix+".bound", c.Bound); err != nil {
			return err
		}
		policy, err := lmm.ParseSharingPolicy(c.Policy)
		if err != nil {
			return fmt.Errorf("%s: %w", prefix, err)
		}
		if c.Degradation != 0 && policy != lmm.Nonlinear {
			return fmt.Errorf("%s: degradation only applies to the nonlinear policy", prefix)
		}
		if err := validateFiniteNonNegative(prefix+".degradation", c.Degradation); err != nil {
			return err
		}
		if c.ConcurrencyLimit != nil && *c.ConcurrencyLimit < -1 {
			return fmt.Errorf("%s: concurrency_limit must be -1 or non-negative, got %d", prefix, *c.ConcurrencyLimit)
		}
	}

	actions := make(map[string]bool, len(s.Actions))
	for i := range s.Actions {
		a := &s.Actions[i]
		prefix := fmt.Sprintf("action[%d]", i)
		if a.Name == "" {
			return fmt.Errorf("%s: name is required", prefix)
		}
		if actions[a.Name] {
			return fmt.Errorf("%s: duplicate name %q", prefix, a.Name)
		}
		actions[a.Name] = true
		for name, v := range map[string]float64{
			"cost": a.Cost, "start": a.Start, "bound": a.Bound, "penalty": a.Penalty, "latency": a.Latency,
		} {
			if err := validateFiniteNonNegative(prefix+"."+name, v); err != nil {
				return err
			}
		}
		if a.MaxDuration != nil {
			if err := validateFiniteNonNegative(prefix+".max_duration", *a.MaxDuration); err != nil {
				return err
			}
		}
		if len(a.Uses) == 0 {
			return fmt.Errorf("%s: at least one use required", prefix)
		}
		for j, u := range a.Uses {
			if !constraints[u.Constraint] {
				return fmt.Errorf("%s.uses[%d]: unknown constraint %q", prefix, j, u.Constraint)
			}
			if err := validateFiniteNonNegative(fmt.Sprintf("%s.uses[%d].weight", prefix, j), u.Weight); err != nil {
				return err
			}
		}
	}

	for i, e := range s.Events {
		prefix := fmt.Sprintf("event[%d]", i)
		if err := validateFiniteNonNegative(prefix+".date", e.Date); err != nil {
			return err
		}
		switch {
		case actionOps[e.Op]:
			if !actions[e.Action] {
				return fmt.Errorf("%s: unknown action %q", prefix, e.Action)
			}
		case constraintOps[e.Op]:
			if !constraints[e.Constraint] {
				return fmt.Errorf("%s: unknown constraint %q", prefix, e.Constraint)
			}
		default:
			return fmt.Errorf("%s: unknown op %q; valid: suspend, resume, cancel, set-bound, set-penalty, set-max-duration, set-capacity, set-concurrency-limit", prefix, e.Op)
		}
		if e.Op == OpSetConcurrency {
			if e.Value < -1 || e.Value != math.Trunc(e.Value) {
				return fmt.Errorf("%s: concurrency limit must be an integer >= -1, got %g", prefix, e.Value)
			}
		} else if err := validateFiniteNonNegative(prefix+".value", e.Value); err != nil {
			return err
		}
	}
	return nil
}

func validateFiniteNonNegative(name string, val float64) error {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return fmt.Errorf("%s must be a finite number, got %f", name, val)
	}
	if val < 0 {
		return fmt.Errorf("%s must be non-negative, got %f", name, val)
	}
	return nil
}
