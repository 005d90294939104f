package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/simgrid/simgrid-sub014/sim"
	"github.com/simgrid/simgrid-sub014/sim/scenario"
)

// loadScenario reads the scenario and resolves its kernel configuration:
// scenario kernel section, then the --kernel-config file, then the flags the
// user actually set. Flags left at their default never overwrite file values.
func loadScenario(c *cobra.Command) (*scenario.Scenario, error) {
	s, err := scenario.Load(scenarioPath)
	if err != nil {
		return nil, err
	}
	if kernelConfigPath != "" {
		cfg, err := sim.LoadKernelConfig(kernelConfigPath)
		if err != nil {
			return nil, err
		}
		s.Kernel = *cfg
	}
	applyKernelFlags(c, &s.Kernel)
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", scenarioPath, err)
	}
	return s, nil
}

func applyKernelFlags(c *cobra.Command, cfg *sim.KernelConfig) {
	flags := c.Flags()
	if flags.Changed("solver") {
		cfg.Solver = solverName
	}
	if flags.Changed("update") {
		cfg.Update = updateAlgorithm
	}
	if flags.Changed("selective") {
		cfg.SelectiveUpdate = selectiveUpdate
	}
	if flags.Changed("check") {
		cfg.CheckInvariants = checkInvariants
	}
	if flags.Changed("concurrency-limit") {
		cfg.ConcurrencyLimit = concurrencyLimit
	}
}
