package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/simgrid/simgrid-sub014/sim"
	"github.com/simgrid/simgrid-sub014/sim/scenario"
)

var (
	generateSeed    int64  // Seed of the random scenario
	generateActions int    // Number of actions to generate
	generateOutput  string // Output path, stdout when empty
)

// generateCmd writes a random scenario
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a random scenario as YAML",
	Run: func(cmd *cobra.Command, args []string) {
		if generateActions <= 0 {
			logrus.Fatalf("--actions must be positive, got %d", generateActions)
		}
		var w io.Writer = os.Stdout
		if generateOutput != "" {
			f, err := os.Create(generateOutput)
			if err != nil {
				logrus.Fatalf("Failed to create %s: %v", generateOutput, err)
			}
			defer f.Close()
			w = f
		}
		if err := writeGenerated(generateSeed, generateActions, w); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

// writeGenerated writes the scenario of n actions drawn from seed to w.
func writeGenerated(seed int64, n int, w io.Writer) error {
	s := scenario.Generate(sim.NewPartitionedRNG(sim.NewSimulationKey(seed)), n)
	if err := s.Validate(); err != nil {
		return fmt.Errorf("generated scenario is invalid: %w", err)
	}
	return s.Encode(w)
}
