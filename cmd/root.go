package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/simgrid/simgrid-sub014/sim"
)

var (
	logLevel         string  // Log verbosity level
	scenarioPath     string  // Scenario YAML file
	kernelConfigPath string  // Optional kernel configuration YAML, applied over the scenario kernel
	solverName       string  // Solver override
	updateAlgorithm  string  // Update discipline override
	selectiveUpdate  bool    // Selective update override
	checkInvariants  bool    // Run the invariant checks at every solve
	concurrencyLimit int     // Default concurrency limit override
	horizon          float64 // Simulation horizon override
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "lmmsim",
	Short: "Max-min fair sharing kernel for resource simulation",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// registerKernelFlags adds the flags overriding the kernel section of a scenario.
func registerKernelFlags(c *cobra.Command) {
	c.Flags().StringVar(&scenarioPath, "scenario", "", "Scenario YAML file")
	c.Flags().StringVar(&kernelConfigPath, "kernel-config", "", "Kernel configuration YAML replacing the scenario kernel section")
	c.Flags().StringVar(&solverName, "solver", sim.SolverMaxMin, "Sharing solver (maxmin, fair-bottleneck, bmf)")
	c.Flags().StringVar(&updateAlgorithm, "update", sim.UpdateFull, "Update algorithm (full, lazy)")
	c.Flags().BoolVar(&selectiveUpdate, "selective", false, "Only re-solve the constraints touched since the last solve")
	c.Flags().BoolVar(&checkInvariants, "check", false, "Check capacity and concurrency invariants at every solve")
	c.Flags().IntVar(&concurrencyLimit, "concurrency-limit", -1, "Concurrency limit of constraints that do not set one (-1 = unlimited)")
	_ = c.MarkFlagRequired("scenario")
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	registerKernelFlags(runCmd)
	runCmd.Flags().Float64Var(&horizon, "horizon", 0, "Simulation horizon (0 = scenario value, or until every action completed)")
	registerKernelFlags(solveCmd)
	generateCmd.Flags().Int64Var(&generateSeed, "seed", 42, "Seed of the random scenario")
	generateCmd.Flags().IntVar(&generateActions, "actions", 30, "Number of actions")
	generateCmd.Flags().StringVar(&generateOutput, "out", "", "Output file (default stdout)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(solveCmd)
	rootCmd.AddCommand(generateCmd)
}
