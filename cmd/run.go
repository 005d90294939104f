package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/simgrid/simgrid-sub014/sim/engine"
	"github.com/simgrid/simgrid-sub014/sim/resource"
	"github.com/simgrid/simgrid-sub014/sim/scenario"
	"github.com/simgrid/simgrid-sub014/sim/trace"
)

// RunOutput is the JSON document printed by `lmmsim run`.
type RunOutput struct {
	Solver      string                   `json:"solver"`
	Update      string                   `json:"update"`
	Clock       float64                  `json:"clock"`
	Steps       int                      `json:"steps"`
	Summary     *trace.TraceSummary      `json:"summary"`
	Completions []trace.CompletionRecord `json:"completions"`
}

// runCmd executes a scenario to completion or to the horizon
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scenario and print its completion trace",
	Run: func(cmd *cobra.Command, args []string) {
		s, err := loadScenario(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if cmd.Flags().Changed("horizon") {
			s.Horizon = horizon
		}
		logrus.Infof("Starting scenario %s: %d constraints, %d actions, solver=%s update=%s",
			scenarioPath, len(s.Constraints), len(s.Actions), s.Kernel.Solver, s.Kernel.Update)

		startTime := time.Now()
		if err := runScenario(s, os.Stdout); err != nil {
			logrus.Fatalf("%v", err)
		}
		logrus.Infof("Simulation complete in %s.", time.Since(startTime))
	},
}

// runScenario builds s, runs it and writes the RunOutput to w.
func runScenario(s *scenario.Scenario, w io.Writer) error {
	m := resource.NewModel(s.Kernel)
	inst, err := scenario.Build(s, m)
	if err != nil {
		return err
	}
	e := engine.New(m)
	inst.Schedule(e)

	limit := engine.NoHorizon
	if s.Horizon > 0 {
		limit = s.Horizon
	}
	st := e.Run(limit)

	cfg := m.Config()
	out := RunOutput{
		Solver:      cfg.Solver,
		Update:      cfg.Update,
		Clock:       e.Clock,
		Steps:       e.Steps(),
		Summary:     trace.Summarize(st),
		Completions: st.Completions,
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
