package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/simgrid/simgrid-sub014/sim/resource"
	"github.com/simgrid/simgrid-sub014/sim/scenario"
)

// ActionShare is the solved rate of one action.
type ActionShare struct {
	Action  string  `json:"action"`
	Rate    float64 `json:"rate"`
	Bound   float64 `json:"bound"`
	Penalty float64 `json:"penalty"`
}

// ConstraintUsage is the solved usage of one constraint.
type ConstraintUsage struct {
	Constraint  string  `json:"constraint"`
	Bound       float64 `json:"bound"`
	Usage       float64 `json:"usage"`
	Concurrency int     `json:"concurrency"`
}

// SolveOutput is the JSON document printed by `lmmsim solve`.
type SolveOutput struct {
	Solver      string            `json:"solver"`
	Actions     []ActionShare     `json:"actions"`
	Constraints []ConstraintUsage `json:"constraints"`
}

// solveCmd solves the initial sharing of a scenario once
var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Solve the sharing of the actions starting at date 0 and print the rates",
	Run: func(cmd *cobra.Command, args []string) {
		s, err := loadScenario(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if err := solveScenario(s, os.Stdout); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

// solveScenario builds the date-0 state of s, solves it once and writes the SolveOutput to w.
func solveScenario(s *scenario.Scenario, w io.Writer) error {
	m := resource.NewModel(s.Kernel)
	inst, err := scenario.Build(s, m)
	if err != nil {
		return err
	}
	m.System().Solve()

	out := SolveOutput{Solver: m.Config().Solver}
	for _, name := range inst.ActionNames() {
		a, ok := inst.Actions[name]
		if !ok {
			continue
		}
		out.Actions = append(out.Actions, ActionShare{
			Action:  name,
			Rate:    a.Rate(),
			Bound:   a.Bound(),
			Penalty: a.Variable().Penalty(),
		})
	}
	for _, cs := range s.Constraints {
		c := inst.Constraints[cs.Name]
		out.Constraints = append(out.Constraints, ConstraintUsage{
			Constraint:  cs.Name,
			Bound:       c.Bound(),
			Usage:       c.Usage(),
			Concurrency: c.ConcurrencyCurrent(),
		})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding solve output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
