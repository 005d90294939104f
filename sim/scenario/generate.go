package scenario

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/simgrid/simgrid-sub014/sim"
)

// Generate returns a random scenario of n actions spread over n/3 constraints (at
// least one). Each subsystem of rng gets its own stream so that changing the
// number of actions does not move the constraint capacities.
//
// Capacities are log-normal, costs and start dates exponential and weights
// uniform. A quarter of the constraints limit their concurrency, some actions get
// a latency or a maximum duration, and a quarter get a suspend/resume pair.
func Generate(rng *sim.PartitionedRNG, n int) *Scenario {
	s := &Scenario{Kernel: sim.DefaultKernelConfig()}
	if n <= 0 {
		return s
	}
	cr := rng.ForSubsystem(sim.SubsystemConstraints)
	ar := rng.ForSubsystem(sim.SubsystemActions)
	er := rng.ForSubsystem(sim.SubsystemEvents)

	capacity := distuv.LogNormal{Mu: 0, Sigma: 0.75}
	cost := distuv.Exponential{Rate: 0.2}
	arrival := distuv.Exponential{Rate: 1}
	weight := distuv.Uniform{Min: 0.5, Max: 2}

	nc := max(1, n/3)
	for i := 0; i < nc; i++ {
		cs := ConstraintSpec{Name: fmt.Sprintf("c%d", i), Bound: round(capacity.Quantile(uniform(cr)))}
		if cr.Intn(5) == 0 {
			cs.Policy = "fatpipe"
		}
		if cr.Intn(4) == 0 {
			limit := 1 + cr.Intn(3)
			cs.ConcurrencyLimit = &limit
		}
		s.Constraints = append(s.Constraints, cs)
	}

	for i := 0; i < n; i++ {
		a := ActionSpec{
			Name: fmt.Sprintf("a%d", i),
			Cost: round(0.1 + cost.Quantile(uniform(ar))),
		}
		if ar.Intn(3) == 0 {
			a.Start = round(arrival.Quantile(uniform(ar)))
		}
		if ar.Intn(4) == 0 {
			a.Penalty = float64(1 + ar.Intn(3))
		}
		if ar.Intn(6) == 0 {
			a.Bound = round(0.1 + ar.Float64())
		}
		if ar.Intn(5) == 0 {
			d := round(1 + cost.Quantile(uniform(ar)))
			a.MaxDuration = &d
		}
		if ar.Intn(6) == 0 {
			a.Latency = round(0.1 + 0.5*arrival.Quantile(uniform(ar)))
		}
		// first use of a constraint binds it, repeats add to it
		used := map[string]bool{}
		for k := 1 + ar.Intn(min(3, nc)); k > 0; k-- {
			name := s.Constraints[ar.Intn(nc)].Name
			a.Uses = append(a.Uses, UseSpec{Constraint: name, Weight: round(weight.Quantile(uniform(ar))), Add: used[name]})
			used[name] = true
		}
		s.Actions = append(s.Actions, a)
	}

	for i := range s.Actions {
		if er.Intn(4) != 0 {
			continue
		}
		a := s.Actions[i]
		at := round(a.Start + arrival.Quantile(uniform(er)))
		s.Events = append(s.Events,
			EventSpec{Date: at, Op: OpSuspend, Action: a.Name},
			EventSpec{Date: round(at + arrival.Quantile(uniform(er))), Op: OpResume, Action: a.Name},
		)
		if er.Intn(2) == 0 {
			s.Events = append(s.Events, EventSpec{
				Date:   round(at + 0.5*arrival.Quantile(uniform(er))),
				Op:     OpSetMaxDuration,
				Action: a.Name,
				Value:  round(1 + cost.Quantile(uniform(er))),
			})
		}
	}
	return s
}

// uniform draws from (0, 1) so that quantiles stay finite.
func uniform(r *rand.Rand) float64 {
	for {
		if u := r.Float64(); u > 0 {
			return u
		}
	}
}

// round keeps three decimals so that generated files stay readable.
func round(v float64) float64 {
	return float64(int64(v*1000+0.5)) / 1000
}
