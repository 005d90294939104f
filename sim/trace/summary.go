package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	Total             int            `json:"total"`
	FinishedCount     int            `json:"finished"`
	FailedCount       int            `json:"failed"`
	Makespan          float64        `json:"makespan"`
	MeanCompletion    float64        `json:"mean_completion"`
	MeanDuration      float64        `json:"mean_duration"`
	MaxDuration       float64        `json:"max_duration"`
	StateDistribution map[string]int `json:"states"`
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		StateDistribution: make(map[string]int),
	}
	if st == nil || len(st.Completions) == 0 {
		return summary
	}

	totalCompletion, totalDuration := 0.0, 0.0
	for _, r := range st.Completions {
		summary.StateDistribution[r.State]++
		switch r.State {
		case "finished":
			summary.FinishedCount++
		case "failed":
			summary.FailedCount++
		}
		if r.Time > summary.Makespan {
			summary.Makespan = r.Time
		}
		if d := r.Duration(); d > summary.MaxDuration {
			summary.MaxDuration = d
		}
		totalCompletion += r.Time
		totalDuration += r.Duration()
	}
	summary.Total = len(st.Completions)
	summary.MeanCompletion = totalCompletion / float64(summary.Total)
	summary.MeanDuration = totalDuration / float64(summary.Total)

	return summary
}
