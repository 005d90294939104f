package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize_EmptyTrace_ZeroValues(t *testing.T) {
	// GIVEN an empty trace
	st := NewSimulationTrace()

	// WHEN summarized
	summary := Summarize(st)

	// THEN all counts are zero
	assert.Equal(t, 0, summary.Total)
	assert.Equal(t, 0, summary.FinishedCount)
	assert.Equal(t, 0, summary.FailedCount)
	assert.Equal(t, 0.0, summary.Makespan)
	assert.Empty(t, summary.StateDistribution)
}

func TestSummarize_NilTrace_ZeroValues(t *testing.T) {
	summary := Summarize(nil)
	assert.Equal(t, 0, summary.Total)
	assert.NotNil(t, summary.StateDistribution)
}

func TestSummarize_PopulatedTrace_CorrectStatistics(t *testing.T) {
	// GIVEN two finished actions and a failed one
	st := NewSimulationTrace()
	st.Record(CompletionRecord{Action: "a", State: "finished", Start: 0, Time: 2})
	st.Record(CompletionRecord{Action: "b", State: "failed", Start: 1, Time: 3})
	st.Record(CompletionRecord{Action: "c", State: "finished", Start: 0, Time: 7})

	// WHEN summarized
	summary := Summarize(st)

	// THEN counts and times match
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.FinishedCount)
	assert.Equal(t, 1, summary.FailedCount)
	assert.Equal(t, 7.0, summary.Makespan)
	assert.InDelta(t, 4.0, summary.MeanCompletion, 1e-12)
	assert.InDelta(t, 11.0/3, summary.MeanDuration, 1e-12)
	assert.Equal(t, 7.0, summary.MaxDuration)
	assert.Equal(t, map[string]int{"finished": 2, "failed": 1}, summary.StateDistribution)
}
