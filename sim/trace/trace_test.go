package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimulationTrace_Record_KeepsOrder(t *testing.T) {
	// GIVEN an empty trace
	st := NewSimulationTrace()

	// WHEN two completions are recorded
	st.Record(CompletionRecord{Action: "b", State: "finished", Time: 2})
	st.Record(CompletionRecord{Action: "a", State: "failed", Time: 1})

	// THEN they are kept in observation order
	assert.Equal(t, 2, st.Len())
	assert.Equal(t, "b", st.Completions[0].Action)
	assert.Equal(t, "a", st.Completions[1].Action)
}

func TestSimulationTrace_ByAction_IndexesByName(t *testing.T) {
	st := NewSimulationTrace()
	st.Record(CompletionRecord{Action: "x", State: "finished", Time: 3})
	st.Record(CompletionRecord{Action: "y", State: "finished", Time: 4})

	byName := st.ByAction()

	assert.Len(t, byName, 2)
	assert.Equal(t, 4.0, byName["y"].Time)
}

func TestCompletionRecord_Duration(t *testing.T) {
	r := CompletionRecord{Start: 1.5, Time: 4}
	assert.Equal(t, 2.5, r.Duration())
}
