package trace

// SimulationTrace collects completion records in the order they were observed.
type SimulationTrace struct {
	Completions []CompletionRecord `json:"completions"`
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace() *SimulationTrace {
	return &SimulationTrace{
		Completions: make([]CompletionRecord, 0),
	}
}

// Record appends a completion record.
func (st *SimulationTrace) Record(record CompletionRecord) {
	st.Completions = append(st.Completions, record)
}

// Len returns the number of records.
func (st *SimulationTrace) Len() int {
	return len(st.Completions)
}

// ByAction indexes the records by action name. When a name appears more than
// once the last record wins.
func (st *SimulationTrace) ByAction() map[string]CompletionRecord {
	out := make(map[string]CompletionRecord, len(st.Completions))
	for _, r := range st.Completions {
		out[r.Action] = r
	}
	return out
}
