// Package trace records action completions observed while driving a simulation.
// This package has no dependencies on sim/ or sim/resource/; it stores pure data types.
package trace

// CompletionRecord captures one action leaving the started state.
type CompletionRecord struct {
	Action string  `json:"action"`
	State  string  `json:"state"` // "finished" or "failed"
	Start  float64 `json:"start"`
	Time   float64 `json:"time"`
	Cost   float64 `json:"cost"`
}

// Duration returns the time the action spent between creation and completion.
func (r CompletionRecord) Duration() float64 {
	return r.Time - r.Start
}
