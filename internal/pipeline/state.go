package pipeline

import "time"

// State is a pipeline run state.
type State string

// Run states, in pipeline order. FAILED is reachable from any non-terminal state.
const (
	StateReceived  State = "RECEIVED"
	StateMasked    State = "MASKED"
	StateEnriched  State = "ENRICHED"
	StateRetrieved State = "RETRIEVED"
	StateGenerated State = "GENERATED"
	StateUnmasked  State = "UNMASKED"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
)

// Terminal reports whether no further transition can leave s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Transition is one recorded state change.
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}
