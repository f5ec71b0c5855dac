package engine

// State is a node's position in the run state machine:
//
//	Pending → Ready → Running → Completed
//	                          ↘ Failed
//	Pending → Skipped
type State string

const (
	StatePending   State = "pending"
	StateReady     State = "ready"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateSkipped   State = "skipped"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateSkipped:
		return true
	default:
		return false
	}
}

// Event is one recorded state transition.
type Event struct {
	Seq     int64  `json:"seq"`
	NodeID  string `json:"node_id"`
	State   State  `json:"state"`
	Message string `json:"message,omitempty"`
}
