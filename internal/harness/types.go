package harness

import (
	"github.com/xomicsdatascience/pscs-api/internal/engine"
	"github.com/xomicsdatascience/pscs-api/internal/store"
	"github.com/xomicsdatascience/pscs-api/internal/validator"
)

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// RunID is the id the run was recorded under.
	RunID string `json:"run_id"`

	// Trace is the run's event log as read back from the ledger.
	Trace []engine.Event `json:"trace"`

	// Errors lists every expectation that did not hold.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// States is each node's latest recorded state.
	States map[string]engine.State `json:"states,omitempty"`

	// Failures are the recorded validation failures.
	Failures []store.ValidationFailure `json:"failures,omitempty"`

	// Report is the validator's report for the run.
	Report *validator.Report `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []engine.Event{},
		Errors: []string{},
		States: make(map[string]engine.State),
	}
}

// AddError adds a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// eventsFor returns the trace events of one node.
func (r *Result) eventsFor(nodeID string) []engine.Event {
	var out []engine.Event
	for _, ev := range r.Trace {
		if ev.NodeID == nodeID {
			out = append(out, ev)
		}
	}
	return out
}

// seqOf returns the seq at which nodeID entered state s, or 0.
func (r *Result) seqOf(nodeID string, s engine.State) int64 {
	for _, ev := range r.eventsFor(nodeID) {
		if ev.State == s {
			return ev.Seq
		}
	}
	return 0
}
