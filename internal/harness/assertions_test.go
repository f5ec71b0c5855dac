package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xomicsdatascience/pscs-api/internal/engine"
	"github.com/xomicsdatascience/pscs-api/internal/interaction"
	"github.com/xomicsdatascience/pscs-api/internal/validator"
)

func sampleResult() *Result {
	r := NewResult()
	r.Trace = []engine.Event{
		{Seq: 1, NodeID: "a", State: engine.StateReady},
		{Seq: 2, NodeID: "a", State: engine.StateRunning},
		{Seq: 3, NodeID: "a", State: engine.StateCompleted},
		{Seq: 4, NodeID: "b", State: engine.StateReady},
		{Seq: 5, NodeID: "b", State: engine.StateRunning},
		{Seq: 6, NodeID: "b", State: engine.StateFailed, Message: "boom"},
		{Seq: 7, NodeID: "c", State: engine.StateSkipped, Message: "upstream node b failed"},
	}
	r.States = map[string]engine.State{
		"a": engine.StateCompleted,
		"b": engine.StateFailed,
		"c": engine.StateSkipped,
	}
	r.Report = &validator.Report{
		Outputs: map[string]interaction.GuaranteeSet{
			"a": interaction.NewGuaranteeSet(interaction.Pair{Attr: interaction.AttrUns, Field: "neighbors"}),
		},
	}
	return r
}

func TestEvaluateAssertions_Pass(t *testing.T) {
	errs := EvaluateAssertions(sampleResult(), []Assertion{
		{Type: AssertState, Node: "b", State: engine.StateFailed},
		{Type: AssertCompletedBefore, Before: "a", After: "b"},
		{Type: AssertGuarantee, Node: "a", Attr: "uns", Field: "neighbors"},
		{Type: AssertSkipped, Nodes: []string{"c"}},
	})
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_Failures(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		want      []string
	}{
		{
			name:      "wrong state",
			assertion: Assertion{Type: AssertState, Node: "a", State: engine.StateFailed},
			want:      []string{"Expected: node a failed", "Actual: completed"},
		},
		{
			name:      "unknown node",
			assertion: Assertion{Type: AssertState, Node: "zz", State: engine.StateFailed},
			want:      []string{"node not in trace"},
		},
		{
			name:      "never completed",
			assertion: Assertion{Type: AssertCompletedBefore, Before: "b", After: "a"},
			want:      []string{"b completed", "no completed event"},
		},
		{
			name:      "never ran",
			assertion: Assertion{Type: AssertCompletedBefore, Before: "a", After: "c"},
			want:      []string{"c running", "no running event"},
		},
		{
			name:      "missing guarantee",
			assertion: Assertion{Type: AssertGuarantee, Node: "a", Attr: "obs", Field: "leiden"},
			want:      []string{"node a guarantees (obs, leiden)", "Actual: {uns: [neighbors]}"},
		},
		{
			name:      "guarantee of unchecked node",
			assertion: Assertion{Type: AssertGuarantee, Node: "c", Attr: "obs", Field: "leiden"},
			want:      []string{"Actual: {}"},
		},
		{
			name:      "not skipped",
			assertion: Assertion{Type: AssertSkipped, Nodes: []string{"a", "c"}},
			want:      []string{"Actual: a=completed"},
		},
		{
			name:      "unknown type",
			assertion: Assertion{Type: "trace_count"},
			want:      []string{`unknown assertion type "trace_count"`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(sampleResult(), []Assertion{tt.assertion})
			require.Len(t, errs, 1)
			for _, w := range tt.want {
				assert.Contains(t, errs[0], w)
			}
		})
	}
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertState,
		Expected: "x",
		Actual:   "y",
		Trace:    sampleResult().Trace,
	}
	msg := err.Error()
	assert.Contains(t, msg, "Full trace:")
	assert.Contains(t, msg, "[6] b failed (boom)")
	assert.Contains(t, msg, "[1] a ready\n")
}

func TestCheckExpect(t *testing.T) {
	r := sampleResult()
	assert.Empty(t, checkExpect(r, Expect{
		Valid:  true,
		States: map[string]engine.State{"a": engine.StateCompleted},
	}))

	r.Failures = nil
	errs := checkExpect(r, Expect{
		Valid:    true,
		Failures: []ExpectedFailure{{Node: "b", Code: validator.CodeUnconnectedInput}},
	})
	assert.Equal(t, []string{"expect.failures: want [b:unconnected_input], got []"}, errs)
}
