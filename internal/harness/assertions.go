package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/xomicsdatascience/pscs-api/internal/engine"
	"github.com/xomicsdatascience/pscs-api/internal/interaction"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string         // Assertion type for categorization
	Expected string         // Human-readable expected outcome
	Actual   string         // Human-readable actual outcome
	Trace    []engine.Event // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s", ev.Seq, ev.NodeID, ev.State)
			if ev.Message != "" {
				fmt.Fprintf(&buf, " (%s)", ev.Message)
			}
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

func assertState(r *Result, a Assertion) error {
	got, ok := r.States[a.Node]
	if !ok {
		return &AssertionError{
			Type:     AssertState,
			Expected: fmt.Sprintf("node %s %s", a.Node, a.State),
			Actual:   "node not in trace",
			Trace:    r.Trace,
		}
	}
	if got != a.State {
		return &AssertionError{
			Type:     AssertState,
			Expected: fmt.Sprintf("node %s %s", a.Node, a.State),
			Actual:   string(got),
			Trace:    r.Trace,
		}
	}
	return nil
}

// assertCompletedBefore checks that Before completed before After started
// running.
func assertCompletedBefore(r *Result, a Assertion) error {
	done := r.seqOf(a.Before, engine.StateCompleted)
	started := r.seqOf(a.After, engine.StateRunning)

	switch {
	case done == 0:
		return &AssertionError{
			Type:     AssertCompletedBefore,
			Expected: fmt.Sprintf("%s completed", a.Before),
			Actual:   "no completed event",
			Trace:    r.Trace,
		}
	case started == 0:
		return &AssertionError{
			Type:     AssertCompletedBefore,
			Expected: fmt.Sprintf("%s running", a.After),
			Actual:   "no running event",
			Trace:    r.Trace,
		}
	case done >= started:
		return &AssertionError{
			Type:     AssertCompletedBefore,
			Expected: fmt.Sprintf("%s completed before %s started", a.Before, a.After),
			Actual: fmt.Sprintf("%s completed at seq %d, %s started at seq %d",
				a.Before, done, a.After, started),
			Trace: r.Trace,
		}
	}
	return nil
}

// assertGuarantee checks the set a node hands to its consumers.
func assertGuarantee(r *Result, a Assertion) error {
	attr, err := interaction.ParseAttribute(a.Attr)
	if err != nil {
		return err
	}
	want := interaction.Pair{Attr: attr, Field: a.Field}

	var out interaction.GuaranteeSet
	if r.Report != nil {
		out = r.Report.Outputs[a.Node]
	}
	if !out.Has(want) {
		return &AssertionError{
			Type:     AssertGuarantee,
			Expected: fmt.Sprintf("node %s guarantees %s", a.Node, want),
			Actual:   out.String(),
		}
	}
	return nil
}

func assertSkipped(r *Result, a Assertion) error {
	var missing []string
	for _, id := range a.Nodes {
		if r.States[id] != engine.StateSkipped {
			missing = append(missing, fmt.Sprintf("%s=%s", id, r.States[id]))
		}
	}
	if len(missing) > 0 {
		return &AssertionError{
			Type:     AssertSkipped,
			Expected: fmt.Sprintf("skipped: %v", a.Nodes),
			Actual:   strings.Join(missing, ", "),
			Trace:    r.Trace,
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertState:
			err = assertState(result, assertion)
		case AssertCompletedBefore:
			err = assertCompletedBefore(result, assertion)
		case AssertGuarantee:
			err = assertGuarantee(result, assertion)
		case AssertSkipped:
			err = assertSkipped(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}

// checkExpect compares the run against the scenario's expect clause.
func checkExpect(r *Result, exp Expect) []string {
	var errs []string

	valid := r.Report != nil && r.Report.Passed()
	if valid != exp.Valid {
		errs = append(errs, fmt.Sprintf("expect.valid: want %t, got %t", exp.Valid, valid))
	}

	ids := make([]string, 0, len(exp.States))
	for id := range exp.States {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		got, ok := r.States[id]
		if !ok {
			errs = append(errs, fmt.Sprintf("expect.states[%s]: node has no recorded state", id))
			continue
		}
		if got != exp.States[id] {
			errs = append(errs, fmt.Sprintf("expect.states[%s]: want %s, got %s", id, exp.States[id], got))
		}
	}

	want := make([]string, len(exp.Failures))
	for i, f := range exp.Failures {
		want[i] = f.Node + ":" + f.Code
	}
	got := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		got[i] = f.NodeID + ":" + f.Code
	}
	slices.Sort(want)
	slices.Sort(got)
	if !slices.Equal(want, got) {
		errs = append(errs, fmt.Sprintf("expect.failures: want %v, got %v", want, got))
	}
	return errs
}
