package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoProcessor is returned for a node with no processing function bound.
var ErrNoProcessor = errors.New("no processor bound to node")

// DoubleTerminationError reports a second terminal write to a node's result
// slot. It always indicates a bug: a node produces exactly one result per run.
type DoubleTerminationError struct {
	NodeID string
}

// Error implements the error interface.
func (e *DoubleTerminationError) Error() string {
	return fmt.Sprintf("node %s already produced its result", e.NodeID)
}

// IsDoubleTermination reports whether err is, or wraps, a DoubleTerminationError.
func IsDoubleTermination(err error) bool {
	var de *DoubleTerminationError
	return errors.As(err, &de)
}

// NodeError attaches a node's identity to the error its processor returned.
type NodeError struct {
	NodeID string
	Err    error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s failed: %v", e.NodeID, e.Err)
}

// Unwrap returns the processor's error.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError wraps a value recovered from a panicking processor.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("processor panicked: %v", e.Value)
}

// RunError aggregates the node failures of one run.
type RunError struct {
	RunID    string
	Failures []*NodeError
}

// Error implements the error interface.
func (e *RunError) Error() string {
	ids := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		ids[i] = f.NodeID
	}
	return fmt.Sprintf("run %s: %d node(s) failed: %s", e.RunID, len(e.Failures), strings.Join(ids, ", "))
}

// Unwrap exposes every node failure to errors.Is and errors.As.
func (e *RunError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// IsNodeFailure reports whether err is, or wraps, a NodeError.
func IsNodeFailure(err error) bool {
	var ne *NodeError
	return errors.As(err, &ne)
}
