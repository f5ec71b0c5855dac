package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidNode    = errors.New("invalid node")
	ErrDuplicateNode  = errors.New("duplicate node id")
	ErrUnknownNode    = errors.New("unknown node")
	ErrSlotOutOfRange = errors.New("input slot out of range")
	ErrSlotOccupied   = errors.New("input slot already connected")
	ErrNoOutput       = errors.New("node has no output")

	// ErrPreviousNodesNotRun is returned when a node's inputs are read
	// before every upstream node has completed.
	ErrPreviousNodesNotRun = errors.New("previous nodes not run")
)

// CyclicGraphError reports an edge that would make the graph cyclic.
// Path starts and ends at the same node.
type CyclicGraphError struct {
	Path []string
}

// Error implements the error interface.
func (e *CyclicGraphError) Error() string {
	return fmt.Sprintf("graph is not acyclic: %s", strings.Join(e.Path, " → "))
}

// IsCyclicGraph reports whether err is, or wraps, a CyclicGraphError.
func IsCyclicGraph(err error) bool {
	var ce *CyclicGraphError
	return errors.As(err, &ce)
}
