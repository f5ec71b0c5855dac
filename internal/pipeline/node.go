package pipeline

import (
	"context"
	"fmt"

	"github.com/xomicsdatascience/pscs-api/internal/interaction"
	"github.com/xomicsdatascience/pscs-api/internal/ir"
)

// Kind classifies nodes by their ports.
type Kind string

const (
	// KindInput nodes take no inputs and load data from outside the pipeline.
	KindInput Kind = "input"
	// KindOutput nodes produce no output for other nodes; their result is not kept.
	KindOutput Kind = "output"
	// KindSIMO nodes take one or more inputs and feed any number of consumers.
	KindSIMO Kind = "simo"
)

// ParseKind validates a kind name. The empty string means KindSIMO.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "", KindSIMO:
		return KindSIMO, nil
	case KindInput, KindOutput:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown node kind %q: must be input, output, or simo", s)
	}
}

// ProcessFunc is a node's processing logic. It receives the upstream
// payloads in slot order and the node's bound parameters, and returns the
// node's single output. The engine calls it at most once per run and never
// interprets the payloads.
type ProcessFunc func(ctx context.Context, inputs []any, params ir.Object) (any, error)

// Cloner is implemented by payloads the engine copies before handing them to
// a consumer. Payloads that do not implement it are shared as is.
type Cloner interface {
	Clone() any
}

// Node is one unit of computation in a graph.
type Node struct {
	// ID is unique within a graph.
	ID string

	// Type names the node type the node was built from (informational).
	Type string

	Kind Kind

	// NumInputs is the number of positional input slots.
	NumInputs int

	// Params are the coerced parameter values. Field references in
	// Requirements and Effects resolve against these.
	Params ir.Object

	Requirements interaction.List
	Effects      interaction.List

	Process ProcessFunc
}

// NumOutputs is 0 for output nodes and 1 for every other kind.
func (n *Node) NumOutputs() int {
	if n.Kind == KindOutput {
		return 0
	}
	return 1
}

// KeepsResult reports whether the node's result is retained for consumers.
func (n *Node) KeepsResult() bool {
	return n.Kind != KindOutput
}

func (n *Node) normalize() error {
	if n.ID == "" {
		return fmt.Errorf("%w: node id is required", ErrInvalidNode)
	}
	kind, err := ParseKind(string(n.Kind))
	if err != nil {
		return fmt.Errorf("%w: node %s: %v", ErrInvalidNode, n.ID, err)
	}
	n.Kind = kind

	switch n.Kind {
	case KindInput:
		if n.NumInputs != 0 {
			return fmt.Errorf("%w: input node %s cannot declare %d inputs", ErrInvalidNode, n.ID, n.NumInputs)
		}
	default:
		if n.NumInputs < 1 {
			return fmt.Errorf("%w: %s node %s needs at least one input", ErrInvalidNode, n.Kind, n.ID)
		}
	}
	if n.Params == nil {
		n.Params = ir.Object{}
	}
	return nil
}
