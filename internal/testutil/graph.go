package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/xomicsdatascience/pscs-api/internal/interaction"
	"github.com/xomicsdatascience/pscs-api/internal/ir"
	"github.com/xomicsdatascience/pscs-api/internal/pipeline"
)

// NodeOption configures a node built by Node.
type NodeOption func(*pipeline.Node)

// Kind sets the node kind. Input nodes get zero input slots.
func Kind(k pipeline.Kind) NodeOption {
	return func(n *pipeline.Node) {
		n.Kind = k
		if k == pipeline.KindInput {
			n.NumInputs = 0
		}
	}
}

// Inputs sets the number of input slots.
func Inputs(count int) NodeOption {
	return func(n *pipeline.Node) { n.NumInputs = count }
}

// Requires sets the node's requirement list.
func Requires(items ...interaction.Interaction) NodeOption {
	return func(n *pipeline.Node) { n.Requirements = interaction.NewList(items...) }
}

// Effects sets the node's effect list.
func Effects(items ...interaction.Interaction) NodeOption {
	return func(n *pipeline.Node) { n.Effects = interaction.NewList(items...) }
}

// Params sets the node's bound parameters.
func Params(p ir.Object) NodeOption {
	return func(n *pipeline.Node) { n.Params = p }
}

// Process sets the node's processor.
func Process(fn pipeline.ProcessFunc) NodeOption {
	return func(n *pipeline.Node) { n.Process = fn }
}

// Node builds a simo node with one input slot and a Label processor,
// then applies opts.
func Node(id string, opts ...NodeOption) *pipeline.Node {
	n := &pipeline.Node{
		ID:        id,
		Type:      "test." + id,
		Kind:      pipeline.KindSIMO,
		NumInputs: 1,
		Process:   Label(id),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Edge is one connection for Graph.
type Edge struct {
	From, To string
	Slot     int
}

// E is shorthand for an Edge.
func E(from, to string, slot int) Edge {
	return Edge{From: from, To: to, Slot: slot}
}

// Graph adds nodes in order and connects edges, failing the test on any
// error.
func Graph(t testing.TB, nodes []*pipeline.Node, edges ...Edge) *pipeline.Graph {
	t.Helper()
	g := pipeline.New()
	for _, n := range nodes {
		if err := g.AddNode(n); err != nil {
			t.Fatalf("AddNode(%s): %v", n.ID, err)
		}
	}
	for _, e := range edges {
		if err := g.Connect(e.From, e.To, e.Slot); err != nil {
			t.Fatalf("Connect(%s, %s, %d): %v", e.From, e.To, e.Slot, err)
		}
	}
	return g
}

// Label returns a processor whose result records the shape of the
// computation: "name" for a source, "name[in0 in1]" otherwise.
func Label(name string) pipeline.ProcessFunc {
	return func(_ context.Context, inputs []any, _ ir.Object) (any, error) {
		if len(inputs) == 0 {
			return name, nil
		}
		parts := make([]string, len(inputs))
		for i, in := range inputs {
			parts[i] = fmt.Sprint(in)
		}
		return name + "[" + strings.Join(parts, " ") + "]", nil
	}
}

// Fail returns a processor that always fails with err.
func Fail(err error) pipeline.ProcessFunc {
	return func(context.Context, []any, ir.Object) (any, error) {
		return nil, err
	}
}
