package pipeline

import (
	"fmt"
	"slices"
)

// Edge carries From's output into slot Slot of To.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
	Slot int    `json:"slot"`
}

// OpenSlot is an input slot with no edge.
type OpenSlot struct {
	NodeID string `json:"node_id"`
	Slot   int    `json:"slot"`
}

// Graph is a DAG of nodes with positional edges.
//
// Graph is not safe for concurrent mutation. Once built it is read-only and
// may be shared by the validator and the engine.
type Graph struct {
	nodes   []*Node
	index   map[string]int
	inputs  map[string][]*Edge // per node, indexed by slot; nil entries are open
	outputs map[string][]Edge  // per node, in connection order
	edges   []Edge
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		index:   make(map[string]int),
		inputs:  make(map[string][]*Edge),
		outputs: make(map[string][]Edge),
	}
}

// AddNode inserts n. Insertion order breaks ties in TopologicalOrder.
// A node with an empty Kind is treated as KindSIMO.
func (g *Graph) AddNode(n *Node) error {
	if n == nil {
		return fmt.Errorf("%w: nil node", ErrInvalidNode)
	}
	if err := n.normalize(); err != nil {
		return err
	}
	if _, exists := g.index[n.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
	}
	g.index[n.ID] = len(g.nodes)
	g.nodes = append(g.nodes, n)
	g.inputs[n.ID] = make([]*Edge, n.NumInputs)
	return nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return nil, false
	}
	return g.nodes[i], true
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	return append([]*Node(nil), g.nodes...)
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Edges returns every edge in connection order.
func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// Connect routes from's output into the given input slot of to.
//
// Connect fails when either node is unknown, from is an output node, the
// slot is out of range or already taken, or the edge would close a cycle.
// A rejected edge leaves the graph unchanged.
func (g *Graph) Connect(from, to string, slot int) error {
	src, ok := g.Node(from)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, from)
	}
	dst, ok := g.Node(to)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, to)
	}
	if src.NumOutputs() == 0 {
		return fmt.Errorf("%w: %s is an output node", ErrNoOutput, from)
	}
	if slot < 0 || slot >= dst.NumInputs {
		if dst.Kind == KindInput {
			return fmt.Errorf("%w: input node %s receives no inputs", ErrSlotOutOfRange, to)
		}
		return fmt.Errorf("%w: %s has %d input(s), got slot %d", ErrSlotOutOfRange, to, dst.NumInputs, slot)
	}
	if existing := g.inputs[to][slot]; existing != nil {
		return fmt.Errorf("%w: %s slot %d is fed by %s", ErrSlotOccupied, to, slot, existing.From)
	}
	if path := g.pathBetween(to, from); path != nil {
		return &CyclicGraphError{Path: append([]string{from}, path...)}
	}

	e := Edge{From: from, To: to, Slot: slot}
	g.inputs[to][slot] = &e
	g.outputs[from] = append(g.outputs[from], e)
	g.edges = append(g.edges, e)
	return nil
}

// pathBetween returns a path of node ids from start to goal, or nil.
func (g *Graph) pathBetween(start, goal string) []string {
	visited := make(map[string]bool)
	var walk func(id string) []string
	walk = func(id string) []string {
		if id == goal {
			return []string{id}
		}
		if visited[id] {
			return nil
		}
		visited[id] = true
		for _, e := range g.outputs[id] {
			if rest := walk(e.To); rest != nil {
				return append([]string{id}, rest...)
			}
		}
		return nil
	}
	return walk(start)
}

// InputEdges returns the edges feeding id in slot order. Open slots are omitted.
func (g *Graph) InputEdges(id string) []Edge {
	var out []Edge
	for _, e := range g.inputs[id] {
		if e != nil {
			out = append(out, *e)
		}
	}
	return out
}

// Upstream returns the producers feeding id in slot order. A producer that
// feeds several slots appears once per slot.
func (g *Graph) Upstream(id string) []string {
	var out []string
	for _, e := range g.InputEdges(id) {
		out = append(out, e.From)
	}
	return out
}

// Downstream returns the distinct consumers of id in connection order.
func (g *Graph) Downstream(id string) []string {
	var out []string
	for _, e := range g.outputs[id] {
		if !slices.Contains(out, e.To) {
			out = append(out, e.To)
		}
	}
	return out
}

// Consumers returns the number of edges leaving id.
func (g *Graph) Consumers(id string) int {
	return len(g.outputs[id])
}

// Descendants returns every node reachable from id, in insertion order.
func (g *Graph) Descendants(id string) []string {
	seen := make(map[string]bool)
	stack := g.Downstream(id)
	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[next] {
			continue
		}
		seen[next] = true
		stack = append(stack, g.Downstream(next)...)
	}

	out := make([]string, 0, len(seen))
	for _, n := range g.nodes {
		if seen[n.ID] {
			out = append(out, n.ID)
		}
	}
	return out
}

// UnconnectedSlots lists input slots with no edge, by node insertion order then slot.
func (g *Graph) UnconnectedSlots() []OpenSlot {
	var out []OpenSlot
	for _, n := range g.nodes {
		for slot, e := range g.inputs[n.ID] {
			if e == nil {
				out = append(out, OpenSlot{NodeID: n.ID, Slot: slot})
			}
		}
	}
	return out
}

// Sources returns the nodes with no incoming edges, in insertion order.
func (g *Graph) Sources() []*Node {
	var out []*Node
	for _, n := range g.nodes {
		if len(g.InputEdges(n.ID)) == 0 {
			out = append(out, n)
		}
	}
	return out
}

// TopologicalOrder returns every node such that producers precede their
// consumers. Among nodes that are ready at the same time, the one inserted
// first comes first, so the order is deterministic.
func (g *Graph) TopologicalOrder() ([]*Node, error) {
	indegree := make([]int, len(g.nodes))
	for _, e := range g.edges {
		indegree[g.index[e.To]]++
	}

	var ready []int
	for i, d := range indegree {
		if d == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]*Node, 0, len(g.nodes))
	for len(ready) > 0 {
		i := ready[0]
		ready = ready[1:]
		n := g.nodes[i]
		order = append(order, n)

		for _, e := range g.outputs[n.ID] {
			j := g.index[e.To]
			indegree[j]--
			if indegree[j] == 0 {
				pos, _ := slices.BinarySearch(ready, j)
				ready = slices.Insert(ready, pos, j)
			}
		}
	}

	if len(order) != len(g.nodes) {
		for i, d := range indegree {
			if d > 0 {
				id := g.nodes[i].ID
				return nil, &CyclicGraphError{Path: g.cycleThrough(id)}
			}
		}
	}
	return order, nil
}

// cycleThrough reports some cycle reachable from id, for diagnostics.
func (g *Graph) cycleThrough(id string) []string {
	for _, e := range g.outputs[id] {
		if path := g.pathBetween(e.To, id); path != nil {
			return append([]string{id}, path...)
		}
	}
	return []string{id}
}
