// Package pipeline models a processing pipeline as a directed acyclic graph.
//
// Nodes have ordered input slots and a single output. An edge carries one
// upstream node's output into one positional slot of a downstream node;
// slot 0 is distinct from slot 1. The graph refuses edges that would close
// a cycle and yields a deterministic topological order with ties broken by
// insertion order.
package pipeline
