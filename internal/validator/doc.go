// Package validator checks a pipeline graph's data contracts before anything
// runs.
//
// Nodes are visited in topological order. Each node sees the union of the
// guarantees produced by every node feeding it, checks its requirements
// against that set, and on success passes the set plus its own effects on
// to its consumers. A failing node is reported and everything downstream of
// it is blocked; sibling branches are still checked, so one report lists
// every problem in the graph.
package validator
