// Package designer loads pipeline definitions and builds them into graphs.
//
// A Definition is the declarative form of a pipeline: node ids, the node
// type each one instantiates, raw parameter values, and the upstream node
// feeding each input slot. Two on-disk forms are supported:
//
//   - the JSON exported by the pipeline designer, where edges are encoded
//     as "<tag>-<src>-<dst>" connector strings on both endpoints
//   - HCL files with one `node "<id>" { ... }` block per node
//
// Build resolves each node type in a catalog.Registry, coerces the raw
// parameter values through a coerce.Coercer, and connects the edges.
// Raw values stay untouched in the Definition, so its Hash identifies the
// pipeline as the author wrote it.
package designer
