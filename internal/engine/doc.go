// Package engine executes pipeline graphs.
//
// ARCHITECTURE:
//
// Single-Writer Run Loop:
// Each Run owns a loop goroutine that is the only writer of node states,
// the event log, and the recorder. Processors run on a bounded errgroup and
// report back over a channel; the loop applies their outcomes one at a time.
//
// Run Flow:
//  1. The graph is validated; nodes that fail, and their descendants, are
//     marked Skipped before anything runs.
//  2. Nodes whose upstream nodes have all completed become Ready and are
//     started in topological order.
//  3. A completed node's result is written once to the ResultCache and
//     becomes visible to its consumers.
//  4. A failed node's descendants are marked Skipped. Unrelated branches
//     keep running.
//
// Logical Clock:
// Every state transition is stamped with a seq from the run's Clock, so an
// event log replays in the same order it was produced.
//
// The engine never inspects payloads. Results are opaque values handed from
// producer to consumer in slot order.
package engine
