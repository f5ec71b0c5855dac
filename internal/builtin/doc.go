// Package builtin provides reference node types over an annotated dataset.
//
// The payload flowing between builtin nodes is *Dataset: a cells × genes
// matrix plus attribute → field → value annotations, where the attributes
// are the fixed set of the interaction package. Each processor's declared
// effects are exactly the fields it writes, so a validated pipeline of
// builtins never reads a field that is not there.
//
// Declarations live in nodes.cue and are compiled at registration time;
// Register binds them to the Go processors in this package.
package builtin
