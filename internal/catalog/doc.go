// Package catalog describes the node types a pipeline can be built from.
//
// A Registry binds each NodeType's static metadata (ports, parameters,
// requirements and effects) to the Go function that processes it. Export
// renders a registry as the nested package document a pipeline designer
// reads to offer nodes to users.
package catalog
