package designer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xomicsdatascience/pscs-api/internal/ir"
)

// Definition is an unbuilt pipeline. Node order is significant: it is the
// insertion order of the built graph and so breaks ties in execution order.
type Definition struct {
	Nodes []*NodeDef
}

// NodeDef is one node of a Definition.
type NodeDef struct {
	ID string

	// DesignerID is the designer's own node id. It can differ from ID, which
	// is derived from the node's connectors.
	DesignerID string

	Proc   string
	Module string

	// Params holds raw values: string, json.Number, float64, bool, []any,
	// map[string]any or nil.
	Params map[string]any

	// Inputs names the upstream node of each input slot, in slot order.
	Inputs []string
}

// TypeName is the name the node type is looked up by.
func (n *NodeDef) TypeName() string {
	if n.Module == "" {
		return n.Proc
	}
	return n.Module + "." + n.Proc
}

// Node returns the node with the given id, matching ID first and then
// DesignerID.
func (d *Definition) Node(id string) (*NodeDef, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	for _, n := range d.Nodes {
		if n.DesignerID != "" && n.DesignerID == id {
			return n, true
		}
	}
	return nil, false
}

// Canonical returns the definition as an ir.Object suitable for hashing.
// DesignerID is presentation only and is left out.
func (d *Definition) Canonical() (ir.Object, error) {
	nodes := make(ir.Array, len(d.Nodes))
	for i, n := range d.Nodes {
		params, err := ir.FromNative(nativeParams(n.Params))
		if err != nil {
			return nil, fmt.Errorf("node %s params: %w", n.ID, err)
		}
		inputs := make(ir.Array, len(n.Inputs))
		for j, in := range n.Inputs {
			inputs[j] = ir.String(in)
		}
		nodes[i] = ir.Object{
			"id":     ir.String(n.ID),
			"proc":   ir.String(n.Proc),
			"module": ir.String(n.Module),
			"inputs": inputs,
			"params": params,
		}
	}
	return ir.Object{"nodes": nodes}, nil
}

// Hash is the content hash of the definition.
func (d *Definition) Hash() (string, error) {
	obj, err := d.Canonical()
	if err != nil {
		return "", err
	}
	return ir.PipelineHash(obj)
}

func nativeParams(p map[string]any) map[string]any {
	if p == nil {
		return map[string]any{}
	}
	return p
}

// validate checks ids are present and unique and that inputs name nodes of
// the definition.
func (d *Definition) validate() error {
	seen := make(map[string]bool, len(d.Nodes))
	for _, n := range d.Nodes {
		if n.ID == "" {
			return fmt.Errorf("%w: node with empty id", ErrInvalidDefinition)
		}
		if seen[n.ID] {
			return fmt.Errorf("%w: duplicate node id %q", ErrInvalidDefinition, n.ID)
		}
		seen[n.ID] = true
		if n.Proc == "" {
			return fmt.Errorf("%w: node %s has no processor name", ErrInvalidDefinition, n.ID)
		}
	}
	for _, n := range d.Nodes {
		for slot, in := range n.Inputs {
			if !seen[in] {
				return fmt.Errorf("%w: node %s slot %d: %w %q", ErrInvalidDefinition, n.ID, slot, ErrUnknownNode, in)
			}
		}
	}
	return nil
}

// LoadFile reads a definition, choosing the format by extension: ".hcl" is
// HCL and anything else is designer JSON.
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".hcl") {
		return LoadHCL(path, data)
	}
	return LoadJSON(data)
}
