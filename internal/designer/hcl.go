package designer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// hclFile decodes every top-level block of a pipeline file.
type hclFile struct {
	Nodes []*hclNode `hcl:"node,block"`
}

// hclNode is a `node "<id>" { ... }` block.
type hclNode struct {
	ID     string         `hcl:"id,label"`
	Proc   string         `hcl:"proc"`
	Module string         `hcl:"module,optional"`
	Inputs []string       `hcl:"inputs,optional"`
	Params hcl.Expression `hcl:"params,optional"`
}

// LoadHCL parses an HCL pipeline. filename is used in diagnostics only.
//
//	node "read" {
//	  proc   = "ReadDataset"
//	  module = "io"
//	  params = { path = "pbmc.json" }
//	}
//	node "neighbors" {
//	  proc   = "ComputeNeighbors"
//	  inputs = ["read"]
//	}
func LoadHCL(filename string, src []byte) (*Definition, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: failed to parse %s: %w", ErrInvalidDefinition, filename, diags)
	}

	var root hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("%w: failed to decode %s: %w", ErrInvalidDefinition, filename, diags)
	}

	def := &Definition{}
	for _, n := range root.Nodes {
		params, err := hclParams(n.Params)
		if err != nil {
			return nil, fmt.Errorf("%w: node %s: %w", ErrInvalidDefinition, n.ID, err)
		}
		def.Nodes = append(def.Nodes, &NodeDef{
			ID:     n.ID,
			Proc:   n.Proc,
			Module: n.Module,
			Params: params,
			Inputs: n.Inputs,
		})
	}
	if err := def.validate(); err != nil {
		return nil, err
	}
	return def, nil
}

// hclParams evaluates the params object without variables and lowers it to
// the same raw form the JSON loader produces.
func hclParams(expr hcl.Expression) (map[string]any, error) {
	if expr == nil {
		return map[string]any{}, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	if val.IsNull() {
		return map[string]any{}, nil
	}
	if !val.IsWhollyKnown() {
		return nil, errors.New("params must be known values")
	}
	ty := val.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, fmt.Errorf("params must be an object, got %s", ty.FriendlyName())
	}

	raw, err := ctyjson.SimpleJSONValue{Value: val}.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("params: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var params map[string]any
	if err := dec.Decode(&params); err != nil {
		return nil, fmt.Errorf("params: %w", err)
	}
	return params, nil
}
