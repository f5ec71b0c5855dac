package compiler

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"

	"github.com/xomicsdatascience/pscs-api/internal/catalog"
	"github.com/xomicsdatascience/pscs-api/internal/interaction"
	"github.com/xomicsdatascience/pscs-api/internal/ir"
	"github.com/xomicsdatascience/pscs-api/internal/pipeline"
)

//go:embed schema.cue
var schemaSource []byte

// schemaFor compiles the node-type schema in v's context. CUE values can
// only be unified with values from the same runtime.
func schemaFor(v cue.Value) cue.Value {
	return v.Context().CompileBytes(schemaSource, cue.Filename("schema.cue")).
		LookupPath(cue.ParsePath("#NodeType"))
}

// CompileNodeType turns one node-type declaration into a catalog.NodeType.
// The value should be the declaration itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`node: Leiden: { module: "clustering" }`)
//	nt, err := CompileNodeType(v.LookupPath(cue.ParsePath("node.Leiden")))
//
// The declaration is unified with the embedded #NodeType schema first, so
// unknown fields, unknown attributes and malformed ports are rejected with
// their CUE position.
func CompileNodeType(v cue.Value) (*catalog.NodeType, error) {
	var name string
	if labels := v.Path().Selectors(); len(labels) > 0 {
		name = labels[len(labels)-1].String()
	}
	if err := v.Err(); err != nil {
		return nil, formatCUEError(name, err)
	}

	if err := schemaFor(v).Unify(v).Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(name, err)
	}

	// Fields are read from the declaration itself. Absent ports stay zero
	// and catalog registration fills their defaults.

	nt := &catalog.NodeType{Name: name}
	var err error

	if nt.Module, err = optionalString(v, "module"); err != nil {
		return nil, wrap(name, err)
	}
	kind, err := optionalString(v, "kind")
	if err != nil {
		return nil, wrap(name, err)
	}
	nt.Kind = pipeline.Kind(kind)
	if nt.NumInputs, err = optionalInt(v, "inputs"); err != nil {
		return nil, wrap(name, err)
	}
	if nt.NumOutputs, err = optionalInt(v, "outputs"); err != nil {
		return nil, wrap(name, err)
	}
	if nt.Doc, err = optionalString(v, "doc"); err != nil {
		return nil, wrap(name, err)
	}
	if nt.DocURL, err = optionalString(v, "doc_url"); err != nil {
		return nil, wrap(name, err)
	}

	if nt.Parameters, err = parseParams(name, v); err != nil {
		return nil, err
	}
	if nt.ImportantParameters, err = parseImportant(name, v, nt); err != nil {
		return nil, err
	}
	if nt.Requirements, err = parseInteractions(name, v, "requires"); err != nil {
		return nil, err
	}
	if nt.Effects, err = parseInteractions(name, v, "effects"); err != nil {
		return nil, err
	}
	return nt, nil
}

// CompileNodes compiles every declaration under the top-level "node" field.
// All declarations are attempted; the errors of every failing one are
// returned alongside the ones that compiled.
func CompileNodes(v cue.Value) ([]*catalog.NodeType, []error) {
	nodes := v.LookupPath(cue.ParsePath("node"))
	if !nodes.Exists() {
		return nil, nil
	}
	iter, err := nodes.Fields()
	if err != nil {
		return nil, []error{formatCUEError("", err)}
	}

	var types []*catalog.NodeType
	var errs []error
	for iter.Next() {
		nt, err := CompileNodeType(iter.Value())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		types = append(types, nt)
	}
	return types, errs
}

func parseParams(node string, v cue.Value) ([]catalog.Parameter, error) {
	pv := v.LookupPath(cue.ParsePath("params"))
	if !pv.Exists() {
		return nil, nil
	}
	iter, err := pv.Fields()
	if err != nil {
		return nil, formatCUEError(node, err)
	}

	var params []catalog.Parameter
	for iter.Next() {
		p := catalog.Parameter{Name: iter.Label(), Type: "Any"}
		if tv := iter.Value().LookupPath(cue.ParsePath("type")); tv.Exists() {
			if p.Type, err = tv.String(); err != nil {
				return nil, formatCUEError(node, err)
			}
		}

		dv := iter.Value().LookupPath(cue.ParsePath("default"))
		if dv.Exists() {
			raw, err := dv.MarshalJSON()
			if err != nil {
				return nil, formatCUEError(node, err)
			}
			if p.Default, err = ir.UnmarshalValue(raw); err != nil {
				return nil, &CompileError{Node: node, Field: "params." + p.Name, Message: err.Error(), Pos: dv.Pos()}
			}
		}
		params = append(params, p)
	}
	return params, nil
}

func parseImportant(node string, v cue.Value, nt *catalog.NodeType) ([]string, error) {
	iv := v.LookupPath(cue.ParsePath("important"))
	if !iv.Exists() {
		return nil, nil
	}
	var names []string
	if err := iv.Decode(&names); err != nil {
		return nil, formatCUEError(node, err)
	}
	for _, name := range names {
		if _, ok := nt.Parameter(name); !ok {
			return nil, &CompileError{
				Node:    node,
				Field:   "important",
				Message: fmt.Sprintf("%q is not a declared parameter", name),
				Pos:     iv.Pos(),
			}
		}
	}
	return names, nil
}

func parseInteractions(node string, v cue.Value, field string) (interaction.List, error) {
	lv := v.LookupPath(cue.ParsePath(field))
	if !lv.Exists() {
		return interaction.List{}, nil
	}
	var raw []map[string][]string
	if err := lv.Decode(&raw); err != nil {
		return interaction.List{}, formatCUEError(node, err)
	}
	list, err := interaction.ParseList(raw)
	if err != nil {
		return interaction.List{}, &CompileError{Node: node, Field: field, Message: err.Error(), Pos: lv.Pos()}
	}
	return list, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{Field: field, Message: err.Error(), Pos: fv.Pos()}
	}
	return s, nil
}

func optionalInt(v cue.Value, field string) (int, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, nil
	}
	i, err := fv.Int64()
	if err != nil {
		return 0, &CompileError{Field: field, Message: err.Error(), Pos: fv.Pos()}
	}
	return int(i), nil
}

func wrap(node string, err error) error {
	if ce, ok := err.(*CompileError); ok {
		ce.Node = node
		return ce
	}
	return err
}
