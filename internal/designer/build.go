package designer

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/xomicsdatascience/pscs-api/internal/catalog"
	"github.com/xomicsdatascience/pscs-api/internal/coerce"
	"github.com/xomicsdatascience/pscs-api/internal/ir"
	"github.com/xomicsdatascience/pscs-api/internal/pipeline"
)

// Build resolves every node type, binds parameters and connects the edges.
// A nil coercer means coerce.CtyCoercer.
//
// All parameter problems across the definition are reported together, each
// as a *ParameterInitializationError. Graph errors (slot misuse, cycles) are
// returned as soon as they occur.
func Build(def *Definition, reg *catalog.Registry, coercer coerce.Coercer) (*pipeline.Graph, error) {
	if coercer == nil {
		coercer = coerce.CtyCoercer{}
	}
	if err := def.validate(); err != nil {
		return nil, err
	}

	g := pipeline.New()
	var paramErrs []error
	for _, n := range def.Nodes {
		nt, err := reg.Lookup(n.TypeName())
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", n.ID, err)
		}

		params, errs := bindParams(n, nt, coercer)
		if len(errs) > 0 {
			paramErrs = append(paramErrs, errs...)
			continue
		}
		if err := g.AddNode(nt.NewNode(n.ID, params)); err != nil {
			return nil, err
		}
	}
	if len(paramErrs) > 0 {
		return nil, errors.Join(paramErrs...)
	}

	for _, n := range def.Nodes {
		for slot, from := range n.Inputs {
			if err := g.Connect(from, n.ID, slot); err != nil {
				return nil, fmt.Errorf("connect %s -> %s[%d]: %w", from, n.ID, slot, err)
			}
		}
	}

	slog.Debug("pipeline built", "nodes", g.Len(), "edges", len(g.Edges()))
	return g, nil
}

// bindParams coerces the declared parameters of one node. A missing or null
// value falls back to the declared default.
func bindParams(n *NodeDef, nt *catalog.NodeType, coercer coerce.Coercer) (ir.Object, []error) {
	var errs []error

	names := make([]string, 0, len(n.Params))
	for name := range n.Params {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if _, ok := nt.Parameter(name); !ok {
			errs = append(errs, &ParameterInitializationError{NodeID: n.ID, Param: name, Err: ErrUnknownParameter})
		}
	}

	params := make(ir.Object, len(nt.Parameters))
	for _, p := range nt.Parameters {
		raw, ok := n.Params[p.Name]
		if !ok || raw == nil {
			if p.Required() {
				errs = append(errs, &ParameterInitializationError{NodeID: n.ID, Param: p.Name, Hint: p.Type, Err: ErrMissingParameter})
				continue
			}
			params[p.Name] = p.Default
			continue
		}

		v, err := coercer.Coerce(raw, p.Type)
		if err != nil {
			errs = append(errs, &ParameterInitializationError{NodeID: n.ID, Param: p.Name, Hint: p.Type, Err: err})
			continue
		}
		if _, null := v.(ir.Null); null && !p.Required() {
			v = p.Default
		}
		params[p.Name] = v
	}
	return params, errs
}
