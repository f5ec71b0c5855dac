package catalog

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/xomicsdatascience/pscs-api/internal/interaction"
	"github.com/xomicsdatascience/pscs-api/internal/ir"
	"github.com/xomicsdatascience/pscs-api/internal/pipeline"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var modulePattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// Parameter is one declared node parameter.
type Parameter struct {
	Name string

	// Type is the type hint raw values are coerced with.
	Type string

	// Default is used when no value is supplied. It is nil for required
	// parameters; an optional parameter defaulting to null holds ir.Null{}.
	Default ir.Value
}

// Required reports whether the parameter has no default.
func (p Parameter) Required() bool {
	return p.Default == nil
}

// MarshalJSON renders {"name", "type", "default"}; required parameters have a
// null default.
func (p Parameter) MarshalJSON() ([]byte, error) {
	def, err := ir.MarshalValue(p.Default)
	if err != nil {
		return nil, fmt.Errorf("parameter %s default: %w", p.Name, err)
	}
	return json.Marshal(struct {
		Name    string          `json:"name"`
		Type    string          `json:"type"`
		Default json.RawMessage `json:"default"`
	}{p.Name, p.Type, def})
}

// NodeType is the static description of a kind of node.
type NodeType struct {
	Name string

	// Module is the dotted module path within its package, e.g. "clustering".
	// Empty places the type at the package root.
	Module string

	Kind       pipeline.Kind
	NumInputs  int
	NumOutputs int

	Requirements interaction.List
	Effects      interaction.List

	Parameters []Parameter

	// ImportantParameters are shown by default in a designer.
	ImportantParameters []string

	Doc    string
	DocURL string

	Processor pipeline.ProcessFunc
}

// QualifiedName is Module.Name, or Name at the package root.
func (t *NodeType) QualifiedName() string {
	if t.Module == "" {
		return t.Name
	}
	return t.Module + "." + t.Name
}

// Parameter returns the named parameter declaration.
func (t *NodeType) Parameter(name string) (Parameter, bool) {
	for _, p := range t.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// RequiredParameters lists parameters without a default, in declaration order.
func (t *NodeType) RequiredParameters() []string {
	out := []string{}
	for _, p := range t.Parameters {
		if p.Required() {
			out = append(out, p.Name)
		}
	}
	return out
}

// normalize fills port defaults and checks the declaration.
func (t *NodeType) normalize() error {
	if !identPattern.MatchString(t.Name) {
		return fmt.Errorf("%w: name %q is not an identifier", ErrInvalidType, t.Name)
	}
	if t.Module != "" && !modulePattern.MatchString(t.Module) {
		return fmt.Errorf("%w: %s: module %q is not a dotted path", ErrInvalidType, t.Name, t.Module)
	}

	kind, err := pipeline.ParseKind(string(t.Kind))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidType, t.Name, err)
	}
	t.Kind = kind

	switch t.Kind {
	case pipeline.KindInput:
		if t.NumInputs != 0 {
			return fmt.Errorf("%w: input type %s cannot take inputs", ErrInvalidType, t.Name)
		}
	default:
		if t.NumInputs == 0 {
			t.NumInputs = 1
		}
		if t.NumInputs < 0 {
			return fmt.Errorf("%w: %s: negative input count", ErrInvalidType, t.Name)
		}
	}
	switch t.Kind {
	case pipeline.KindOutput:
		if t.NumOutputs != 0 {
			return fmt.Errorf("%w: output type %s cannot produce outputs", ErrInvalidType, t.Name)
		}
	default:
		if t.NumOutputs == 0 {
			t.NumOutputs = 1
		}
		if t.NumOutputs != 1 {
			return fmt.Errorf("%w: %s: nodes produce exactly one output", ErrInvalidType, t.Name)
		}
	}

	seen := make(map[string]bool, len(t.Parameters))
	for _, p := range t.Parameters {
		if !identPattern.MatchString(p.Name) {
			return fmt.Errorf("%w: %s: parameter %q is not an identifier", ErrInvalidType, t.Name, p.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: %s: duplicate parameter %q", ErrInvalidType, t.Name, p.Name)
		}
		seen[p.Name] = true
	}
	for _, name := range t.ImportantParameters {
		if !seen[name] {
			return fmt.Errorf("%w: %s: important parameter %q is not declared", ErrInvalidType, t.Name, name)
		}
	}
	return nil
}

// NewNode instantiates the type as a graph node with already-coerced params.
func (t *NodeType) NewNode(id string, params ir.Object) *pipeline.Node {
	return &pipeline.Node{
		ID:           id,
		Type:         t.QualifiedName(),
		Kind:         t.Kind,
		NumInputs:    t.NumInputs,
		Params:       params,
		Requirements: t.Requirements,
		Effects:      t.Effects,
		Process:      t.Processor,
	}
}
