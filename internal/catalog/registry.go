package catalog

import (
	"fmt"
	"slices"
	"strings"

	"github.com/xomicsdatascience/pscs-api/internal/pipeline"
)

// Registry holds node types by qualified name. It is built once at startup
// and then only read; it is not safe for concurrent registration.
type Registry struct {
	types       []*NodeType
	byQualified map[string]*NodeType
	byName      map[string][]*NodeType
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byQualified: make(map[string]*NodeType),
		byName:      make(map[string][]*NodeType),
	}
}

// Register validates t and adds it. Qualified names must be unique.
func (r *Registry) Register(t *NodeType) error {
	if t == nil {
		return fmt.Errorf("%w: nil node type", ErrInvalidType)
	}
	if err := t.normalize(); err != nil {
		return err
	}
	q := t.QualifiedName()
	if _, exists := r.byQualified[q]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateType, q)
	}
	r.types = append(r.types, t)
	r.byQualified[q] = t
	r.byName[t.Name] = append(r.byName[t.Name], t)
	return nil
}

// Bind attaches a processor to a registered type. Declarations and their
// processors can then live in different places.
func (r *Registry) Bind(name string, p pipeline.ProcessFunc) error {
	t, err := r.Lookup(name)
	if err != nil {
		return err
	}
	t.Processor = p
	return nil
}

// Lookup finds a type by qualified name ("clustering.Leiden") or by bare
// name when that is unambiguous. Leading package segments are ignored, so
// "pscs.clustering.Leiden" also finds clustering.Leiden, and a trailing
// ".py" on the module part is dropped.
func (r *Registry) Lookup(name string) (*NodeType, error) {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = strings.TrimSuffix(name[:i], ".py") + name[i:]
	}

	for candidate := name; ; {
		if t, ok := r.byQualified[candidate]; ok {
			return t, nil
		}
		i := strings.IndexByte(candidate, '.')
		if i < 0 {
			break
		}
		candidate = candidate[i+1:]
	}

	if strings.Contains(name, ".") {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, name)
	}
	switch matches := r.byName[name]; len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, name)
	case 1:
		return matches[0], nil
	default:
		candidates := make([]string, len(matches))
		for i, t := range matches {
			candidates[i] = t.QualifiedName()
		}
		return nil, &AmbiguousTypeError{Name: name, Candidates: candidates}
	}
}

// Types returns the registered types in registration order.
func (r *Registry) Types() []*NodeType {
	return slices.Clone(r.types)
}

// Len returns the number of registered types.
func (r *Registry) Len() int {
	return len(r.types)
}

// Modules returns the distinct module paths in sorted order.
func (r *Registry) Modules() []string {
	var out []string
	for _, t := range r.types {
		if t.Module != "" && !slices.Contains(out, t.Module) {
			out = append(out, t.Module)
		}
	}
	slices.Sort(out)
	return out
}

// Unbound lists types that have no processor.
func (r *Registry) Unbound() []string {
	var out []string
	for _, t := range r.types {
		if t.Processor == nil {
			out = append(out, t.QualifiedName())
		}
	}
	return out
}
