package catalog

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/xomicsdatascience/pscs-api/internal/interaction"
)

// NodeEntry is one node type as a designer sees it.
type NodeEntry struct {
	Name                string           `json:"name"`
	Module              string           `json:"module"`
	Type                string           `json:"type"`
	NumInputs           int              `json:"num_inputs"`
	NumOutputs          int              `json:"num_outputs"`
	Requirements        interaction.List `json:"requirements"`
	Effects             interaction.List `json:"effects"`
	Parameters          []Parameter      `json:"parameters"`
	ImportantParameters []string         `json:"important_parameters"`
	RequiredParameters  []string         `json:"required_parameters"`
	Doc                 string           `json:"doc,omitempty"`
	DocURL              string           `json:"doc_url,omitempty"`
}

// ModuleNest is one level of a package's module tree.
type ModuleNest struct {
	Name    string        `json:"name"`
	Modules []*ModuleNest `json:"modules"`
	Nodes   []NodeEntry   `json:"nodes"`
}

// NewModuleNest creates an empty module.
func NewModuleNest(name string) *ModuleNest {
	return &ModuleNest{Name: name, Modules: []*ModuleNest{}, Nodes: []NodeEntry{}}
}

// Child returns the direct child module with the given name, or nil.
func (m *ModuleNest) Child(name string) *ModuleNest {
	for _, c := range m.Modules {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// AddChild appends child unless a child of the same name exists. It reports
// whether child was added.
func (m *ModuleNest) AddChild(child *ModuleNest) bool {
	if m.Child(child.Name) != nil {
		return false
	}
	m.Modules = append(m.Modules, child)
	return true
}

// ensure returns the descendant at path, creating missing levels.
func (m *ModuleNest) ensure(path []string) *ModuleNest {
	cur := m
	for _, name := range path {
		next := cur.Child(name)
		if next == nil {
			next = NewModuleNest(name)
			cur.Modules = append(cur.Modules, next)
		}
		cur = next
	}
	return cur
}

// AddNode places n in the module named by modulePath, a dotted path whose
// first segment is this package ("pkg.clustering").
func (m *ModuleNest) AddNode(modulePath string, n NodeEntry) {
	parts := strings.Split(modulePath, ".")
	target := m.ensure(parts[1:])
	target.Nodes = append(target.Nodes, n)
}

// GetNode finds a node by its full dotted path, "pkg.clustering.Leiden".
func (m *ModuleNest) GetNode(path string) (NodeEntry, error) {
	parts := strings.Split(path, ".")
	if len(parts) < 2 {
		return NodeEntry{}, fmt.Errorf("%w: %s", ErrUnknownNode, path)
	}
	cur := m
	for _, name := range parts[1 : len(parts)-1] {
		if cur = cur.Child(name); cur == nil {
			return NodeEntry{}, fmt.Errorf("%w: %s", ErrUnknownNode, path)
		}
	}
	leaf := parts[len(parts)-1]
	for _, n := range cur.Nodes {
		if n.Name == leaf {
			return n, nil
		}
	}
	return NodeEntry{}, fmt.Errorf("%w: %s", ErrUnknownNode, path)
}

// Summarize renders the tree, one module or node per line. Modules with
// children are marked with →, nodes with •.
func (m *ModuleNest) Summarize(showNodes bool) string {
	return m.summarize(0, showNodes)
}

func (m *ModuleNest) summarize(depth int, showNodes bool) string {
	const spacing = "  "
	tabs := strings.Repeat(spacing, depth)

	var nodes strings.Builder
	if showNodes {
		for _, n := range m.Nodes {
			nodes.WriteString("\n" + tabs + spacing + "•" + n.Name)
		}
	}
	if len(m.Modules) == 0 {
		return tabs + m.Name + nodes.String()
	}

	var b strings.Builder
	b.WriteString(tabs + m.Name + " → " + nodes.String())
	for _, c := range m.Modules {
		b.WriteString("\n" + c.summarize(depth+1, showNodes))
	}
	return b.String()
}

// Package is the exported catalog document.
type Package struct {
	DisplayName string      `json:"display_name"`
	Modules     *ModuleNest `json:"modules"`
}

// JSON renders the package with one-space indentation.
func (p *Package) JSON() ([]byte, error) {
	return json.MarshalIndent(p, "", " ")
}

// DisplayName title-cases a package name, "pscs_builtin" → "Pscs Builtin".
func DisplayName(packageName string) string {
	words := strings.NewReplacer("_", " ", "-", " ").Replace(packageName)
	return cases.Title(language.English).String(words)
}

// Export renders every type in r under packageName. Modules are sorted; nodes
// keep registration order within their module. An empty displayName is
// derived from packageName.
func Export(r *Registry, packageName, displayName string) (*Package, error) {
	if !identPattern.MatchString(packageName) {
		return nil, fmt.Errorf("package name %q is not an identifier", packageName)
	}
	if displayName == "" {
		displayName = DisplayName(packageName)
	}

	root := NewModuleNest(packageName)
	for _, mod := range r.Modules() {
		root.ensure(strings.Split(mod, "."))
	}
	for _, t := range r.types {
		modulePath := packageName
		if t.Module != "" {
			modulePath += "." + t.Module
		}
		root.AddNode(modulePath, entryFor(t, modulePath))
	}
	return &Package{DisplayName: displayName, Modules: root}, nil
}

func entryFor(t *NodeType, modulePath string) NodeEntry {
	params := t.Parameters
	if params == nil {
		params = []Parameter{}
	}
	important := t.ImportantParameters
	if important == nil {
		important = []string{}
	}
	return NodeEntry{
		Name:                t.Name,
		Module:              modulePath,
		Type:                string(t.Kind),
		NumInputs:           t.NumInputs,
		NumOutputs:          t.NumOutputs,
		Requirements:        t.Requirements,
		Effects:             t.Effects,
		Parameters:          params,
		ImportantParameters: important,
		RequiredParameters:  t.RequiredParameters(),
		Doc:                 t.Doc,
		DocURL:              t.DocURL,
	}
}

// FindUniqueName returns name, or name_0, name_1, ... whichever is first
// absent from existing.
func FindUniqueName[V any](existing map[string]V, name string) string {
	candidate := name
	for i := 0; ; i++ {
		if _, taken := existing[candidate]; !taken {
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d", name, i)
	}
}
