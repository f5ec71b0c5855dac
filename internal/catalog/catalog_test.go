package catalog

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xomicsdatascience/pscs-api/internal/interaction"
	"github.com/xomicsdatascience/pscs-api/internal/ir"
	"github.com/xomicsdatascience/pscs-api/internal/pipeline"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.Register(&NodeType{
		Name:       "ReadFile",
		Module:     "io",
		Kind:       pipeline.KindInput,
		Parameters: []Parameter{{Name: "path", Type: "str"}},
	}))
	require.NoError(t, r.Register(&NodeType{
		Name:   "Leiden",
		Module: "clustering",
		Parameters: []Parameter{
			{Name: "key_added", Type: "str", Default: ir.String("leiden")},
			{Name: "resolution", Type: "float", Default: ir.Float(1)},
		},
		ImportantParameters: []string{"resolution"},
		Requirements:        interaction.NewList(interaction.New(interaction.Uns("neighbors"))),
		Effects:             interaction.NewList(interaction.New(interaction.Obs(interaction.Istr("key_added")))),
		Doc:                 "Leiden community detection.",
	}))
	require.NoError(t, r.Register(&NodeType{
		Name:       "WriteFile",
		Module:     "io",
		Kind:       pipeline.KindOutput,
		Parameters: []Parameter{{Name: "save", Type: "str"}},
		DocURL:     "https://example.org/write",
	}))
	return r
}

func TestRegister_FillsPortDefaults(t *testing.T) {
	r := testRegistry(t)

	read, err := r.Lookup("io.ReadFile")
	require.NoError(t, err)
	assert.Equal(t, 0, read.NumInputs)
	assert.Equal(t, 1, read.NumOutputs)

	leiden, err := r.Lookup("Leiden")
	require.NoError(t, err)
	assert.Equal(t, pipeline.KindSIMO, leiden.Kind)
	assert.Equal(t, 1, leiden.NumInputs)
	assert.Equal(t, 1, leiden.NumOutputs)

	write, err := r.Lookup("WriteFile")
	require.NoError(t, err)
	assert.Equal(t, 1, write.NumInputs)
	assert.Equal(t, 0, write.NumOutputs)
}

func TestRegister_Rejects(t *testing.T) {
	tests := []struct {
		name string
		typ  *NodeType
	}{
		{"nil", nil},
		{"bad name", &NodeType{Name: "not a name"}},
		{"bad module", &NodeType{Name: "A", Module: "x..y"}},
		{"input with inputs", &NodeType{Name: "A", Kind: pipeline.KindInput, NumInputs: 2}},
		{"output with outputs", &NodeType{Name: "A", Kind: pipeline.KindOutput, NumOutputs: 1}},
		{"two outputs", &NodeType{Name: "A", NumOutputs: 2}},
		{"duplicate parameter", &NodeType{Name: "A", Parameters: []Parameter{{Name: "x"}, {Name: "x"}}}},
		{"undeclared important", &NodeType{Name: "A", ImportantParameters: []string{"x"}}},
		{"unknown kind", &NodeType{Name: "A", Kind: "mimo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, NewRegistry().Register(tt.typ), ErrInvalidType)
		})
	}
}

func TestRegister_Duplicate(t *testing.T) {
	r := testRegistry(t)
	err := r.Register(&NodeType{Name: "Leiden", Module: "clustering"})
	assert.ErrorIs(t, err, ErrDuplicateType)
}

func TestLookup(t *testing.T) {
	r := testRegistry(t)
	require.NoError(t, r.Register(&NodeType{Name: "Leiden", Module: "legacy"}))

	tests := []struct {
		name string
		want string
	}{
		{"clustering.Leiden", "clustering.Leiden"},
		{"legacy.Leiden", "legacy.Leiden"},
		{"pscs.clustering.Leiden", "clustering.Leiden"},
		{"clustering.py.Leiden", "clustering.Leiden"},
		{"ReadFile", "io.ReadFile"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Lookup(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.QualifiedName())
		})
	}

	_, err := r.Lookup("Leiden")
	var ae *AmbiguousTypeError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, []string{"clustering.Leiden", "legacy.Leiden"}, ae.Candidates)

	_, err = r.Lookup("Louvain")
	assert.ErrorIs(t, err, ErrUnknownType)
	_, err = r.Lookup("clustering.Louvain")
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestBind(t *testing.T) {
	r := testRegistry(t)
	assert.Equal(t, []string{"io.ReadFile", "clustering.Leiden", "io.WriteFile"}, r.Unbound())

	proc := func(context.Context, []any, ir.Object) (any, error) { return "ok", nil }
	require.NoError(t, r.Bind("clustering.Leiden", proc))
	assert.Equal(t, []string{"io.ReadFile", "io.WriteFile"}, r.Unbound())

	assert.ErrorIs(t, r.Bind("Nope", proc), ErrUnknownType)
}

func TestNewNode(t *testing.T) {
	r := testRegistry(t)
	leiden, err := r.Lookup("Leiden")
	require.NoError(t, err)

	n := leiden.NewNode("cluster", ir.Object{"key_added": ir.String("groups")})
	assert.Equal(t, "cluster", n.ID)
	assert.Equal(t, "clustering.Leiden", n.Type)
	assert.Equal(t, pipeline.KindSIMO, n.Kind)
	assert.Equal(t, 1, n.NumInputs)
	assert.True(t, leiden.Effects.Equal(n.Effects))
	assert.Equal(t, []string{"key_added", "resolution"}, []string{leiden.Parameters[0].Name, leiden.Parameters[1].Name})
	assert.Empty(t, leiden.RequiredParameters())

	read, err := r.Lookup("ReadFile")
	require.NoError(t, err)
	assert.Equal(t, []string{"path"}, read.RequiredParameters())
	p, ok := read.Parameter("path")
	require.True(t, ok)
	assert.True(t, p.Required())
}

func TestExport_Golden(t *testing.T) {
	pkg, err := Export(testRegistry(t), "testpkg", "")
	require.NoError(t, err)
	assert.Equal(t, "Testpkg", pkg.DisplayName)

	data, err := pkg.JSON()
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "export", append(data, '\n'))
}

func TestModuleNest(t *testing.T) {
	pkg, err := Export(testRegistry(t), "testpkg", "Test package")
	require.NoError(t, err)
	root := pkg.Modules

	n, err := root.GetNode("testpkg.clustering.Leiden")
	require.NoError(t, err)
	assert.Equal(t, "testpkg.clustering", n.Module)

	_, err = root.GetNode("testpkg.clustering.Louvain")
	assert.ErrorIs(t, err, ErrUnknownNode)
	_, err = root.GetNode("testpkg.nowhere.Leiden")
	assert.ErrorIs(t, err, ErrUnknownNode)

	assert.False(t, root.AddChild(NewModuleNest("io")))
	assert.True(t, root.AddChild(NewModuleNest("plotting")))
	assert.NotNil(t, root.Child("plotting"))

	want := "testpkg → " +
		"\n  clustering" +
		"\n    •Leiden" +
		"\n  io" +
		"\n    •ReadFile" +
		"\n    •WriteFile" +
		"\n  plotting"
	assert.Equal(t, want, root.Summarize(true))
	assert.Equal(t, "testpkg → \n  clustering\n  io\n  plotting", root.Summarize(false))
}

func TestModuleNest_NestedModules(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&NodeType{Name: "A", Module: "qc.filters"}))
	require.NoError(t, r.Register(&NodeType{Name: "B", Module: "qc"}))
	require.NoError(t, r.Register(&NodeType{Name: "Root"}))

	pkg, err := Export(r, "pkg", "")
	require.NoError(t, err)
	assert.Equal(t, "pkg → \n  •Root\n  qc → \n    •B\n    filters\n      •A", pkg.Modules.Summarize(true))

	n, err := pkg.Modules.GetNode("pkg.qc.filters.A")
	require.NoError(t, err)
	assert.Equal(t, "pkg.qc.filters", n.Module)
}

func TestExport_RejectsBadPackageName(t *testing.T) {
	_, err := Export(NewRegistry(), "my package", "")
	assert.Error(t, err)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Pscs Builtin", DisplayName("pscs_builtin"))
	assert.Equal(t, "Scanpy", DisplayName("scanpy"))
}

func TestFindUniqueName(t *testing.T) {
	existing := map[string]int{"leiden": 1, "leiden_0": 1, "leiden_1": 1}
	assert.Equal(t, "leiden_2", FindUniqueName(existing, "leiden"))
	assert.Equal(t, "louvain", FindUniqueName(existing, "louvain"))
	assert.Equal(t, "x", FindUniqueName(map[string]bool{}, "x"))
}
