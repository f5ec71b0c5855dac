package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xomicsdatascience/pscs-api/internal/catalog"
	"github.com/xomicsdatascience/pscs-api/internal/interaction"
	"github.com/xomicsdatascience/pscs-api/internal/ir"
	"github.com/xomicsdatascience/pscs-api/internal/pipeline"
)

func compileOne(t *testing.T, src, name string) (*catalog.NodeType, error) {
	t.Helper()
	v := cuecontext.New().CompileString(src, cue.Filename("nodes.cue"))
	require.NoError(t, v.Err())
	return CompileNodeType(v.LookupPath(cue.ParsePath("node." + name)))
}

func TestCompileNodeType_Full(t *testing.T) {
	nt, err := compileOne(t, `
		node: Leiden: {
			module:  "clustering"
			kind:    "simo"
			inputs:  1
			doc:     "Leiden community detection."
			doc_url: "https://example.org/leiden"
			params: {
				key_added:  {type: "str", default: "leiden"}
				resolution: {type: "float", default: 1.0}
				n_iterations: {type: "int", default: -1}
				random_state: {type: "Optional[int]", default: null}
				adjacency: {type: "Any"}
			}
			important: ["resolution"]
			requires: [{uns: ["neighbors"]}]
			effects: [{obs: ["param[key_added]"]}]
		}
	`, "Leiden")
	require.NoError(t, err)

	assert.Equal(t, "Leiden", nt.Name)
	assert.Equal(t, "clustering", nt.Module)
	assert.Equal(t, pipeline.KindSIMO, nt.Kind)
	assert.Equal(t, 1, nt.NumInputs)
	assert.Equal(t, "Leiden community detection.", nt.Doc)
	assert.Equal(t, "https://example.org/leiden", nt.DocURL)
	assert.Equal(t, []string{"resolution"}, nt.ImportantParameters)

	require.Len(t, nt.Parameters, 5)
	assert.Equal(t, catalog.Parameter{Name: "key_added", Type: "str", Default: ir.String("leiden")}, nt.Parameters[0])
	assert.Equal(t, catalog.Parameter{Name: "resolution", Type: "float", Default: ir.Float(1)}, nt.Parameters[1])
	assert.Equal(t, catalog.Parameter{Name: "n_iterations", Type: "int", Default: ir.Int(-1)}, nt.Parameters[2])
	assert.Equal(t, catalog.Parameter{Name: "random_state", Type: "Optional[int]", Default: ir.Null{}}, nt.Parameters[3])
	assert.True(t, nt.Parameters[4].Required())

	want := interaction.NewList(interaction.New(interaction.Uns("neighbors")))
	assert.True(t, want.Equal(nt.Requirements), "got %s", nt.Requirements)
	effect := interaction.NewList(interaction.New(interaction.Obs(interaction.Istr("key_added"))))
	assert.True(t, effect.Equal(nt.Effects), "got %s", nt.Effects)
}

func TestCompileNodeType_Minimal(t *testing.T) {
	nt, err := compileOne(t, `node: Identity: {}`, "Identity")
	require.NoError(t, err)
	assert.Equal(t, "Identity", nt.Name)
	assert.Empty(t, nt.Module)
	assert.Empty(t, nt.Kind)
	assert.True(t, nt.Requirements.IsEmpty())
	assert.True(t, nt.Effects.IsEmpty())

	reg := catalog.NewRegistry()
	require.NoError(t, reg.Register(nt))
	assert.Equal(t, pipeline.KindSIMO, nt.Kind)
	assert.Equal(t, 1, nt.NumInputs)
	assert.Equal(t, 1, nt.NumOutputs)
}

func TestCompileNodeType_ParamTypeDefaultsToAny(t *testing.T) {
	nt, err := compileOne(t, `node: Read: {kind: "input", params: path: {}}`, "Read")
	require.NoError(t, err)
	require.Len(t, nt.Parameters, 1)
	assert.Equal(t, "Any", nt.Parameters[0].Type)
	assert.Equal(t, pipeline.KindInput, nt.Kind)
}

func TestCompileNodeType_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{"unknown field", `node: X: {colour: "red"}`, "cue"},
		{"unknown attribute", `node: X: {requires: [{rows: ["a"]}]}`, "cue"},
		{"bad kind", `node: X: {kind: "mimo"}`, "cue"},
		{"two outputs", `node: X: {outputs: 2}`, "cue"},
		{"negative inputs", `node: X: {inputs: -1}`, "cue"},
		{"bad module", `node: X: {module: "a b"}`, "cue"},
		{"fields not strings", `node: X: {effects: [{obs: [1]}]}`, "cue"},
		{"undeclared important", `node: X: {params: a: {}, important: ["b"]}`, "important"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileOne(t, tt.src, "X")
			require.Error(t, err)

			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
			assert.Equal(t, "X", ce.Node)
		})
	}
}

func TestCompileNodeType_ErrorHasPosition(t *testing.T) {
	_, err := compileOne(t, "node: X: {\n\tparams: a: {}\n\timportant: [\"b\"]\n}", "X")
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	require.True(t, ce.Pos.IsValid())
	assert.Equal(t, 3, ce.Pos.Line())
	assert.Contains(t, err.Error(), "nodes.cue:3:")
	assert.Contains(t, err.Error(), "X.important")
}

func TestCompileNodes_CollectsAll(t *testing.T) {
	v := cuecontext.New().CompileString(`
		node: Good: {module: "qc"}
		node: Bad: {kind: "sideways"}
		node: AlsoGood: {kind: "output"}
	`)
	require.NoError(t, v.Err())

	types, errs := CompileNodes(v)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "Bad")

	names := make([]string, len(types))
	for i, nt := range types {
		names[i] = nt.Name
	}
	assert.Equal(t, []string{"Good", "AlsoGood"}, names)
}

func TestCompileNodes_NoNodeField(t *testing.T) {
	v := cuecontext.New().CompileString(`other: 1`)
	types, errs := CompileNodes(v)
	assert.Empty(t, types)
	assert.Empty(t, errs)
}
