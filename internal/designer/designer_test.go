package designer

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xomicsdatascience/pscs-api/internal/catalog"
	"github.com/xomicsdatascience/pscs-api/internal/coerce"
	"github.com/xomicsdatascience/pscs-api/internal/ir"
	"github.com/xomicsdatascience/pscs-api/internal/pipeline"
)

func testRegistry(t *testing.T) *catalog.Registry {
	t.Helper()
	reg := catalog.NewRegistry()
	for _, nt := range []*catalog.NodeType{
		{Name: "ReadDataset", Module: "io", Kind: pipeline.KindInput, Parameters: []catalog.Parameter{
			{Name: "path", Type: "str"},
		}},
		{Name: "ComputeNeighbors", Module: "neighbors", Parameters: []catalog.Parameter{
			{Name: "n_neighbors", Type: "int", Default: ir.Int(15)},
		}},
		{Name: "Leiden", Module: "clustering", Parameters: []catalog.Parameter{
			{Name: "key_added", Type: "str", Default: ir.String("leiden")},
			{Name: "resolution", Type: "float", Default: ir.Float(1)},
			{Name: "random_state", Type: "Optional[int]", Default: ir.Null{}},
		}},
		{Name: "Concatenate", Module: "merge", NumInputs: 2},
		{Name: "WriteDataset", Module: "io", Kind: pipeline.KindOutput, Parameters: []catalog.Parameter{
			{Name: "save", Type: "str", Default: ir.String("result.json")},
		}},
	} {
		require.NoError(t, reg.Register(nt))
	}
	return reg
}

func loadTestdata(t *testing.T, name string) *Definition {
	t.Helper()
	def, err := LoadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return def
}

func ids(def *Definition) []string {
	out := make([]string, len(def.Nodes))
	for i, n := range def.Nodes {
		out[i] = n.ID
	}
	return out
}

func TestLoadJSON_DesignerExport(t *testing.T) {
	def := loadTestdata(t, "cluster.json")

	assert.Equal(t, []string{"read", "neighbors", "leiden", "write"}, ids(def))

	read, ok := def.Node("read")
	require.True(t, ok)
	assert.Equal(t, "read-node", read.DesignerID)
	assert.Equal(t, "io.ReadDataset", read.TypeName())
	assert.Empty(t, read.Inputs)

	leiden, ok := def.Node("leiden")
	require.True(t, ok)
	assert.Equal(t, []string{"neighbors"}, leiden.Inputs)
	assert.Equal(t, "clustering.py.Leiden", leiden.TypeName())

	neighbors, _ := def.Node("neighbors")
	assert.Equal(t, json.Number("10"), neighbors.Params["n_neighbors"])

	byDesignerID, ok := def.Node("n3")
	require.True(t, ok)
	assert.Same(t, leiden, byDesignerID)
}

func TestLoadJSON_NodeIDs(t *testing.T) {
	tests := []struct {
		name    string
		node    string
		wantID  string
		wantErr bool
	}{
		{"destination connectors win", `{"nodeId": "x", "procName": "P", "srcConnectors": ["c-b-z"], "dstConnectors": ["c-a-b"]}`, "b", false},
		{"source connectors only", `{"nodeId": "x", "procName": "P", "srcConnectors": ["c-a-b"]}`, "a", false},
		{"falls back to designer id", `{"nodeId": "x", "procName": "P"}`, "x", false},
		{"no id at all", `{"procName": "P"}`, "", true},
		{"malformed connector", `{"procName": "P", "srcConnectors": ["a-b"]}`, "", true},
		{"dashes inside ids", `{"procName": "P", "srcConnectors": ["c-a-b-c"]}`, "", true},
		{"connectors disagree", `{"procName": "P", "srcConnectors": ["c-a-q"], "dstConnectors": ["c-z-b"]}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dn designerNode
			require.NoError(t, json.Unmarshal([]byte(tt.node), &dn))

			id, _, _, err := identifyConnections(dn)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidDefinition)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestLoadJSON_SlotOrderFollowsDestinationConnectors(t *testing.T) {
	def, err := LoadJSON([]byte(`{"nodes": [
		{"procName": "ReadDataset", "srcConnectors": ["c-left-cat"]},
		{"procName": "ReadDataset", "srcConnectors": ["c-right-cat"]},
		{"procName": "Concatenate", "dstConnectors": ["c-right-cat", "c-left-cat"]}
	]}`))
	require.NoError(t, err)

	cat, ok := def.Node("cat")
	require.True(t, ok)
	assert.Equal(t, []string{"right", "left"}, cat.Inputs)
}

func TestLoadJSON_Rejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"not json", `{"nodes": [`},
		{"unmirrored source connector", `{"nodes": [
			{"procName": "A", "srcConnectors": ["c-a-b"]},
			{"nodeId": "b", "procName": "B"}
		]}`},
		{"connects to missing node", `{"nodes": [
			{"procName": "A", "srcConnectors": ["c-a-ghost"]}
		]}`},
		{"input from missing node", `{"nodes": [
			{"procName": "B", "dstConnectors": ["c-ghost-b"]}
		]}`},
		{"duplicate ids", `{"nodes": [
			{"nodeId": "a", "procName": "A"},
			{"nodeId": "a", "procName": "B"}
		]}`},
		{"no processor name", `{"nodes": [{"nodeId": "a"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadJSON([]byte(tt.src))
			require.ErrorIs(t, err, ErrInvalidDefinition)
		})
	}
}

func TestLoadHCL(t *testing.T) {
	def := loadTestdata(t, "cluster.hcl")

	assert.Equal(t, []string{"read", "neighbors", "leiden", "write"}, ids(def))

	neighbors, ok := def.Node("neighbors")
	require.True(t, ok)
	assert.Equal(t, []string{"read"}, neighbors.Inputs)
	assert.Equal(t, json.Number("10"), neighbors.Params["n_neighbors"])

	leiden, _ := def.Node("leiden")
	assert.Equal(t, "0.5", leiden.Params["resolution"])
	assert.Contains(t, leiden.Params, "random_state")
	assert.Nil(t, leiden.Params["random_state"])
}

func TestLoadHCL_NoParams(t *testing.T) {
	def, err := LoadHCL("p.hcl", []byte(`node "a" { proc = "A" }`))
	require.NoError(t, err)
	require.Len(t, def.Nodes, 1)
	assert.Empty(t, def.Nodes[0].Params)
	assert.Empty(t, def.Nodes[0].Module)
}

func TestLoadHCL_Rejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", `node "a" {`},
		{"missing proc", `node "a" {}`},
		{"params not an object", `node "a" { proc = "A"
 params = ["x"] }`},
		{"params with variables", `node "a" { proc = "A"
 params = { x = var.y } }`},
		{"unknown input", `node "a" { proc = "A"
 inputs = ["b"] }`},
		{"unknown attribute", `node "a" { proc = "A"
 colour = "red" }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadHCL("p.hcl", []byte(tt.src))
			require.ErrorIs(t, err, ErrInvalidDefinition)
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "none.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestHash(t *testing.T) {
	fromJSON := loadTestdata(t, "cluster.json")
	fromHCL := loadTestdata(t, "cluster.hcl")

	h1, err := fromJSON.Hash()
	require.NoError(t, err)
	h2, err := fromHCL.Hash()
	require.NoError(t, err)
	assert.Len(t, h1, 64)
	assert.Equal(t, h1, h2, "designer ids do not take part in the hash")

	again := loadTestdata(t, "cluster.json")
	again.Nodes[1].Params["n_neighbors"] = json.Number("11")
	h3, err := again.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestBuild(t *testing.T) {
	reg := testRegistry(t)
	def := loadTestdata(t, "cluster.json")

	g, err := Build(def, reg, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, g.Len())

	leiden, ok := g.Node("leiden")
	require.True(t, ok)
	assert.Equal(t, "clustering.Leiden", leiden.Type)
	assert.Equal(t, ir.Object{
		"key_added":    ir.String("leiden"),
		"resolution":   ir.Float(0.5),
		"random_state": ir.Null{},
	}, leiden.Params)

	neighbors, _ := g.Node("neighbors")
	assert.Equal(t, ir.Int(10), neighbors.Params["n_neighbors"])

	write, _ := g.Node("write")
	assert.Equal(t, pipeline.KindOutput, write.Kind)
	assert.Equal(t, []string{"leiden"}, g.Upstream("write"))

	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	var got []string
	for _, n := range order {
		got = append(got, n.ID)
	}
	assert.Equal(t, []string{"read", "neighbors", "leiden", "write"}, got)
}

func TestBuild_ParameterErrors(t *testing.T) {
	reg := testRegistry(t)
	def := &Definition{Nodes: []*NodeDef{
		{ID: "read", Proc: "ReadDataset"},
		{ID: "nb", Proc: "ComputeNeighbors", Inputs: []string{"read"}, Params: map[string]any{"n_neighbors": "ten"}},
		{ID: "cl", Proc: "Leiden", Inputs: []string{"nb"}, Params: map[string]any{"colour": "red", "random_state": 1.5}},
	}}

	_, err := Build(def, reg, coerce.CtyCoercer{})
	require.Error(t, err)
	assert.True(t, IsParameterInitialization(err))

	var all []*ParameterInitializationError
	for _, e := range err.(interface{ Unwrap() []error }).Unwrap() {
		var pe *ParameterInitializationError
		require.ErrorAs(t, e, &pe)
		all = append(all, pe)
	}
	require.Len(t, all, 4)

	assert.Equal(t, "read", all[0].NodeID)
	assert.Equal(t, "path", all[0].Param)
	assert.ErrorIs(t, all[0], ErrMissingParameter)

	assert.Equal(t, "nb", all[1].NodeID)
	assert.Equal(t, "int", all[1].Hint)
	assert.True(t, coerce.IsCoercion(all[1]))

	assert.Equal(t, "colour", all[2].Param)
	assert.ErrorIs(t, all[2], ErrUnknownParameter)

	assert.Equal(t, "random_state", all[3].Param)
	var ce *coerce.CoercionError
	require.ErrorAs(t, all[3], &ce)
	assert.Equal(t, "Optional[int]", ce.Hint)
}

func TestBuild_GraphErrors(t *testing.T) {
	reg := testRegistry(t)

	t.Run("unknown type", func(t *testing.T) {
		def := &Definition{Nodes: []*NodeDef{{ID: "a", Proc: "Nope"}}}
		_, err := Build(def, reg, nil)
		require.ErrorIs(t, err, catalog.ErrUnknownType)
	})

	t.Run("too many inputs", func(t *testing.T) {
		def := &Definition{Nodes: []*NodeDef{
			{ID: "a", Proc: "ReadDataset", Params: map[string]any{"path": "x"}},
			{ID: "b", Proc: "ReadDataset", Params: map[string]any{"path": "y"}},
			{ID: "n", Proc: "ComputeNeighbors", Inputs: []string{"a", "b"}},
		}}
		_, err := Build(def, reg, nil)
		require.ErrorIs(t, err, pipeline.ErrSlotOutOfRange)
	})

	t.Run("cycle", func(t *testing.T) {
		def := &Definition{Nodes: []*NodeDef{
			{ID: "a", Proc: "ComputeNeighbors", Inputs: []string{"b"}},
			{ID: "b", Proc: "ComputeNeighbors", Inputs: []string{"a"}},
		}}
		_, err := Build(def, reg, nil)
		require.Error(t, err)
		assert.True(t, pipeline.IsCyclicGraph(err))
	})

	t.Run("two input slots in order", func(t *testing.T) {
		def := &Definition{Nodes: []*NodeDef{
			{ID: "a", Proc: "ReadDataset", Params: map[string]any{"path": "x"}},
			{ID: "b", Proc: "ReadDataset", Params: map[string]any{"path": "y"}},
			{ID: "cat", Proc: "Concatenate", Inputs: []string{"b", "a"}},
		}}
		g, err := Build(def, reg, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a"}, g.Upstream("cat"))
		assert.Empty(t, g.UnconnectedSlots())
	})
}

func TestAssignInputs(t *testing.T) {
	def := loadTestdata(t, "cluster.json")

	require.NoError(t, AssignInputs(def, map[string]string{"read-node": "/data/pbmc3k.json"}, ""))
	read, _ := def.Node("read")
	assert.Equal(t, "/data/pbmc3k.json", read.Params["path"])

	require.NoError(t, AssignInputs(def, map[string]string{"read": "/data/other.json"}, "source"))
	assert.Equal(t, "/data/other.json", read.Params["source"])

	err := AssignInputs(def, map[string]string{"ghost": "x"}, "")
	require.ErrorIs(t, err, ErrUnknownNode)
}

func TestAssignOutputs(t *testing.T) {
	reg := testRegistry(t)
	def := loadTestdata(t, "cluster.json")
	def.Nodes = append(def.Nodes,
		&NodeDef{ID: "write2", Proc: "WriteDataset", Inputs: []string{"leiden"}},
		&NodeDef{ID: "write3", Proc: "WriteDataset", Inputs: []string{"leiden"}},
		&NodeDef{ID: "write4", Proc: "WriteDataset", Inputs: []string{"leiden"}, Params: map[string]any{"save": "result.json"}},
	)

	require.NoError(t, AssignOutputs(def, reg, "/results/run1"))

	write, _ := def.Node("write")
	assert.Equal(t, "/results/run1/__clusters_out.json", write.Params["save"])
	write2, _ := def.Node("write2")
	assert.Equal(t, "/results/run1/result.json", write2.Params["save"])
	write3, _ := def.Node("write3")
	assert.Equal(t, "/results/run1/result_0.json", write3.Params["save"], "same default file gets a numbered name")
	write4, _ := def.Node("write4")
	assert.Equal(t, "/results/run1/result_1.json", write4.Params["save"])

	read, _ := def.Node("read")
	assert.Equal(t, "pbmc.json", read.Params["path"], "non-output nodes are untouched")

	bad := &Definition{Nodes: []*NodeDef{{ID: "w", Proc: "WriteDataset", Params: map[string]any{"save": 3.0}}}}
	err := AssignOutputs(bad, reg, "/out")
	assert.True(t, IsParameterInitialization(err))
}

func TestSecureFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"My cool movie.mov", "My_cool_movie.mov"},
		{"../../../etc/passwd", "etc_passwd"},
		{"i contain cool ümläuts.txt", "i_contain_cool_umlauts.txt"},
		{"__hidden", "hidden"},
		{"a\tb\nc", "a_b_c"},
		{"résumé (final).json", "resume_final.json"},
		{"...", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SecureFilename(tt.in))
		})
	}
}
