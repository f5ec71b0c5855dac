package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xomicsdatascience/pscs-api/internal/engine"
)

// writeScenario writes a scenario next to an empty pipeline file.
func writeScenario(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "p.hcl"), nil, 0644))
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	s := loadTestScenario(t, "cluster.yaml")

	assert.Equal(t, "cluster_pbmc", s.Name)
	assert.Equal(t, filepath.Join("testdata", "pipelines", "cluster.hcl"), s.Pipeline)
	assert.Equal(t, filepath.Join("testdata", "data", "pbmc_small.json"), s.Inputs["read"])
	assert.Equal(t, "run-cluster", s.RunID)
	assert.True(t, s.Expect.Valid)
	assert.Equal(t, engine.StateCompleted, s.Expect.States["leiden"])
	require.Len(t, s.Assertions, 4)
	assert.Equal(t, AssertCompletedBefore, s.Assertions[0].Type)
	assert.Equal(t, "obs", s.Assertions[2].Attr)
}

func TestLoadScenario_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing name", "description: d\npipeline: p.hcl\n", "name is required"},
		{"missing description", "name: n\npipeline: p.hcl\n", "description is required"},
		{"missing pipeline", "name: n\ndescription: d\n", "pipeline is required"},
		{"pipeline not found", "name: n\ndescription: d\npipeline: nope.hcl\n", "pipeline file not found"},
		{"unknown field", "name: n\ndescription: d\npipeline: p.hcl\nflow: []\n", "field flow not found"},
		{"unknown state", "name: n\ndescription: d\npipeline: p.hcl\nexpect:\n  states: {a: done}\n", `unknown state "done"`},
		{"unknown code", "name: n\ndescription: d\npipeline: p.hcl\nexpect:\n  failures: [{node: a, code: oops}]\n", `unknown code "oops"`},
		{"failure without node", "name: n\ndescription: d\npipeline: p.hcl\nexpect:\n  failures: [{code: unconnected_input}]\n", "node is required"},
		{"assertion type", "name: n\ndescription: d\npipeline: p.hcl\nassertions: [{node: a}]\n", "type is required"},
		{"unknown assertion", "name: n\ndescription: d\npipeline: p.hcl\nassertions: [{type: trace_count}]\n", `unknown assertion type "trace_count"`},
		{"state without node", "name: n\ndescription: d\npipeline: p.hcl\nassertions: [{type: state, state: failed}]\n", "node is required for state"},
		{"completed_before", "name: n\ndescription: d\npipeline: p.hcl\nassertions: [{type: completed_before, before: a}]\n", "before and after are required"},
		{"guarantee attr", "name: n\ndescription: d\npipeline: p.hcl\nassertions: [{type: guarantee, node: a, attr: cells, field: x}]\n", "cells"},
		{"skipped", "name: n\ndescription: d\npipeline: p.hcl\nassertions: [{type: skipped}]\n", "nodes list is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "none.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_AbsolutePathsKept(t *testing.T) {
	dir := t.TempDir()
	pipeline := filepath.Join(dir, "abs.hcl")
	require.NoError(t, os.WriteFile(pipeline, nil, 0644))

	path := writeScenario(t, "name: n\ndescription: d\npipeline: "+pipeline+"\n")
	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, pipeline, s.Pipeline)
}

func TestLoadScenarios(t *testing.T) {
	scenarios, err := LoadScenarios(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)

	names := make([]string, len(scenarios))
	for i, s := range scenarios {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"cluster_pbmc", "merge_samples", "missing_clusters", "unreadable_input"}, names)

	_, err = LoadScenarios(t.TempDir())
	assert.ErrorContains(t, err, "no scenario files")
}
