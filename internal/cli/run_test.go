package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xomicsdatascience/pscs-api/internal/engine"
	"github.com/xomicsdatascience/pscs-api/internal/store"
	"github.com/xomicsdatascience/pscs-api/internal/testutil"
)

// runWithID executes the run command with a fixed run id.
func runWithID(t *testing.T, format, runID, pipelinePath string, popts PipelineOptions) (string, string, error) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "pscs.db")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: format}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})

	opts := &RunOptions{
		RootOptions:     rootOpts,
		PipelineOptions: popts,
		Database:        dbPath,
		Workers:         1,
		RunIDs:          testutil.NewFixedRunIDGenerator(runID),
	}
	err := runPipeline(opts, pipelinePath, cmd)
	return buf.String(), dbPath, err
}

func readRunState(t *testing.T, dbPath, runID string) store.RunState {
	t.Helper()
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	state, err := st.GetRunState(context.Background(), runID)
	require.NoError(t, err)
	return state
}

func TestRunMissingDatabaseFlag(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"testdata/cluster.hcl"}) // Missing --db flag

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), "db")
}

func TestRunSucceeds(t *testing.T) {
	outDir := t.TempDir()
	output, dbPath, err := runWithID(t, "text", "run-1", "testdata/cluster.hcl", PipelineOptions{
		Inputs:    []string{pbmcInput},
		OutputDir: outDir,
	})
	require.NoError(t, err)

	assert.Equal(t, "Run run-1: succeeded\n"+
		"  ✓ read completed\n"+
		"  ✓ neighbors completed\n"+
		"  ✓ leiden completed\n"+
		"  ✓ rank completed\n"+
		"  ✓ write completed\n", output)
	assert.FileExists(t, filepath.Join(outDir, "ranked.json"))

	state := readRunState(t, dbPath, "run-1")
	assert.Equal(t, engine.RunSucceeded, state.Run.Status)
	assert.Equal(t, 5, state.Run.NodeCount)
	assert.NotEmpty(t, state.Run.PipelineHash)
	assert.Len(t, state.Events, 15)
	assert.Empty(t, state.Unfinished)
}

func TestRunCreatesOutputDir(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "nested", "out")
	_, _, err := runWithID(t, "text", "run-1", "testdata/cluster.hcl", PipelineOptions{
		Inputs:    []string{pbmcInput},
		OutputDir: outDir,
	})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(outDir, "ranked.json"))
}

func TestRunNodeFailure(t *testing.T) {
	output, dbPath, err := runWithID(t, "text", "run-fail", "testdata/cluster.hcl", PipelineOptions{
		Inputs:    []string{"read=testdata/missing.json"},
		OutputDir: t.TempDir(),
	})
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, output, "Run run-fail: failed\n")
	assert.Contains(t, output, "  ✗ read failed: ")
	assert.Contains(t, output, "  - neighbors skipped: upstream node read failed\n")
	assert.Contains(t, output, "  - write skipped: upstream node read failed\n")

	state := readRunState(t, dbPath, "run-fail")
	assert.Equal(t, engine.RunFailed, state.Run.Status)
	assert.Equal(t, engine.StateFailed, state.States["read"])
}

func TestRunValidationFailure(t *testing.T) {
	output, dbPath, err := runWithID(t, "text", "run-invalid", "testdata/missing_clusters.hcl", PipelineOptions{
		Inputs:    []string{pbmcInput},
		OutputDir: t.TempDir(),
	})
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, output, "  ✓ neighbors completed\n")
	assert.Contains(t, output, "  - rank skipped: validation failed: requires")
	assert.Contains(t, output, "  - write skipped: blocked by upstream validation failure\n")

	state := readRunState(t, dbPath, "run-invalid")
	require.Len(t, state.Failures, 1)
	assert.Equal(t, "rank", state.Failures[0].NodeID)
	assert.Equal(t, "requirement_not_met", state.Failures[0].Code)
}

func TestRunFailureJSON(t *testing.T) {
	output, _, err := runWithID(t, "json", "run-fail", "testdata/cluster.hcl", PipelineOptions{
		Inputs:    []string{"read=testdata/missing.json"},
		OutputDir: t.TempDir(),
	})
	require.Error(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   RunSummary `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeRunFailed, resp.Error.Code)
	assert.Equal(t, "run-fail", resp.Data.RunID)
	assert.Equal(t, engine.RunFailed, resp.Data.Status)
	require.Len(t, resp.Data.Nodes, 5)
	assert.Equal(t, NodeSummary{ID: "neighbors", State: engine.StateSkipped, Message: "upstream node read failed"}, resp.Data.Nodes[1])
}

func TestRunUnboundDeclaredType(t *testing.T) {
	output, _, err := runWithID(t, "text", "run-unbound", "testdata/doublets.hcl", PipelineOptions{
		Specs:     "testdata/specs",
		Inputs:    []string{pbmcInput},
		OutputDir: t.TempDir(),
	})
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, output, "  ✓ read completed\n")
	assert.Contains(t, output, "  ✗ scrublet failed: no processor bound to node\n")
}

func TestRunCommandErrors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode string
	}{
		{"missing_pipeline", []string{"--db", "DB", "testdata/nonexistent.hcl"}, ErrCodeNotFound},
		{"zero_workers", []string{"--db", "DB", "--workers", "0", "testdata/cluster.hcl"}, ErrCodeGeneric},
		{"unopenable_database", []string{"--db", "/nonexistent/dir/pscs.db", "--input", pbmcInput, "testdata/cluster.hcl"}, ErrCodeLedger},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := make([]string, len(tt.args))
			for i, a := range tt.args {
				if a == "DB" {
					a = filepath.Join(t.TempDir(), "pscs.db")
				}
				args[i] = a
			}

			buf := &bytes.Buffer{}
			cmd := NewRunCommand(&RootOptions{Format: "text"})
			cmd.SetOut(buf)
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs(args)

			err := cmd.Execute()
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, buf.String(), "Error ["+tt.wantCode+"]")
		})
	}
}

func TestRunDoesNotCreateDatabaseOnBadPipeline(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "pscs.db")

	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", dbPath, "testdata/unknown_type.hcl"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	_, statErr := os.Stat(dbPath)
	assert.True(t, os.IsNotExist(statErr))
}
