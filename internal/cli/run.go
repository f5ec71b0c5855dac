package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xomicsdatascience/pscs-api/internal/engine"
	"github.com/xomicsdatascience/pscs-api/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	PipelineOptions
	Database string
	Workers  int

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, the engine generates UUIDv7 ids.
	RunIDs engine.RunIDGenerator
}

// NodeSummary is one node's final state in a run.
type NodeSummary struct {
	ID      string       `json:"id"`
	State   engine.State `json:"state"`
	Message string       `json:"message,omitempty"`
}

// RunSummary is the outcome of the run command.
type RunSummary struct {
	RunID        string           `json:"run_id"`
	Status       engine.RunStatus `json:"status"`
	PipelineHash string           `json:"pipeline_hash"`
	Nodes        []NodeSummary    `json:"nodes"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <pipeline>",
		Short: "Validate and execute a pipeline",
		Long: `Validate a pipeline and execute every node that can run.

Nodes that fail validation, and their descendants, are skipped. A node
whose processor fails is marked failed and its descendants skipped;
independent branches still run. Every state transition is recorded in
the SQLite ledger given by --db (created if it doesn't exist).

Exit codes:
  0 - Every node completed
  1 - A node failed or was skipped
  2 - Command error (missing files, bad flags, unreadable ledger)

Examples:
  pscs run --db ./pscs.db ./cluster.hcl
  pscs run --db ./pscs.db ./pipeline.json --input read=./pbmc.json --output-dir ./out
  pscs run --db ./pscs.db ./pipeline.json --workers 1 --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().IntVar(&opts.Workers, "workers", runtime.NumCPU(), "nodes executed concurrently")
	cmd.Flags().StringVar(&opts.Specs, "specs", "", "directory of CUE node-type declarations")
	cmd.Flags().StringArrayVar(&opts.Inputs, "input", nil, "input file for a node, as node=path (repeatable)")
	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", "", "directory output nodes write to")

	return cmd
}

func runPipeline(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := opts.logger()

	if opts.Workers < 1 {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("--workers must be at least 1, got %d", opts.Workers), nil)
	}

	p, err := preparePipeline(path, opts.PipelineOptions)
	if err != nil {
		return formatter.prepareFailure(err)
	}
	if opts.OutputDir != "" {
		if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
			return formatter.fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("create output directory: %v", err), err)
		}
	}

	logger.Debug("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeLedger, fmt.Sprintf("open database: %v", err), err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	engineOpts := []engine.EngineOption{
		engine.WithWorkers(opts.Workers),
		engine.WithLogger(logger),
		engine.WithRecorder(st),
	}
	if opts.RunIDs != nil {
		engineOpts = append(engineOpts, engine.WithRunIDGenerator(opts.RunIDs))
	}
	eng := engine.New(engineOpts...)

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("pipeline starting", "pipeline", path, "pipeline_hash", p.Hash, "db", opts.Database)
	res, err := eng.Run(ctx, p.Graph, engine.WithPipelineHash(p.Hash))
	if err != nil && !engine.IsNodeFailure(err) {
		if res == nil {
			return formatter.fail(ExitFailure, ErrCodeGraph, err.Error(), err)
		}
		logger.Warn("run interrupted", "run_id", res.RunID, "error", err)
	}

	summary := summarize(res, p.Hash)
	if summary.Status == engine.RunSucceeded {
		return outputRunSuccess(formatter, summary)
	}
	return outputRunFailure(formatter, summary)
}

// summarize lists each node's final state with the message of its last event.
func summarize(res *engine.Result, hash string) RunSummary {
	last := make(map[string]string, len(res.Order))
	for _, ev := range res.Events {
		last[ev.NodeID] = ev.Message
	}

	s := RunSummary{
		RunID:        res.RunID,
		Status:       res.Status,
		PipelineHash: hash,
		Nodes:        make([]NodeSummary, 0, len(res.Order)),
	}
	for _, id := range res.Order {
		s.Nodes = append(s.Nodes, NodeSummary{ID: id, State: res.State(id), Message: last[id]})
	}
	return s
}

func outputRunSuccess(formatter *OutputFormatter, summary RunSummary) error {
	if formatter.JSON() {
		return formatter.Success(summary)
	}
	writeRunText(formatter, summary)
	return nil
}

func outputRunFailure(formatter *OutputFormatter, summary RunSummary) error {
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("run %s %s", summary.RunID, summary.Status))
	if formatter.JSON() {
		if err := formatter.Failure(ErrCodeRunFailed, exitErr.Message, summary); err != nil {
			return err
		}
		return exitErr
	}
	writeRunText(formatter, summary)
	return exitErr
}

func writeRunText(formatter *OutputFormatter, summary RunSummary) {
	w := formatter.Writer
	fmt.Fprintf(w, "Run %s: %s\n", summary.RunID, summary.Status)
	for _, n := range summary.Nodes {
		line := fmt.Sprintf("  %s %s %s", stateMark(n.State), n.ID, n.State)
		if n.Message != "" {
			line += ": " + n.Message
		}
		fmt.Fprintln(w, line)
	}
}

func stateMark(s engine.State) string {
	switch s {
	case engine.StateCompleted:
		return "✓"
	case engine.StateFailed:
		return "✗"
	default:
		return "-"
	}
}
