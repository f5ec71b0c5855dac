package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xomicsdatascience/pscs-api/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database   string
	Incomplete bool
	Node       string // optional - filter to one node
}

// RunList is the trace output when no run id is given.
type RunList struct {
	Runs []store.Run `json:"runs"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [run-id]",
		Short: "Show the recorded events of a run",
		Long: `Show what the ledger recorded for a run: every node state transition
in order, the final state of each node, and the validation failures
found before execution.

Without a run id, lists the recorded runs. With --incomplete, lists
only runs that never finished, such as runs of a crashed process.

Examples:
  pscs trace --db ./pscs.db
  pscs trace --db ./pscs.db --incomplete
  pscs trace --db ./pscs.db 0192f3a4-...
  pscs trace --db ./pscs.db 0192f3a4-... --node rank --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runListRuns(opts, cmd)
			}
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().BoolVar(&opts.Incomplete, "incomplete", false, "list only runs that never finished")
	cmd.Flags().StringVar(&opts.Node, "node", "", "show only events of this node")

	return cmd
}

func runTrace(opts *TraceOptions, runID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeLedger, fmt.Sprintf("open database: %v", err), err)
	}
	defer st.Close()

	state, err := st.GetRunState(ctx, runID)
	if errors.Is(err, store.ErrRunNotFound) {
		return formatter.fail(ExitCommandError, ErrCodeRunNotFound, fmt.Sprintf("no run %s in %s", runID, opts.Database), err)
	}
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeLedger, fmt.Sprintf("read run: %v", err), err)
	}

	if opts.Node != "" {
		state = filterNode(state, opts.Node)
	}

	if formatter.JSON() {
		return formatter.Success(state)
	}
	writeTraceText(formatter, state)
	return nil
}

// filterNode keeps only what the ledger holds about one node.
func filterNode(state store.RunState, nodeID string) store.RunState {
	out := state
	out.Events = nil
	for _, ev := range state.Events {
		if ev.NodeID == nodeID {
			out.Events = append(out.Events, ev)
		}
	}
	out.Failures = nil
	for _, f := range state.Failures {
		if f.NodeID == nodeID {
			out.Failures = append(out.Failures, f)
		}
	}
	return out
}

func writeTraceText(formatter *OutputFormatter, state store.RunState) {
	w := formatter.Writer
	run := state.Run
	fmt.Fprintf(w, "Run %s: %s\n", run.ID, run.Status)
	fmt.Fprintf(w, "  pipeline %s, %d node(s), engine %s\n", run.PipelineHash, run.NodeCount, run.EngineVersion)

	if len(state.Failures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Validation failures:")
		for _, f := range state.Failures {
			fmt.Fprintf(w, "  %s [%s]: %s\n", f.NodeID, f.Code, f.Message)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Events:")
	if len(state.Events) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, ev := range state.Events {
		if ev.Message != "" {
			fmt.Fprintf(w, "  [%d] %s %s (%s)\n", ev.Seq, ev.NodeID, ev.State, ev.Message)
		} else {
			fmt.Fprintf(w, "  [%d] %s %s\n", ev.Seq, ev.NodeID, ev.State)
		}
	}

	if len(state.Unfinished) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Unfinished: %v\n", state.Unfinished)
	}
}

func runListRuns(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeLedger, fmt.Sprintf("open database: %v", err), err)
	}
	defer st.Close()

	var runs []store.Run
	if opts.Incomplete {
		runs, err = st.FindIncompleteRuns(ctx)
	} else {
		runs, err = st.ListRuns(ctx)
	}
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeLedger, fmt.Sprintf("list runs: %v", err), err)
	}
	if runs == nil {
		runs = []store.Run{}
	}

	if formatter.JSON() {
		return formatter.Success(RunList{Runs: runs})
	}

	w := formatter.Writer
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%d  %s  %s  %d node(s)\n", r.Seq, r.ID, r.Status, r.NodeCount)
	}
	return nil
}
