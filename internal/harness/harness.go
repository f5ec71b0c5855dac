package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/xomicsdatascience/pscs-api/internal/builtin"
	"github.com/xomicsdatascience/pscs-api/internal/catalog"
	"github.com/xomicsdatascience/pscs-api/internal/designer"
	"github.com/xomicsdatascience/pscs-api/internal/engine"
	"github.com/xomicsdatascience/pscs-api/internal/store"
	"github.com/xomicsdatascience/pscs-api/internal/testutil"
)

// Option configures a scenario run.
type Option func(*config)

type config struct {
	registry *catalog.Registry
	logger   *slog.Logger
}

// WithRegistry runs scenarios against reg instead of the builtin types.
func WithRegistry(reg *catalog.Registry) Option {
	return func(c *config) {
		if reg != nil {
			c.registry = reg
		}
	}
}

// WithLogger sets the engine's logger. Default: logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory ledger with one worker and a fixed
// run id. The trace, the states and the validation failures are read back
// from the ledger, so a passing scenario also shows they were recorded.
//
// Run returns an error only when the scenario cannot be run at all: the
// pipeline does not load or build, or the ledger fails. Node failures are
// part of the outcome and are checked against Expect.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := config{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.registry == nil {
		reg := catalog.NewRegistry()
		if err := builtin.Register(reg); err != nil {
			return nil, fmt.Errorf("register builtins: %w", err)
		}
		cfg.registry = reg
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	def, err := designer.LoadFile(scenario.Pipeline)
	if err != nil {
		return nil, err
	}
	if err := designer.AssignInputs(def, scenario.Inputs, ""); err != nil {
		return nil, err
	}

	outDir := scenario.OutputDir
	if outDir == "" {
		outDir, err = os.MkdirTemp("", "pscs-scenario-*")
		if err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
		defer os.RemoveAll(outDir)
	}
	if err := designer.AssignOutputs(def, cfg.registry, outDir); err != nil {
		return nil, err
	}

	g, err := designer.Build(def, cfg.registry, nil)
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}
	hash, err := def.Hash()
	if err != nil {
		return nil, err
	}

	eng := engine.New(
		engine.WithWorkers(1),
		engine.WithLogger(cfg.logger),
		engine.WithRecorder(st),
		engine.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(scenario.RunID)),
	)

	ctx := context.Background()
	res, runErr := eng.Run(ctx, g, engine.WithPipelineHash(hash))
	if res == nil {
		return nil, runErr
	}
	if runErr != nil && !engine.IsNodeFailure(runErr) {
		return nil, runErr
	}

	state, err := st.GetRunState(ctx, res.RunID)
	if err != nil {
		return nil, fmt.Errorf("read run state: %w", err)
	}

	result := NewResult()
	result.RunID = res.RunID
	result.Trace = state.Events
	result.States = state.States
	result.Failures = state.Failures
	result.Report = res.Report

	for _, msg := range checkExpect(result, scenario.Expect) {
		result.AddError(msg)
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	cfg.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"run_id", res.RunID,
		"pass", result.Pass,
		"errors", len(result.Errors),
	)
	return result, nil
}
