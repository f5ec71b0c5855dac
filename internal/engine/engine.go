package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/xomicsdatascience/pscs-api/internal/ir"
	"github.com/xomicsdatascience/pscs-api/internal/pipeline"
	"github.com/xomicsdatascience/pscs-api/internal/validator"
)

// Engine executes validated pipeline graphs.
//
// An Engine holds configuration only; every call to Run is independent and
// an Engine may run several graphs concurrently.
type Engine struct {
	workers  int
	logger   *slog.Logger
	recorder Recorder
	runIDs   RunIDGenerator
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithWorkers bounds how many processors run at once. Values below 1 are
// ignored. Default: runtime.NumCPU().
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		if n >= 1 {
			e.workers = n
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRecorder sends every run's lifecycle to r.
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithRunIDGenerator replaces the UUIDv7 run id source.
func WithRunIDGenerator(g RunIDGenerator) EngineOption {
	return func(e *Engine) {
		if g != nil {
			e.runIDs = g
		}
	}
}

// New creates an Engine.
func New(opts ...EngineOption) *Engine {
	e := &Engine{
		workers:  runtime.NumCPU(),
		logger:   slog.Default(),
		recorder: nopRecorder{},
		runIDs:   UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunOption configures a single run.
type RunOption func(*runConfig)

type runConfig struct {
	pipelineHash string
}

// WithPipelineHash records the content hash of the definition the graph was
// built from.
func WithPipelineHash(hash string) RunOption {
	return func(c *runConfig) {
		c.pipelineHash = hash
	}
}

// Result is everything a run produced.
type Result struct {
	RunID  string
	Status RunStatus

	// Order is the topological order the run followed.
	Order []string

	States map[string]State
	Errors map[string]*NodeError
	Events []Event
	Report *validator.Report

	results *ResultCache
}

// State returns id's final state.
func (r *Result) State(id string) State {
	return r.States[id]
}

// Output returns id's cached result. Output nodes complete with a nil result.
func (r *Result) Output(id string) (any, bool) {
	if !r.results.Has(id) {
		return nil, false
	}
	v, _ := r.results.Load(id)
	return v, true
}

// NodesIn lists the nodes that ended in state s, in run order.
func (r *Result) NodesIn(s State) []string {
	var out []string
	for _, id := range r.Order {
		if r.States[id] == s {
			out = append(out, id)
		}
	}
	return out
}

// Run validates g and executes every runnable node once, in dependency order.
//
// Nodes that fail validation, and everything downstream of them, are marked
// Skipped without running. A node whose processor fails is marked Failed and
// its descendants Skipped; independent branches still run to completion.
//
// Run returns an error when g has no topological order, when ctx is
// cancelled, or as a *RunError when any node failed. Validation failures alone
// are not an error: inspect Result.Report.
func (e *Engine) Run(ctx context.Context, g *pipeline.Graph, opts ...RunOption) (*Result, error) {
	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	report, err := validator.Validate(g, validator.WithLogger(e.logger))
	if err != nil {
		return nil, fmt.Errorf("validate graph: %w", err)
	}
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	r := &run{
		engine:    e,
		graph:     g,
		clock:     NewClock(),
		cache:     NewResultCache(),
		remaining: make(map[string]int, len(order)),
		position:  make(map[string]int, len(order)),
		res: &Result{
			RunID:  e.runIDs.Generate(),
			States: make(map[string]State, len(order)),
			Errors: make(map[string]*NodeError),
			Report: report,
		},
	}
	r.res.results = r.cache
	r.recordCtx = context.WithoutCancel(ctx)

	for i, n := range order {
		r.res.Order = append(r.res.Order, n.ID)
		r.res.States[n.ID] = StatePending
		r.position[n.ID] = i
		r.remaining[n.ID] = len(distinct(g.Upstream(n.ID)))
	}

	e.logger.Info("run starting", "run_id", r.res.RunID, "nodes", len(order), "workers", e.workers)
	r.record("begin run", e.recorder.BeginRun(r.recordCtx, RunInfo{
		ID:            r.res.RunID,
		PipelineHash:  cfg.pipelineHash,
		EngineVersion: ir.EngineVersion,
		NodeCount:     len(order),
	}))

	r.skipInvalid(order)
	r.execute(ctx, order)
	return r.finish(ctx)
}

// run is the state of one Run call. Only the run loop goroutine touches it;
// workers communicate through the done channel.
type run struct {
	engine    *Engine
	graph     *pipeline.Graph
	clock     *Clock
	cache     *ResultCache
	res       *Result
	remaining map[string]int
	position  map[string]int
	failures  []*NodeError
	recordCtx context.Context
	cancelled bool
}

type outcome struct {
	node   *pipeline.Node
	result any
	err    error
}

func (r *run) skipInvalid(order []*pipeline.Node) {
	for _, f := range r.res.Report.Failures {
		r.record("record validation failure", r.engine.recorder.RecordValidation(r.recordCtx, r.res.RunID, f))
	}
	for _, n := range order {
		if r.res.Report.Runnable(n.ID) || r.res.States[n.ID] != StatePending {
			continue
		}
		msg := "blocked by upstream validation failure"
		if f, ok := r.res.Report.FailureFor(n.ID); ok {
			msg = "validation failed: " + f.Message
		}
		r.transition(n.ID, StateSkipped, msg)
	}
}

func (r *run) execute(ctx context.Context, order []*pipeline.Node) {
	var grp errgroup.Group
	grp.SetLimit(r.engine.workers)
	done := make(chan outcome, len(order))

	var ready []string
	for _, n := range order {
		if r.res.States[n.ID] == StatePending && r.remaining[n.ID] == 0 {
			r.transition(n.ID, StateReady, "")
			ready = append(ready, n.ID)
		}
	}

	running := 0
	for len(ready) > 0 || running > 0 {
		for len(ready) > 0 && ctx.Err() == nil {
			n, _ := r.graph.Node(ready[0])
			ready = ready[1:]

			r.transition(n.ID, StateRunning, "")
			inputs, err := r.inputs(n)
			if err != nil {
				r.fail(n, err)
				continue
			}

			running++
			grp.Go(func() error {
				result, err := r.engine.invoke(ctx, n, inputs)
				done <- outcome{node: n, result: result, err: err}
				return nil
			})
		}
		if running == 0 {
			break
		}

		o := <-done
		running--
		if o.err != nil {
			r.fail(o.node, o.err)
			continue
		}
		if err := r.complete(o.node, o.result); err != nil {
			r.fail(o.node, err)
			continue
		}
		for _, d := range r.graph.Downstream(o.node.ID) {
			r.remaining[d]--
			if r.remaining[d] == 0 && r.res.States[d] == StatePending {
				r.transition(d, StateReady, "")
				ready = r.enqueue(ready, d)
			}
		}
	}
	_ = grp.Wait()

	if ctx.Err() != nil {
		for _, id := range r.res.Order {
			if s := r.res.States[id]; s == StatePending || s == StateReady {
				r.cancelled = true
				r.transition(id, StateSkipped, "run cancelled")
			}
		}
	}
}

// enqueue keeps ready sorted by topological position.
func (r *run) enqueue(ready []string, id string) []string {
	pos, _ := slices.BinarySearchFunc(ready, r.position[id], func(x string, target int) int {
		return r.position[x] - target
	})
	return slices.Insert(ready, pos, id)
}

// inputs collects n's upstream results in slot order. Every consumer gets its
// own copy of a result that supports cloning, so the cached result stays as
// its producer wrote it.
func (r *run) inputs(n *pipeline.Node) ([]any, error) {
	edges := r.graph.InputEdges(n.ID)
	in := make([]any, len(edges))
	for i, e := range edges {
		v, err := r.cache.Load(e.From)
		if err != nil {
			return nil, err
		}
		if c, ok := v.(pipeline.Cloner); ok {
			v = c.Clone()
			r.engine.logger.Debug("cloned input", "run_id", r.res.RunID, "node_id", n.ID,
				"from", e.From, "consumers", r.graph.Consumers(e.From))
		}
		in[i] = v
	}
	return in, nil
}

func (r *run) complete(n *pipeline.Node, result any) error {
	if !n.KeepsResult() {
		result = nil
	}
	if err := r.cache.Store(n.ID, result); err != nil {
		return err
	}
	r.transition(n.ID, StateCompleted, "")
	return nil
}

func (r *run) fail(n *pipeline.Node, err error) {
	ne := &NodeError{NodeID: n.ID, Err: err}
	r.failures = append(r.failures, ne)
	r.res.Errors[n.ID] = ne
	r.transition(n.ID, StateFailed, err.Error())
	r.engine.logger.Error("node failed", "run_id", r.res.RunID, "node_id", n.ID, "error", err)

	for _, d := range r.graph.Descendants(n.ID) {
		if !r.res.States[d].Terminal() {
			r.transition(d, StateSkipped, fmt.Sprintf("upstream node %s failed", n.ID))
		}
	}
}

func (r *run) transition(id string, s State, msg string) {
	r.res.States[id] = s
	ev := Event{Seq: r.clock.Next(), NodeID: id, State: s, Message: msg}
	r.res.Events = append(r.res.Events, ev)
	r.engine.logger.Debug("node state", "run_id", r.res.RunID, "node_id", id, "state", s, "seq", ev.Seq)
	r.record("record event", r.engine.recorder.RecordEvent(r.recordCtx, r.res.RunID, ev))
}

func (r *run) record(what string, err error) {
	if err != nil {
		r.engine.logger.Error("recorder failed", "run_id", r.res.RunID, "op", what, "error", err)
	}
}

func (r *run) finish(ctx context.Context) (*Result, error) {
	switch {
	case r.cancelled:
		r.res.Status = RunCancelled
	case len(r.res.NodesIn(StateCompleted)) == len(r.res.Order):
		r.res.Status = RunSucceeded
	default:
		r.res.Status = RunFailed
	}
	r.record("finish run", r.engine.recorder.FinishRun(r.recordCtx, r.res.RunID, r.res.Status))
	r.engine.logger.Info("run finished",
		"run_id", r.res.RunID,
		"status", r.res.Status,
		"completed", len(r.res.NodesIn(StateCompleted)),
		"failed", len(r.failures),
		"skipped", len(r.res.NodesIn(StateSkipped)),
	)

	if r.cancelled {
		return r.res, fmt.Errorf("run %s: %w", r.res.RunID, ctx.Err())
	}
	if len(r.failures) > 0 {
		return r.res, &RunError{RunID: r.res.RunID, Failures: r.failures}
	}
	return r.res, nil
}

// invoke calls n's processor once, converting a panic into a PanicError.
func (e *Engine) invoke(ctx context.Context, n *pipeline.Node, inputs []any) (result any, err error) {
	if n.Process == nil {
		return nil, ErrNoProcessor
	}
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v, Stack: debug.Stack()}
		}
	}()
	return n.Process(ctx, inputs, n.Params)
}

func distinct(ids []string) []string {
	var out []string
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
