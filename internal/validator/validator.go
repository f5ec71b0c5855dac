package validator

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xomicsdatascience/pscs-api/internal/interaction"
	"github.com/xomicsdatascience/pscs-api/internal/pipeline"
)

// Report is the outcome of validating a whole graph.
type Report struct {
	// Failures lists every node that failed its own checks, in topological order.
	Failures []*ValidationError `json:"failures"`

	// Blocked lists nodes downstream of a failure. They were not checked.
	Blocked []string `json:"blocked,omitempty"`

	// Guarantees is the accumulated set each checked node received.
	Guarantees map[string]interaction.GuaranteeSet `json:"guarantees"`

	// Outputs is the set each passing node hands to its consumers.
	Outputs map[string]interaction.GuaranteeSet `json:"outputs"`

	halted map[string]bool
}

// Passed reports whether the graph is runnable as a whole.
func (r *Report) Passed() bool {
	return len(r.Failures) == 0
}

// Runnable reports whether the node passed and nothing upstream failed.
func (r *Report) Runnable(id string) bool {
	return !r.halted[id]
}

// FailureFor returns the failure recorded for id, if any.
func (r *Report) FailureFor(id string) (*ValidationError, bool) {
	for _, f := range r.Failures {
		if f.NodeID == id {
			return f, true
		}
	}
	return nil, false
}

// IsBlocked reports whether id was blocked by an upstream failure.
func (r *Report) IsBlocked(id string) bool {
	for _, b := range r.Blocked {
		if b == id {
			return true
		}
	}
	return false
}

// Err joins every failure, or returns nil when the report passed.
func (r *Report) Err() error {
	if r.Passed() {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Option configures Validate.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger for per-node results. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Validate checks every node in g. It fails only when g has no topological
// order; contract problems are returned in the Report.
func Validate(g *pipeline.Graph, opts ...Option) (*Report, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	open := make(map[string][]int)
	for _, s := range g.UnconnectedSlots() {
		open[s.NodeID] = append(open[s.NodeID], s.Slot)
	}

	r := &Report{
		Guarantees: make(map[string]interaction.GuaranteeSet, len(order)),
		Outputs:    make(map[string]interaction.GuaranteeSet, len(order)),
		halted:     make(map[string]bool),
	}

	for _, n := range order {
		upstream := g.Upstream(n.ID)
		if blockedBy := firstHalted(r.halted, upstream); blockedBy != "" {
			r.halted[n.ID] = true
			r.Blocked = append(r.Blocked, n.ID)
			o.logger.Debug("node blocked", "node_id", n.ID, "upstream", blockedBy)
			continue
		}

		acc := interaction.NewGuaranteeSet()
		for _, u := range upstream {
			acc = acc.Union(r.Outputs[u])
		}
		r.Guarantees[n.ID] = acc

		if fails := checkNode(n, acc, open[n.ID]); len(fails) > 0 {
			r.halted[n.ID] = true
			r.Failures = append(r.Failures, fails...)
			for _, f := range fails {
				o.logger.Warn("node failed validation", "node_id", n.ID, "code", f.Code, "error", f.Message)
			}
			continue
		}

		effects, err := n.Effects.Guarantees(n.Params)
		if err != nil {
			r.halted[n.ID] = true
			r.Failures = append(r.Failures, unresolved(n.ID, acc, "effects", err))
			o.logger.Warn("node failed validation", "node_id", n.ID, "code", CodeUnresolvedParameter, "error", err)
			continue
		}
		r.Outputs[n.ID] = acc.Union(effects)
		o.logger.Debug("node validated", "node_id", n.ID, "guarantees", r.Outputs[n.ID].Len())
	}

	return r, nil
}

func checkNode(n *pipeline.Node, acc interaction.GuaranteeSet, openSlots []int) []*ValidationError {
	if len(openSlots) > 0 {
		fails := make([]*ValidationError, len(openSlots))
		for i, slot := range openSlots {
			fails[i] = &ValidationError{
				NodeID:     n.ID,
				Code:       CodeUnconnectedInput,
				Guarantees: acc,
				Message:    fmt.Sprintf("input slot %d is not connected", slot),
			}
		}
		return fails
	}

	check, err := n.Requirements.Check(acc, n.Params)
	if err != nil {
		return []*ValidationError{unresolved(n.ID, acc, "requirements", err)}
	}
	if check.Satisfied {
		return nil
	}
	return []*ValidationError{{
		NodeID:           n.ID,
		Code:             CodeRequirementNotMet,
		Unmet:            n.Requirements,
		UnmetDescription: n.Requirements.Describe(),
		Guarantees:       acc,
		Message:          unmetMessage(n.Requirements, check, acc),
	}}
}

func unresolved(id string, acc interaction.GuaranteeSet, where string, err error) *ValidationError {
	return &ValidationError{
		NodeID:     id,
		Code:       CodeUnresolvedParameter,
		Guarantees: acc,
		Message:    fmt.Sprintf("%s: %v", where, err),
		Err:        err,
	}
}

func unmetMessage(reqs interaction.List, check interaction.Check, acc interaction.GuaranteeSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "requires %s; have %s", reqs.Describe(), acc)
	if closest, ok := check.Closest(); ok {
		missing := make([]string, len(closest.Missing))
		for i, p := range closest.Missing {
			missing[i] = p.String()
		}
		fmt.Fprintf(&b, "; closest branch is missing %s", strings.Join(missing, ", "))
	}
	return b.String()
}

func firstHalted(halted map[string]bool, ids []string) string {
	for _, id := range ids {
		if halted[id] {
			return id
		}
	}
	return ""
}
