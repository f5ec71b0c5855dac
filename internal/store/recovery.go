package store

import (
	"context"
	"fmt"

	"github.com/xomicsdatascience/pscs-api/internal/engine"
)

// RunState is everything the ledger knows about one run.
type RunState struct {
	Run      Run                     `json:"run"`
	Events   []engine.Event          `json:"events"`
	States   map[string]engine.State `json:"states"`
	Failures []ValidationFailure     `json:"validation_failures"`

	// Unfinished lists nodes whose latest state is not terminal, ordered by
	// the seq of that state. It is non-empty only for runs that stopped
	// without finishing, e.g. a crashed process.
	Unfinished []string `json:"unfinished,omitempty"`
}

// GetRunState assembles the full record of a run.
func (s *Store) GetRunState(ctx context.Context, runID string) (RunState, error) {
	run, err := s.ReadRun(ctx, runID)
	if err != nil {
		return RunState{}, err
	}
	events, err := s.ReadNodeEvents(ctx, runID)
	if err != nil {
		return RunState{}, err
	}
	failures, err := s.ReadValidationFailures(ctx, runID)
	if err != nil {
		return RunState{}, err
	}

	states := make(map[string]engine.State)
	for _, ev := range events {
		states[ev.NodeID] = ev.State
	}
	var unfinished []string
	seen := make(map[string]bool)
	for i := len(events) - 1; i >= 0; i-- {
		id := events[i].NodeID
		if seen[id] {
			continue
		}
		seen[id] = true
		if !states[id].Terminal() {
			unfinished = append([]string{id}, unfinished...)
		}
	}

	return RunState{
		Run:        run,
		Events:     events,
		States:     states,
		Failures:   failures,
		Unfinished: unfinished,
	}, nil
}

// FindIncompleteRuns returns runs still marked running, in run order.
// Outside of a live process these are runs that never finished.
func (s *Store) FindIncompleteRuns(ctx context.Context) ([]Run, error) {
	runs, err := s.ListRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("find incomplete runs: %w", err)
	}
	out := []Run{}
	for _, r := range runs {
		if r.Status == engine.RunRunning {
			out = append(out, r)
		}
	}
	return out, nil
}
