package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xomicsdatascience/pscs-api/internal/engine"
)

// ReadRun retrieves a single run by id.
// Returns ErrRunNotFound if there is no such run.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, pipeline_hash, status, engine_version, node_count, seq
		FROM runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// ListRuns returns every run in the order they were written.
// Returns an empty slice (not nil) when the ledger is empty.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pipeline_hash, status, engine_version, node_count, seq
		FROM runs
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadNodeEvents returns a run's state transitions in logical-clock order.
// Returns an empty slice (not nil) if the run recorded no events.
func (s *Store) ReadNodeEvents(ctx context.Context, runID string) ([]engine.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT node_id, state, message, seq
		FROM node_events
		WHERE run_id = ?
		ORDER BY seq ASC, node_id COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query node events: %w", err)
	}
	defer rows.Close()

	events := []engine.Event{}
	for rows.Next() {
		var ev engine.Event
		var state string
		if err := rows.Scan(&ev.NodeID, &state, &ev.Message, &ev.Seq); err != nil {
			return nil, fmt.Errorf("scan node event: %w", err)
		}
		ev.State = engine.State(state)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate node events: %w", err)
	}
	return events, nil
}

// LatestNodeStates returns each node's most recent state in a run.
func (s *Store) LatestNodeStates(ctx context.Context, runID string) (map[string]engine.State, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.node_id, e.state
		FROM node_events e
		WHERE e.run_id = ?
		  AND e.seq = (
			SELECT MAX(seq) FROM node_events
			WHERE run_id = e.run_id AND node_id = e.node_id
		  )
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query latest node states: %w", err)
	}
	defer rows.Close()

	states := make(map[string]engine.State)
	for rows.Next() {
		var node, state string
		if err := rows.Scan(&node, &state); err != nil {
			return nil, fmt.Errorf("scan node state: %w", err)
		}
		states[node] = engine.State(state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate node states: %w", err)
	}
	return states, nil
}

// ReadValidationFailures returns a run's validation failures ordered by node
// id, and in recording order within a node.
func (s *Store) ReadValidationFailures(ctx context.Context, runID string) ([]ValidationFailure, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, node_id, code, message, unmet, guarantees
		FROM validation_failures
		WHERE run_id = ?
		ORDER BY node_id COLLATE BINARY ASC, rowid ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query validation failures: %w", err)
	}
	defer rows.Close()

	failures := []ValidationFailure{}
	for rows.Next() {
		var f ValidationFailure
		var unmet, guarantees string
		if err := rows.Scan(&f.RunID, &f.NodeID, &f.Code, &f.Message, &unmet, &guarantees); err != nil {
			return nil, fmt.Errorf("scan validation failure: %w", err)
		}
		if f.Unmet, err = unmarshalUnmet(unmet); err != nil {
			return nil, err
		}
		if f.Guarantees, err = unmarshalGuarantees(guarantees); err != nil {
			return nil, err
		}
		failures = append(failures, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate validation failures: %w", err)
	}
	return failures, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var run Run
	var status string
	if err := row.Scan(&run.ID, &run.PipelineHash, &status, &run.EngineVersion, &run.NodeCount, &run.Seq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Status = engine.RunStatus(status)
	return run, nil
}
