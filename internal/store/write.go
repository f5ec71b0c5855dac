package store

import (
	"context"
	"fmt"

	"github.com/xomicsdatascience/pscs-api/internal/engine"
	"github.com/xomicsdatascience/pscs-api/internal/interaction"
)

// Run is one row of the runs table.
type Run struct {
	ID            string           `json:"id"`
	PipelineHash  string           `json:"pipeline_hash"`
	Status        engine.RunStatus `json:"status"`
	EngineVersion string           `json:"engine_version"`
	NodeCount     int              `json:"node_count"`

	// Seq orders runs by when they were first written.
	Seq int64 `json:"seq"`
}

// ValidationFailure is one row of the validation_failures table.
type ValidationFailure struct {
	RunID      string                   `json:"run_id"`
	NodeID     string                   `json:"node_id"`
	Code       string                   `json:"code"`
	Message    string                   `json:"message"`
	Unmet      interaction.List         `json:"unmet"`
	Guarantees interaction.GuaranteeSet `json:"guarantees"`
}

// WriteRun inserts a run record. Seq is assigned by the store and returned.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - writing the same run id
// again keeps the original row and returns its seq.
func (s *Store) WriteRun(ctx context.Context, run Run) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, pipeline_hash, status, engine_version, node_count, seq)
		VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM runs))
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.PipelineHash,
		string(run.Status),
		run.EngineVersion,
		run.NodeCount,
	)
	if err != nil {
		return 0, fmt.Errorf("write run: insert: %w", err)
	}

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT seq FROM runs WHERE id = ?`, run.ID).Scan(&seq); err != nil {
		return 0, fmt.Errorf("write run: read seq: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("write run: commit: %w", err)
	}
	return seq, nil
}

// UpdateRunStatus sets a run's status. The run must exist.
func (s *Store) UpdateRunStatus(ctx context.Context, runID string, status engine.RunStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET status = ? WHERE id = ?`, string(status), runID)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run status: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update run status: %w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// WriteNodeEvent inserts one state transition.
// Uses ON CONFLICT DO NOTHING: a node reaches each state at most once per
// run, so a repeated write of the same (run, node, state) is ignored.
//
// Note: The run referenced by runID must exist (foreign key constraint).
func (s *Store) WriteNodeEvent(ctx context.Context, runID string, ev engine.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO node_events (run_id, node_id, state, message, seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		runID,
		ev.NodeID,
		string(ev.State),
		ev.Message,
		ev.Seq,
	)
	if err != nil {
		return fmt.Errorf("write node event: %w", err)
	}
	return nil
}

// WriteValidationFailure records why a node failed validation. A node may
// fail several checks; each distinct (code, message) is kept once.
func (s *Store) WriteValidationFailure(ctx context.Context, f ValidationFailure) error {
	unmet, err := marshalUnmet(f.Unmet)
	if err != nil {
		return fmt.Errorf("write validation failure: %w", err)
	}
	guarantees, err := marshalGuarantees(f.Guarantees)
	if err != nil {
		return fmt.Errorf("write validation failure: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO validation_failures (run_id, node_id, code, message, unmet, guarantees)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		f.RunID,
		f.NodeID,
		f.Code,
		f.Message,
		unmet,
		guarantees,
	)
	if err != nil {
		return fmt.Errorf("write validation failure: %w", err)
	}
	return nil
}
