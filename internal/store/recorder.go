package store

import (
	"context"

	"github.com/xomicsdatascience/pscs-api/internal/engine"
	"github.com/xomicsdatascience/pscs-api/internal/validator"
)

var _ engine.Recorder = (*Store)(nil)

// BeginRun implements engine.Recorder.
func (s *Store) BeginRun(ctx context.Context, info engine.RunInfo) error {
	_, err := s.WriteRun(ctx, Run{
		ID:            info.ID,
		PipelineHash:  info.PipelineHash,
		Status:        engine.RunRunning,
		EngineVersion: info.EngineVersion,
		NodeCount:     info.NodeCount,
	})
	return err
}

// RecordValidation implements engine.Recorder.
func (s *Store) RecordValidation(ctx context.Context, runID string, f *validator.ValidationError) error {
	return s.WriteValidationFailure(ctx, ValidationFailure{
		RunID:      runID,
		NodeID:     f.NodeID,
		Code:       f.Code,
		Message:    f.Message,
		Unmet:      f.Unmet,
		Guarantees: f.Guarantees,
	})
}

// RecordEvent implements engine.Recorder.
func (s *Store) RecordEvent(ctx context.Context, runID string, ev engine.Event) error {
	return s.WriteNodeEvent(ctx, runID, ev)
}

// FinishRun implements engine.Recorder.
func (s *Store) FinishRun(ctx context.Context, runID string, status engine.RunStatus) error {
	return s.UpdateRunStatus(ctx, runID, status)
}
