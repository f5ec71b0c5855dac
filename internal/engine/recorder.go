package engine

import (
	"context"

	"github.com/xomicsdatascience/pscs-api/internal/validator"
)

// RunStatus is the outcome of a run as a whole.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// RunInfo describes a run when it starts.
type RunInfo struct {
	ID            string
	PipelineHash  string
	EngineVersion string
	NodeCount     int
}

// Recorder receives a run's lifecycle as it happens. The store implements it
// as the run ledger.
//
// Recorder methods are called only from the run loop, never concurrently.
// A Recorder error is logged and the run continues.
type Recorder interface {
	BeginRun(ctx context.Context, info RunInfo) error
	RecordValidation(ctx context.Context, runID string, failure *validator.ValidationError) error
	RecordEvent(ctx context.Context, runID string, ev Event) error
	FinishRun(ctx context.Context, runID string, status RunStatus) error
}

type nopRecorder struct{}

func (nopRecorder) BeginRun(context.Context, RunInfo) error { return nil }

func (nopRecorder) RecordValidation(context.Context, string, *validator.ValidationError) error {
	return nil
}

func (nopRecorder) RecordEvent(context.Context, string, Event) error { return nil }

func (nopRecorder) FinishRun(context.Context, string, RunStatus) error { return nil }
