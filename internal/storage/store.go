package storage

import (
	"context"

	"hpfold/internal/model"
)

// Store defines persistence operations for runs, their iteration history and
// the sweeps that group them.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context, sweepID string) ([]model.RunRecord, error)
	SaveIterationHistory(ctx context.Context, runID string, history []model.IterationDiagnostics) error
	GetIterationHistory(ctx context.Context, runID string) ([]model.IterationDiagnostics, bool, error)
	SaveSweep(ctx context.Context, sweep model.SweepRecord) error
	GetSweep(ctx context.Context, id string) (model.SweepRecord, bool, error)
}
