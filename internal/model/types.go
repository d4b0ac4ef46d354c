package model

import (
	"time"

	"hpfold/internal/colony"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord is the persisted outcome of one colony run.
type RunRecord struct {
	VersionedRecord
	ID             string        `json:"id"`
	SweepID        string        `json:"sweep_id,omitempty"`
	Sequence       string        `json:"sequence"`
	BenchmarkIndex int           `json:"benchmark_index"`
	Reference      int           `json:"reference,omitempty"`
	Config         colony.Config `json:"config"`
	Conformation   string        `json:"conformation"`
	BestFitness    float64       `json:"best_fitness"`
	BestIteration  int           `json:"best_iteration"`
	Evaluations    int           `json:"evaluations"`
	Duration       time.Duration `json:"duration_ns"`
	CreatedAt      time.Time     `json:"created_at"`
}

type IterationDiagnostics struct {
	Iteration     int     `json:"iteration"`
	BestFitness   float64 `json:"best_fitness"`
	IterationBest float64 `json:"iteration_best"`
	MeanFitness   float64 `json:"mean_fitness"`
	MinFitness    float64 `json:"min_fitness"`
	Rewinds       int     `json:"rewinds"`
	Improved      bool    `json:"improved"`
}

// Improvement marks an iteration where the best-so-far fitness went up.
type Improvement struct {
	Iteration    int     `json:"iteration"`
	Fitness      float64 `json:"fitness"`
	Conformation string  `json:"conformation"`
}

// SweepRecord groups the runs produced by one parameter sweep.
type SweepRecord struct {
	VersionedRecord
	ID        string    `json:"id"`
	GridName  string    `json:"grid_name"`
	Cells     int       `json:"cells"`
	RunIDs    []string  `json:"run_ids"`
	CreatedAt time.Time `json:"created_at"`
}

func DiagnosticsFromStats(stats []colony.IterationStats) []IterationDiagnostics {
	out := make([]IterationDiagnostics, 0, len(stats))
	for _, s := range stats {
		out = append(out, IterationDiagnostics(s))
	}
	return out
}
