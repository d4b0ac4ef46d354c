// Package hpfold is the public entry point for folding HP sequences with the
// ant colony and managing the resulting runs.
package hpfold

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"hpfold/internal/colony"
	"hpfold/internal/conformation"
	"hpfold/internal/model"
	"hpfold/internal/protein"
	"hpfold/internal/render"
	"hpfold/internal/report"
	"hpfold/internal/stats"
	"hpfold/internal/storage"
	"hpfold/internal/sweep"
)

const (
	defaultRunsDir       = "runs"
	defaultExportsDir    = "exports"
	defaultDBPath        = "hpfold.db"
	defaultBenchmarkFile = "benchmarks.txt"
	defaultResultsFile   = "benchmark_results.txt"
)

// Fixed width so the run index sorts lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Options struct {
	StoreKind     string
	DBPath        string
	RunsDir       string
	ExportsDir    string
	BenchmarkFile string
	ResultsFile   string
	Logger        *slog.Logger
	Metrics       *report.Metrics
}

type Client struct {
	store   storage.Store
	results *stats.ResultSink
	logger  *slog.Logger
	metrics *report.Metrics

	runsDir       string
	exportsDir    string
	benchmarkFile string

	initMu      sync.Mutex
	initialized bool

	// run_index.json is rewritten in place; sweeps append from many runs.
	indexMu sync.Mutex
}

// RunRequest folds Sequence, or the benchmark at BenchmarkIndex when
// Sequence is empty. A zero Config runs with colony.DefaultConfig.
type RunRequest struct {
	RunID          string
	Sequence       string
	BenchmarkIndex int
	Reference      int
	Config         colony.Config
	AppendResult   bool
	Observer       colony.Observer
}

type RunSummary struct {
	RunID           string
	ArtifactsDir    string
	Sequence        string
	BenchmarkIndex  int
	Reference       int
	Config          colony.Config
	Best            *conformation.Conformation
	BestFitness     float64
	BestIteration   int
	BestByIteration []float64
	Evaluations     int
	Duration        time.Duration
}

type RunsRequest struct {
	Limit   int
	SweepID string
}

type RunItem struct {
	RunID            string
	SweepID          string
	CreatedAtUTC     string
	Sequence         string
	BenchmarkIndex   int
	AntCount         int
	MaxIter          int
	Seed             int64
	FinalBestFitness float64
	Reference        int
	Conformation     string
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type HistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type ShowRequest struct {
	RunID  string
	Latest bool
}

type ShowResult struct {
	RunID          string
	Sequence       string
	BenchmarkIndex int
	Config         colony.Config
	Conformation   string
	Fitness        float64
	Reference      int
	Improvements   []model.Improvement
	Drawing        string
}

type ConvergenceRequest struct {
	SweepID string
}

type ConvergenceSummary struct {
	SweepID   string
	Directory string
	Curves    []stats.ConvergenceCurve
	Files     []string
}

type SweepRequest struct {
	Grid     sweep.Grid
	Observer func(sweep.Outcome)
}

type SweepSummary struct {
	SweepID     string
	Directory   string
	ResultsPath string
	Runs        int
	Summaries   []stats.CellSummary
	Convergence []stats.ConvergenceCurve
	Files       []string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	runsDir := opts.RunsDir
	if runsDir == "" {
		runsDir = defaultRunsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	benchmarkFile := opts.BenchmarkFile
	if benchmarkFile == "" {
		benchmarkFile = defaultBenchmarkFile
	}
	resultsFile := opts.ResultsFile
	if resultsFile == "" {
		resultsFile = defaultResultsFile
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:         store,
		results:       stats.NewResultSink(resultsFile),
		logger:        logger,
		metrics:       opts.Metrics,
		runsDir:       runsDir,
		exportsDir:    exportsDir,
		benchmarkFile: benchmarkFile,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) ensureInit(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	c.initialized = true
	return nil
}

// Benchmarks lists the entries of the configured benchmark file.
func (c *Client) Benchmarks(_ context.Context) ([]protein.Benchmark, error) {
	return protein.LoadBenchmarks(c.benchmarkFile)
}

type runTarget struct {
	sequence       protein.Sequence
	benchmarkIndex int
	reference      int
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	var target runTarget
	if req.Sequence != "" {
		seq, err := protein.Parse(req.Sequence)
		if err != nil {
			return RunSummary{}, err
		}
		target = runTarget{sequence: seq, benchmarkIndex: -1, reference: req.Reference}
	} else {
		bench, err := protein.LoadBenchmark(c.benchmarkFile, req.BenchmarkIndex)
		if err != nil {
			return RunSummary{}, err
		}
		target = runTarget{sequence: bench.Sequence, benchmarkIndex: bench.Index, reference: bench.Reference}
	}
	return c.run(ctx, target, req, "")
}

func normalizeConfig(cfg colony.Config) colony.Config {
	if cfg == (colony.Config{}) {
		return colony.DefaultConfig()
	}
	def := colony.DefaultConfig()
	if cfg.AntCount <= 0 {
		cfg.AntCount = def.AntCount
	}
	if cfg.MaxIter <= 0 {
		cfg.MaxIter = def.MaxIter
	}
	if cfg.Deposit == "" {
		cfg.Deposit = def.Deposit
	}
	return cfg
}

func (c *Client) run(ctx context.Context, target runTarget, req RunRequest, sweepID string) (RunSummary, error) {
	if err := c.ensureInit(ctx); err != nil {
		return RunSummary{}, err
	}
	cfg := normalizeConfig(req.Config)
	if err := cfg.Validate(); err != nil {
		return RunSummary{}, err
	}
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	logger := c.logger.With("run_id", runID)
	recorder := report.NewRecorder()
	observers := colony.Observers{recorder, report.NewSlogObserver(logger)}
	if c.metrics != nil {
		observers = append(observers, c.metrics)
	}
	if req.Observer != nil {
		observers = append(observers, req.Observer)
	}

	logger.Info("run started",
		"sequence", target.sequence.String(),
		"benchmark_index", target.benchmarkIndex,
		"ant_count", cfg.AntCount,
		"max_iter", cfg.MaxIter,
		"seed", cfg.Seed,
	)
	start := time.Now()
	result, err := colony.Run(ctx, target.sequence, cfg, observers)
	if c.metrics != nil {
		c.metrics.RunFinished(err)
	}
	if err != nil {
		logger.Error("run failed", "error", err)
		return RunSummary{}, err
	}
	elapsed := time.Since(start)
	now := time.Now().UTC()

	record := model.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              runID,
		SweepID:         sweepID,
		Sequence:        target.sequence.String(),
		BenchmarkIndex:  target.benchmarkIndex,
		Reference:       target.reference,
		Config:          cfg,
		Conformation:    result.Best.String(),
		BestFitness:     result.BestFitness,
		BestIteration:   result.BestIteration,
		Evaluations:     result.Evaluations,
		Duration:        elapsed,
		CreatedAt:       now,
	}
	diagnostics := model.DiagnosticsFromStats(result.Iterations)
	if err := c.store.SaveRun(ctx, record); err != nil {
		return RunSummary{}, fmt.Errorf("save run: %w", err)
	}
	if err := c.store.SaveIterationHistory(ctx, runID, diagnostics); err != nil {
		return RunSummary{}, fmt.Errorf("save iteration history: %w", err)
	}

	runDir, err := stats.WriteRunArtifacts(c.runsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:          runID,
			SweepID:        sweepID,
			Sequence:       record.Sequence,
			BenchmarkIndex: record.BenchmarkIndex,
			Reference:      record.Reference,
			Colony:         cfg,
		},
		BestByIteration:      result.BestByIteration,
		IterationDiagnostics: diagnostics,
		Improvements:         recorder.Improvements(),
		FinalBestFitness:     result.BestFitness,
		Best: stats.BestConformation{
			Sequence:     record.Sequence,
			Conformation: record.Conformation,
			Fitness:      result.BestFitness,
			Iteration:    result.BestIteration,
			Reference:    record.Reference,
		},
	})
	if err != nil {
		return RunSummary{}, err
	}
	if err := stats.WriteBenchmarkSeries(runDir, result.BestByIteration); err != nil {
		return RunSummary{}, err
	}
	c.indexMu.Lock()
	err = stats.AppendRunIndex(c.runsDir, stats.RunIndexEntry{
		RunID:            runID,
		SweepID:          sweepID,
		Sequence:         record.Sequence,
		BenchmarkIndex:   record.BenchmarkIndex,
		AntCount:         cfg.AntCount,
		MaxIter:          cfg.MaxIter,
		Seed:             cfg.Seed,
		Workers:          cfg.Workers,
		FinalBestFitness: result.BestFitness,
		Reference:        record.Reference,
		Conformation:     record.Conformation,
		CreatedAtUTC:     now.Format(timestampLayout),
	})
	c.indexMu.Unlock()
	if err != nil {
		return RunSummary{}, err
	}
	if req.AppendResult {
		if err := c.results.Append(resultLine(record)); err != nil {
			return RunSummary{}, fmt.Errorf("append result: %w", err)
		}
	}

	logger.Info("run completed",
		"best_fitness", result.BestFitness,
		"best_iteration", result.BestIteration,
		"conformation", record.Conformation,
		"evaluations", result.Evaluations,
		"duration", elapsed,
	)

	return RunSummary{
		RunID:           runID,
		ArtifactsDir:    filepath.Clean(runDir),
		Sequence:        record.Sequence,
		BenchmarkIndex:  record.BenchmarkIndex,
		Reference:       record.Reference,
		Config:          cfg,
		Best:            result.Best,
		BestFitness:     result.BestFitness,
		BestIteration:   result.BestIteration,
		BestByIteration: append([]float64(nil), result.BestByIteration...),
		Evaluations:     result.Evaluations,
		Duration:        elapsed,
	}, nil
}

func resultLine(run model.RunRecord) stats.ResultLine {
	return stats.ResultLine{
		BenchmarkIndex:      run.BenchmarkIndex,
		AntCount:            run.Config.AntCount,
		NoImprMax:           run.Config.NoImprMax,
		Evaporation:         run.Config.Evaporation,
		Alpha:               run.Config.Alpha,
		Beta:                run.Config.Beta,
		NeutralMutationRate: run.Config.NeutralMutationRate,
		Conformation:        run.Conformation,
		Found:               run.BestFitness,
		Reference:           run.Reference,
	}
}

// Sweep runs every cell of the grid on the selected benchmarks, appending a
// result line per run and writing a per-cell summary.
func (c *Client) Sweep(ctx context.Context, req SweepRequest) (SweepSummary, error) {
	grid := req.Grid
	if err := grid.Validate(); err != nil {
		return SweepSummary{}, err
	}
	if err := c.ensureInit(ctx); err != nil {
		return SweepSummary{}, err
	}
	all, err := protein.LoadBenchmarks(c.benchmarkFile)
	if err != nil {
		return SweepSummary{}, err
	}
	benchmarks, err := sweep.SelectBenchmarks(grid, all)
	if err != nil {
		return SweepSummary{}, err
	}

	sweepID := uuid.NewString()
	started := time.Now().UTC()
	jobs := sweep.Jobs(grid, benchmarks)
	c.logger.Info("sweep started", "sweep_id", sweepID, "grid", grid.Name, "cells", grid.Size(), "runs", len(jobs))

	var observeMu sync.Mutex
	outcomes, err := sweep.Execute(ctx, jobs, grid.Parallel, func(ctx context.Context, job sweep.Job) (sweep.Outcome, error) {
		target := runTarget{sequence: job.Benchmark.Sequence, benchmarkIndex: job.Benchmark.Index, reference: job.Benchmark.Reference}
		summary, err := c.run(ctx, target, RunRequest{Config: job.Config, AppendResult: true}, sweepID)
		if err != nil {
			return sweep.Outcome{}, err
		}
		outcome := sweep.Outcome{
			Job:             job,
			RunID:           summary.RunID,
			Result:          job.ResultLine(summary.Best.String(), summary.BestFitness),
			BestByIteration: summary.BestByIteration,
		}
		if req.Observer != nil {
			observeMu.Lock()
			req.Observer(outcome)
			observeMu.Unlock()
		}
		return outcome, nil
	})
	if err != nil {
		return SweepSummary{}, err
	}

	runIDs := make([]string, 0, len(outcomes))
	lines := make([]stats.ResultLine, 0, len(outcomes))
	series := make([][]float64, 0, len(outcomes))
	for _, outcome := range outcomes {
		runIDs = append(runIDs, outcome.RunID)
		lines = append(lines, outcome.Result)
		series = append(series, outcome.BestByIteration)
	}
	summaries := stats.SummarizeResults(lines)
	curves, err := stats.GroupConvergence(lines, series)
	if err != nil {
		return SweepSummary{}, err
	}

	if err := c.store.SaveSweep(ctx, model.SweepRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              sweepID,
		GridName:        grid.Name,
		Cells:           grid.Size(),
		RunIDs:          runIDs,
		CreatedAt:       started,
	}); err != nil {
		return SweepSummary{}, fmt.Errorf("save sweep: %w", err)
	}
	dir, err := stats.WriteSweepExperiment(c.runsDir, stats.SweepExperiment{
		ID:             sweepID,
		GridName:       grid.Name,
		StartedAtUTC:   started.Format(timestampLayout),
		CompletedAtUTC: time.Now().UTC().Format(timestampLayout),
		TotalRuns:      len(outcomes),
		ResultsPath:    c.results.Path(),
		RunIDs:         runIDs,
		Summaries:      summaries,
	})
	if err != nil {
		return SweepSummary{}, err
	}
	convergenceFiles, err := stats.WriteConvergenceCurves(dir, curves)
	if err != nil {
		return SweepSummary{}, err
	}
	c.logger.Info("sweep completed", "sweep_id", sweepID, "runs", len(outcomes))

	return SweepSummary{
		SweepID:     sweepID,
		Directory:   filepath.Clean(dir),
		ResultsPath: c.results.Path(),
		Runs:        len(outcomes),
		Summaries:   summaries,
		Convergence: curves,
		Files:       convergenceFiles,
	}, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return nil, err
	}

	out := make([]RunItem, 0, min(len(entries), req.Limit))
	for _, e := range entries {
		if req.SweepID != "" && e.SweepID != req.SweepID {
			continue
		}
		if len(out) == req.Limit {
			break
		}
		out = append(out, RunItem{
			RunID:            e.RunID,
			SweepID:          e.SweepID,
			CreatedAtUTC:     e.CreatedAtUTC,
			Sequence:         e.Sequence,
			BenchmarkIndex:   e.BenchmarkIndex,
			AntCount:         e.AntCount,
			MaxIter:          e.MaxIter,
			Seed:             e.Seed,
			FinalBestFitness: e.FinalBestFitness,
			Reference:        e.Reference,
			Conformation:     e.Conformation,
		})
	}
	return out, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	runID, err := c.resolveRunID(req.RunID, req.Latest, "export")
	if err != nil {
		return ExportSummary{}, err
	}

	exportedDir, err := stats.ExportRunArtifacts(c.runsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

// History returns the per-iteration diagnostics of a run. The store is
// consulted first; runs made by another process are read from artifacts.
func (c *Client) History(ctx context.Context, req HistoryRequest) ([]model.IterationDiagnostics, error) {
	if req.RunID != "" && req.Latest {
		return nil, errors.New("use either run id or latest")
	}
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "history")
	if err != nil {
		return nil, err
	}
	if err := c.ensureInit(ctx); err != nil {
		return nil, err
	}

	history, ok, err := c.store.GetIterationHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		history, ok, err = stats.ReadIterationDiagnostics(c.runsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("iteration history not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return history, nil
}

// Show rebuilds the best conformation of a run and draws it.
func (c *Client) Show(ctx context.Context, req ShowRequest) (ShowResult, error) {
	if req.RunID != "" && req.Latest {
		return ShowResult{}, errors.New("use either run id or latest")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "show")
	if err != nil {
		return ShowResult{}, err
	}
	if err := c.ensureInit(ctx); err != nil {
		return ShowResult{}, err
	}

	var best stats.BestConformation
	var runCfg stats.RunConfig
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return ShowResult{}, err
	}
	if ok {
		best = stats.BestConformation{
			Sequence:     run.Sequence,
			Conformation: run.Conformation,
			Fitness:      run.BestFitness,
			Iteration:    run.BestIteration,
			Reference:    run.Reference,
		}
		runCfg = stats.RunConfig{RunID: run.ID, SweepID: run.SweepID, BenchmarkIndex: run.BenchmarkIndex, Colony: run.Config}
	} else {
		best, ok, err = stats.ReadBestConformation(c.runsDir, runID)
		if err != nil {
			return ShowResult{}, err
		}
		if !ok {
			return ShowResult{}, fmt.Errorf("run not found: %s", runID)
		}
		runCfg, ok, err = stats.ReadRunConfig(c.runsDir, runID)
		if err != nil {
			return ShowResult{}, err
		}
		if !ok {
			return ShowResult{}, fmt.Errorf("run config not found for run id: %s", runID)
		}
	}

	seq, err := protein.Parse(best.Sequence)
	if err != nil {
		return ShowResult{}, fmt.Errorf("run %s: %w", runID, err)
	}
	conf, err := conformation.Parse(seq, best.Conformation)
	if err != nil {
		return ShowResult{}, fmt.Errorf("run %s: %w", runID, err)
	}
	improvements, _, err := stats.ReadImprovements(c.runsDir, runID)
	if err != nil {
		return ShowResult{}, err
	}

	return ShowResult{
		RunID:          runID,
		Sequence:       best.Sequence,
		BenchmarkIndex: runCfg.BenchmarkIndex,
		Config:         runCfg.Colony,
		Conformation:   best.Conformation,
		Fitness:        conf.Evaluate(),
		Reference:      best.Reference,
		Improvements:   improvements,
		Drawing:        render.ASCII(conf),
	}, nil
}

// Convergence rebuilds the convergence curves of a finished sweep from the
// artifacts of its runs and rewrites them into the sweep directory.
func (c *Client) Convergence(_ context.Context, req ConvergenceRequest) (ConvergenceSummary, error) {
	if req.SweepID == "" {
		return ConvergenceSummary{}, errors.New("convergence requires sweep id")
	}
	exp, ok, err := stats.ReadSweepExperiment(c.runsDir, req.SweepID)
	if err != nil {
		return ConvergenceSummary{}, err
	}
	if !ok {
		return ConvergenceSummary{}, fmt.Errorf("sweep not found: %s", req.SweepID)
	}

	lines := make([]stats.ResultLine, 0, len(exp.RunIDs))
	series := make([][]float64, 0, len(exp.RunIDs))
	for _, runID := range exp.RunIDs {
		runCfg, ok, err := stats.ReadRunConfig(c.runsDir, runID)
		if err != nil {
			return ConvergenceSummary{}, err
		}
		if !ok {
			return ConvergenceSummary{}, fmt.Errorf("run config not found for run id: %s", runID)
		}
		values, ok, err := stats.ReadBenchmarkSeries(c.runsDir, runID)
		if err != nil {
			return ConvergenceSummary{}, err
		}
		if !ok {
			return ConvergenceSummary{}, fmt.Errorf("benchmark series not found for run id: %s", runID)
		}
		lines = append(lines, stats.ResultLine{
			BenchmarkIndex:      runCfg.BenchmarkIndex,
			AntCount:            runCfg.Colony.AntCount,
			NoImprMax:           runCfg.Colony.NoImprMax,
			Evaporation:         runCfg.Colony.Evaporation,
			Alpha:               runCfg.Colony.Alpha,
			Beta:                runCfg.Colony.Beta,
			NeutralMutationRate: runCfg.Colony.NeutralMutationRate,
			Reference:           runCfg.Reference,
		})
		series = append(series, values)
	}

	curves, err := stats.GroupConvergence(lines, series)
	if err != nil {
		return ConvergenceSummary{}, err
	}
	dir := stats.SweepDir(c.runsDir, req.SweepID)
	files, err := stats.WriteConvergenceCurves(dir, curves)
	if err != nil {
		return ConvergenceSummary{}, err
	}
	return ConvergenceSummary{
		SweepID:   req.SweepID,
		Directory: filepath.Clean(dir),
		Curves:    curves,
		Files:     files,
	}, nil
}

func (c *Client) resolveRunID(runID string, latest bool, action string) (string, error) {
	if !latest {
		if runID == "" {
			return "", fmt.Errorf("%s requires run id or latest", action)
		}
		return runID, nil
	}
	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}
