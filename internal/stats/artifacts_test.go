package stats

import (
	"os"
	"path/filepath"
	"testing"

	"hpfold/internal/colony"
	"hpfold/internal/model"
)

func TestWriteAndExportRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")

	runID := "run-123"
	artifacts := RunArtifacts{
		Config: RunConfig{
			RunID:          runID,
			Sequence:       "HHPHH",
			BenchmarkIndex: -1,
			Colony:         colony.DefaultConfig(),
		},
		BestByIteration: []float64{0, 1, 1},
		IterationDiagnostics: []model.IterationDiagnostics{
			{Iteration: 0, BestFitness: 0},
			{Iteration: 1, BestFitness: 1, Improved: true},
			{Iteration: 2, BestFitness: 1},
		},
		Improvements:     []model.Improvement{{Iteration: 0, Conformation: "SSS"}, {Iteration: 1, Fitness: 1, Conformation: "LLS"}},
		FinalBestFitness: 1,
		Best:             BestConformation{Sequence: "HHPHH", Conformation: "LLS", Fitness: 1, Iteration: 1},
	}

	runDir, err := WriteRunArtifacts(baseDir, artifacts)
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	for _, file := range runArtifactFiles {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("expected file %s: %v", file, err)
		}
	}

	exportedDir, err := ExportRunArtifacts(baseDir, runID, outDir)
	if err != nil {
		t.Fatalf("export artifacts: %v", err)
	}
	for _, file := range runArtifactFiles {
		if _, err := os.Stat(filepath.Join(exportedDir, file)); err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
	}
	if _, err := os.Stat(filepath.Join(exportedDir, benchmarkSeriesFile)); !os.IsNotExist(err) {
		t.Fatalf("series was never written, export should skip it: %v", err)
	}

	if err := WriteBenchmarkSeries(runDir, artifacts.BestByIteration); err != nil {
		t.Fatalf("write benchmark series: %v", err)
	}
	exportedDir, err = ExportRunArtifacts(baseDir, runID, outDir)
	if err != nil {
		t.Fatalf("export artifacts with series: %v", err)
	}
	series, ok, err := ReadBenchmarkSeries(outDir, runID)
	if err != nil || !ok {
		t.Fatalf("read exported series: ok=%t err=%v", ok, err)
	}
	if len(series) != 3 || series[1] != 1 {
		t.Fatalf("unexpected series: %v", series)
	}
	if filepath.Base(exportedDir) != runID {
		t.Fatalf("unexpected export dir: %s", exportedDir)
	}
}

func TestReadRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	runID := "run-read"

	if _, ok, err := ReadBestConformation(baseDir, runID); err != nil || ok {
		t.Fatalf("expected missing best; ok=%t err=%v", ok, err)
	}

	cfg := colony.DefaultConfig()
	cfg.Seed = 9
	if _, err := WriteRunArtifacts(baseDir, RunArtifacts{
		Config:               RunConfig{RunID: runID, Sequence: "HPPH", Colony: cfg},
		IterationDiagnostics: []model.IterationDiagnostics{{Iteration: 0, BestFitness: 1, Rewinds: 3}},
		Improvements:         []model.Improvement{{Iteration: 0, Fitness: 1, Conformation: "LL"}},
		Best:                 BestConformation{Sequence: "HPPH", Conformation: "LL", Fitness: 1},
	}); err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	runCfg, ok, err := ReadRunConfig(baseDir, runID)
	if err != nil || !ok {
		t.Fatalf("read config: ok=%t err=%v", ok, err)
	}
	if runCfg.Colony.Seed != 9 || runCfg.Sequence != "HPPH" {
		t.Fatalf("unexpected config: %+v", runCfg)
	}

	best, ok, err := ReadBestConformation(baseDir, runID)
	if err != nil || !ok {
		t.Fatalf("read best: ok=%t err=%v", ok, err)
	}
	if best.Conformation != "LL" {
		t.Fatalf("unexpected best: %+v", best)
	}

	diagnostics, ok, err := ReadIterationDiagnostics(baseDir, runID)
	if err != nil || !ok || len(diagnostics) != 1 || diagnostics[0].Rewinds != 3 {
		t.Fatalf("unexpected diagnostics: %+v ok=%t err=%v", diagnostics, ok, err)
	}

	improvements, ok, err := ReadImprovements(baseDir, runID)
	if err != nil || !ok || len(improvements) != 1 {
		t.Fatalf("unexpected improvements: %+v ok=%t err=%v", improvements, ok, err)
	}
}

func TestWriteRunConfigRejectsMismatchedID(t *testing.T) {
	baseDir := t.TempDir()
	if err := WriteRunConfig(baseDir, "run-1", RunConfig{RunID: "run-2"}); err == nil {
		t.Fatal("expected run id mismatch error")
	}
	if err := WriteRunConfig(baseDir, "run-1", RunConfig{Sequence: "HPH"}); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, ok, err := ReadRunConfig(baseDir, "run-1")
	if err != nil || !ok || cfg.RunID != "run-1" {
		t.Fatalf("unexpected config: %+v ok=%t err=%v", cfg, ok, err)
	}
}

func TestRunIndexAppendListAndUpsert(t *testing.T) {
	baseDir := t.TempDir()

	err := AppendRunIndex(baseDir, RunIndexEntry{
		RunID:            "run-1",
		Sequence:         "HPHPPHHPHPPHPHHPPHPH",
		AntCount:         20,
		MaxIter:          60,
		Seed:             1,
		Workers:          2,
		FinalBestFitness: 8,
		Reference:        9,
		CreatedAtUTC:     "2026-02-10T10:00:00Z",
	})
	if err != nil {
		t.Fatalf("append run-1: %v", err)
	}

	err = AppendRunIndex(baseDir, RunIndexEntry{
		RunID:            "run-2",
		Sequence:         "HPHPPHHPHPPHPHHPPHPH",
		AntCount:         20,
		MaxIter:          60,
		Seed:             2,
		Workers:          2,
		FinalBestFitness: 9,
		Reference:        9,
		CreatedAtUTC:     "2026-02-10T11:00:00Z",
	})
	if err != nil {
		t.Fatalf("append run-2: %v", err)
	}

	entries, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].RunID != "run-2" || entries[1].RunID != "run-1" {
		t.Fatalf("unexpected order: %+v", entries)
	}

	err = AppendRunIndex(baseDir, RunIndexEntry{
		RunID:            "run-1",
		Sequence:         "HPHPPHHPHPPHPHHPPHPH",
		FinalBestFitness: 9,
		CreatedAtUTC:     "2026-02-10T12:00:00Z",
	})
	if err != nil {
		t.Fatalf("upsert run-1: %v", err)
	}

	entries, err = ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list after upsert: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries after upsert, got %d", len(entries))
	}
	if entries[0].RunID != "run-1" || entries[0].FinalBestFitness != 9 {
		t.Fatalf("unexpected upsert result: %+v", entries[0])
	}
}

func TestRunIndexEqualTimestampPrefersLaterAppend(t *testing.T) {
	baseDir := t.TempDir()
	ts := "2026-02-10T12:00:00Z"

	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "run-a", CreatedAtUTC: ts}); err != nil {
		t.Fatalf("append run-a: %v", err)
	}
	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "run-b", CreatedAtUTC: ts}); err != nil {
		t.Fatalf("append run-b: %v", err)
	}

	entries, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].RunID != "run-b" {
		t.Fatalf("expected latest appended run-b first, got %+v", entries)
	}
}

func TestRunIndexRequiresRunID(t *testing.T) {
	if err := AppendRunIndex(t.TempDir(), RunIndexEntry{}); err == nil {
		t.Fatal("expected run id error")
	}
}
