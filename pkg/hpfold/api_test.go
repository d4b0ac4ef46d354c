package hpfold

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"hpfold/internal/colony"
	"hpfold/internal/report"
	"hpfold/internal/stats"
	"hpfold/internal/sweep"
)

const testBenchmarks = `# reference:sequence
1:HHPHH
2:HPPHPPHH
`

func smallConfig() colony.Config {
	return colony.Config{
		AntCount:            4,
		MaxIter:             3,
		NoImprMax:           2,
		Evaporation:         0.5,
		Alpha:               1,
		Beta:                1,
		NeutralMutationRate: 0.5,
		Deposit:             colony.DepositNormalized,
		Workers:             2,
		Seed:                7,
	}
}

func newTestClient(t *testing.T, base string) *Client {
	t.Helper()
	benchmarkFile := filepath.Join(base, "benchmarks.txt")
	if _, err := os.Stat(benchmarkFile); os.IsNotExist(err) {
		if err := os.WriteFile(benchmarkFile, []byte(testBenchmarks), 0o644); err != nil {
			t.Fatalf("write benchmarks: %v", err)
		}
	}
	client, err := New(Options{
		StoreKind:     "memory",
		RunsDir:       filepath.Join(base, "runs"),
		ExportsDir:    filepath.Join(base, "exports"),
		BenchmarkFile: benchmarkFile,
		ResultsFile:   filepath.Join(base, "benchmark_results.txt"),
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func TestClientRunRunsAndExport(t *testing.T) {
	base := t.TempDir()
	client := newTestClient(t, base)
	ctx := context.Background()

	summary, err := client.Run(ctx, RunRequest{Sequence: "HHPHH", Config: smallConfig()})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID == "" {
		t.Fatal("expected run id")
	}
	if len(summary.BestByIteration) != 3 {
		t.Fatalf("unexpected iteration history length: %d", len(summary.BestByIteration))
	}
	if summary.Best == nil || !summary.Best.IsFullyGrown() {
		t.Fatalf("expected fully grown best conformation, got %+v", summary.Best)
	}
	if summary.BenchmarkIndex != -1 {
		t.Fatalf("expected explicit sequence to carry benchmark index -1, got %d", summary.BenchmarkIndex)
	}
	if summary.Evaluations != 12 {
		t.Fatalf("expected 12 evaluations, got %d", summary.Evaluations)
	}

	runs, err := client.Runs(ctx, RunsRequest{Limit: 5})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != summary.RunID {
		t.Fatalf("expected latest run %s in runs list: %+v", summary.RunID, runs)
	}
	if runs[0].Conformation != summary.Best.String() {
		t.Fatalf("run index conformation mismatch: %s vs %s", runs[0].Conformation, summary.Best.String())
	}

	history, err := client.History(ctx, HistoryRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 iterations of history, got %d", len(history))
	}
	limited, err := client.History(ctx, HistoryRequest{Latest: true, Limit: 1})
	if err != nil {
		t.Fatalf("history latest: %v", err)
	}
	if len(limited) != 1 || limited[0].Iteration != 0 {
		t.Fatalf("unexpected limited history: %+v", limited)
	}

	exported, err := client.Export(ctx, ExportRequest{Latest: true})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exported.RunID != summary.RunID {
		t.Fatalf("expected export of %s, got %s", summary.RunID, exported.RunID)
	}
	for _, name := range []string{"config.json", "best.json", "iteration_diagnostics.json", "benchmark_series.csv"} {
		if _, err := os.Stat(filepath.Join(exported.Directory, name)); err != nil {
			t.Fatalf("expected exported %s: %v", name, err)
		}
	}
}

func TestClientShowDrawsBestConformation(t *testing.T) {
	client := newTestClient(t, t.TempDir())
	ctx := context.Background()

	summary, err := client.Run(ctx, RunRequest{Sequence: "hhphh", Reference: 1, Config: smallConfig()})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	shown, err := client.Show(ctx, ShowRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if shown.Sequence != "HHPHH" || shown.Reference != 1 {
		t.Fatalf("unexpected show result: %+v", shown)
	}
	if shown.Config != summary.Config || shown.BenchmarkIndex != -1 {
		t.Fatalf("show config does not match run: %+v vs %+v", shown.Config, summary.Config)
	}
	if shown.Conformation != summary.Best.String() || shown.Fitness != summary.BestFitness {
		t.Fatalf("show does not match run: %+v vs %s/%v", shown, summary.Best.String(), summary.BestFitness)
	}
	if strings.Count(shown.Drawing, "H") != 4 || strings.Count(shown.Drawing, "p") != 1 {
		t.Fatalf("unexpected drawing:\n%s", shown.Drawing)
	}
}

func TestClientFallsBackToArtifactsForForeignRuns(t *testing.T) {
	base := t.TempDir()
	ctx := context.Background()

	first := newTestClient(t, base)
	summary, err := first.Run(ctx, RunRequest{Sequence: "HPPHPPHH", Config: smallConfig()})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// A second client has an empty memory store but shares the runs directory.
	second := newTestClient(t, base)
	history, err := second.History(ctx, HistoryRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 iterations of history, got %d", len(history))
	}
	shown, err := second.Show(ctx, ShowRequest{Latest: true})
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if shown.RunID != summary.RunID || shown.Conformation != summary.Best.String() {
		t.Fatalf("unexpected show result: %+v", shown)
	}
	if shown.Config != summary.Config || shown.BenchmarkIndex != -1 {
		t.Fatalf("expected config from run artifacts, got %+v (want %+v)", shown.Config, summary.Config)
	}
}

func TestClientRunBenchmarkAppendsResult(t *testing.T) {
	base := t.TempDir()
	client := newTestClient(t, base)
	ctx := context.Background()

	summary, err := client.Run(ctx, RunRequest{BenchmarkIndex: 1, Config: smallConfig(), AppendResult: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Sequence != "HPPHPPHH" || summary.Reference != 2 || summary.BenchmarkIndex != 1 {
		t.Fatalf("unexpected benchmark summary: %+v", summary)
	}

	lines, err := stats.ReadResults(filepath.Join(base, "benchmark_results.txt"))
	if err != nil {
		t.Fatalf("read results: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected one result line, got %d", len(lines))
	}
	got := lines[0]
	if got.BenchmarkIndex != 1 || got.Reference != 2 || got.AntCount != 4 || got.Conformation != summary.Best.String() || got.Found != summary.BestFitness {
		t.Fatalf("unexpected result line: %+v", got)
	}
}

func TestClientRunFillsConfigDefaults(t *testing.T) {
	client := newTestClient(t, t.TempDir())

	summary, err := client.Run(context.Background(), RunRequest{
		Sequence: "HPHPH",
		Config:   colony.Config{MaxIter: 2, Evaporation: 0.5, Seed: 3},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	def := colony.DefaultConfig()
	if summary.Config.AntCount != def.AntCount || summary.Config.Deposit != def.Deposit {
		t.Fatalf("expected defaults for ant count and deposit, got %+v", summary.Config)
	}
	if summary.Config.MaxIter != 2 || summary.Config.Alpha != 0 {
		t.Fatalf("explicit values must be kept, got %+v", summary.Config)
	}
}

func TestClientRunRejectsInput(t *testing.T) {
	client := newTestClient(t, t.TempDir())
	ctx := context.Background()

	cases := []struct {
		name string
		req  RunRequest
	}{
		{name: "bad residue", req: RunRequest{Sequence: "HXH"}},
		{name: "too short", req: RunRequest{Sequence: "HP"}},
		{name: "missing benchmark", req: RunRequest{BenchmarkIndex: 9}},
		{name: "bad evaporation", req: RunRequest{Sequence: "HPH", Config: colony.Config{Evaporation: 2}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := client.Run(ctx, tc.req); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	runs, err := client.Runs(ctx, RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("failed runs must not be indexed: %+v", runs)
	}
}

func TestClientRunRecordsMetrics(t *testing.T) {
	base := t.TempDir()
	reg := prometheus.NewRegistry()
	metrics := report.NewMetrics(reg)
	client, err := New(Options{
		StoreKind:   "memory",
		RunsDir:     filepath.Join(base, "runs"),
		ResultsFile: filepath.Join(base, "results.txt"),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:     metrics,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})

	if _, err := client.Run(context.Background(), RunRequest{Sequence: "HHPHH", Config: smallConfig()}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := testutil.ToFloat64(metrics.AntsTotal); got != 12 {
		t.Fatalf("expected 12 ants observed, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("ok")); got != 1 {
		t.Fatalf("expected one ok run, got %v", got)
	}
}

func TestClientSweep(t *testing.T) {
	base := t.TempDir()
	client := newTestClient(t, base)
	ctx := context.Background()

	grid := sweep.Grid{
		Name:                "tiny",
		MaxIter:             2,
		Repeats:             2,
		Parallel:            3,
		Seed:                5,
		Workers:             1,
		Benchmarks:          []int{0},
		AntCount:            []int{2, 3},
		NoImprMax:           []int{1},
		Evaporation:         []float64{0.5},
		Alpha:               []float64{1},
		Beta:                []float64{1},
		NeutralMutationRate: []float64{0.5},
	}

	var observed int
	summary, err := client.Sweep(ctx, SweepRequest{
		Grid: grid,
		Observer: func(sweep.Outcome) {
			observed++
		},
	})
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if summary.SweepID == "" || summary.Runs != 4 || observed != 4 {
		t.Fatalf("unexpected sweep summary: %+v (observed %d)", summary, observed)
	}
	if len(summary.Summaries) != 2 {
		t.Fatalf("expected one summary per cell, got %d", len(summary.Summaries))
	}
	for _, cell := range summary.Summaries {
		if cell.Runs != 2 || cell.Reference != 1 {
			t.Fatalf("unexpected cell summary: %+v", cell)
		}
	}
	if len(summary.Convergence) != 2 || len(summary.Files) != 2 {
		t.Fatalf("expected one convergence curve per cell: %+v", summary.Convergence)
	}
	for _, curve := range summary.Convergence {
		if curve.Runs != 2 || len(curve.Points) != 2 {
			t.Fatalf("unexpected convergence curve: %+v", curve)
		}
	}
	for _, path := range summary.Files {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected convergence file %s: %v", path, err)
		}
	}

	lines, err := stats.ReadResults(summary.ResultsPath)
	if err != nil {
		t.Fatalf("read results: %v", err)
	}
	if len(lines) != 4 {
		t.Fatalf("expected 4 result lines, got %d", len(lines))
	}

	runs, err := client.Runs(ctx, RunsRequest{SweepID: summary.SweepID, Limit: 10})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 4 {
		t.Fatalf("expected 4 indexed sweep runs, got %d", len(runs))
	}

	exp, ok, err := stats.ReadSweepExperiment(filepath.Join(base, "runs"), summary.SweepID)
	if err != nil || !ok {
		t.Fatalf("read sweep experiment: ok=%v err=%v", ok, err)
	}
	if exp.GridName != "tiny" || len(exp.RunIDs) != 4 {
		t.Fatalf("unexpected sweep experiment: %+v", exp)
	}
	record, ok, err := client.store.GetSweep(ctx, summary.SweepID)
	if err != nil || !ok {
		t.Fatalf("get sweep: ok=%v err=%v", ok, err)
	}
	if record.Cells != 2 || len(record.RunIDs) != 4 {
		t.Fatalf("unexpected sweep record: %+v", record)
	}
}

func TestClientConvergenceRebuildsFromArtifacts(t *testing.T) {
	base := t.TempDir()
	ctx := context.Background()

	first := newTestClient(t, base)
	grid := sweep.Grid{
		Name:                "rebuild",
		MaxIter:             3,
		Repeats:             2,
		Parallel:            2,
		Seed:                9,
		Workers:             1,
		Benchmarks:          []int{0, 1},
		AntCount:            []int{2},
		NoImprMax:           []int{1},
		Evaporation:         []float64{0.5},
		Alpha:               []float64{1},
		Beta:                []float64{1, 2},
		NeutralMutationRate: []float64{0.5},
	}
	swept, err := first.Sweep(ctx, SweepRequest{Grid: grid})
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	for _, path := range swept.Files {
		if err := os.Remove(path); err != nil {
			t.Fatalf("remove %s: %v", path, err)
		}
	}

	// A fresh client only sees the artifacts on disk.
	second := newTestClient(t, base)
	rebuilt, err := second.Convergence(ctx, ConvergenceRequest{SweepID: swept.SweepID})
	if err != nil {
		t.Fatalf("convergence: %v", err)
	}
	if !reflect.DeepEqual(rebuilt.Curves, swept.Convergence) {
		t.Fatalf("rebuilt curves differ:\n got %+v\nwant %+v", rebuilt.Curves, swept.Convergence)
	}
	if len(rebuilt.Files) != 4 {
		t.Fatalf("expected 4 convergence files, got %v", rebuilt.Files)
	}
	for _, path := range rebuilt.Files {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected rebuilt file %s: %v", path, err)
		}
	}

	if _, err := second.Convergence(ctx, ConvergenceRequest{SweepID: "missing"}); err == nil {
		t.Fatal("expected unknown sweep to fail")
	}
	if _, err := second.Convergence(ctx, ConvergenceRequest{}); err == nil {
		t.Fatal("expected empty sweep id to fail")
	}
}

func TestClientExportAndHistoryRequireTarget(t *testing.T) {
	client := newTestClient(t, t.TempDir())
	ctx := context.Background()

	if _, err := client.Export(ctx, ExportRequest{}); err == nil {
		t.Fatal("expected export without target to fail")
	}
	if _, err := client.Export(ctx, ExportRequest{RunID: "x", Latest: true}); err == nil {
		t.Fatal("expected export with both targets to fail")
	}
	if _, err := client.History(ctx, HistoryRequest{}); err == nil {
		t.Fatal("expected history without target to fail")
	}
	if _, err := client.Show(ctx, ShowRequest{Latest: true}); err == nil {
		t.Fatal("expected show with no runs to fail")
	}
	if _, err := client.History(ctx, HistoryRequest{RunID: "missing"}); err == nil {
		t.Fatal("expected history for unknown run to fail")
	}
}
