package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hpfold/internal/colony"
	"hpfold/internal/report"
	"hpfold/internal/storage"
	"hpfold/internal/sweep"
	"hpfold/pkg/hpfold"
)

const (
	runsDir       = "runs"
	exportsDir    = "exports"
	benchmarkFile = "benchmarks.txt"
	resultsFile   = "benchmark_results.txt"
)

var stdout io.Writer = os.Stdout

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "sweep":
		return runSweep(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "history":
		return runHistory(ctx, args[1:])
	case "show":
		return runShow(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "benchmarks":
		return runBenchmarks(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

type clientFlags struct {
	storeKind     *string
	dbPath        *string
	benchmarkFile *string
	resultsFile   *string
	logLevel      *string
}

func registerClientFlags(fs *flag.FlagSet) clientFlags {
	return clientFlags{
		storeKind:     fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite"),
		dbPath:        fs.String("db-path", "hpfold.db", "sqlite database path"),
		benchmarkFile: fs.String("benchmarks", benchmarkFile, "benchmark file with reference:SEQUENCE lines"),
		resultsFile:   fs.String("results", resultsFile, "append-only results log"),
		logLevel:      fs.String("log-level", "warn", "log level: debug|info|warn|error"),
	}
}

func (f clientFlags) newClient(metrics *report.Metrics) (*hpfold.Client, error) {
	logger, err := newLogger(*f.logLevel)
	if err != nil {
		return nil, err
	}
	return hpfold.New(hpfold.Options{
		StoreKind:     *f.storeKind,
		DBPath:        *f.dbPath,
		RunsDir:       runsDir,
		ExportsDir:    exportsDir,
		BenchmarkFile: *f.benchmarkFile,
		ResultsFile:   *f.resultsFile,
		Logger:        logger,
		Metrics:       metrics,
	})
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}

// startMetrics serves a private registry on addr. An empty addr disables
// metrics and returns a nil Metrics.
func startMetrics(addr string) (*report.Metrics, func(), error) {
	if addr == "" {
		return nil, func() {}, nil
	}
	reg := prometheus.NewRegistry()
	metrics := report.NewMetrics(reg)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = srv.Serve(ln)
	}()
	fmt.Fprintf(stdout, "metrics listening on http://%s/metrics\n", ln.Addr())

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
	return metrics, stop, nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	common := registerClientFlags(fs)
	def := colony.DefaultConfig()
	configPath := fs.String("config", "", "optional run config JSON path")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	sequence := fs.String("sequence", "", "HP sequence to fold (overrides -benchmark)")
	benchmark := fs.Int("benchmark", 0, "0-based benchmark index when no sequence is given")
	reference := fs.Int("reference", 0, "best known fitness for an explicit sequence (0 = unknown)")
	ants := fs.Int("ants", def.AntCount, "ants per iteration")
	maxIter := fs.Int("max-iter", def.MaxIter, "iteration count")
	noImprMax := fs.Int("no-impr-max", def.NoImprMax, "local search rounds without improvement before stopping")
	evaporation := fs.Float64("evaporation", def.Evaporation, "pheromone persistence factor in [0,1]")
	alpha := fs.Float64("alpha", def.Alpha, "pheromone exponent")
	beta := fs.Float64("beta", def.Beta, "heuristic exponent")
	neutralRate := fs.Float64("neutral-rate", def.NeutralMutationRate, "probability of accepting a neutral mutation")
	deposit := fs.String("deposit", string(def.Deposit), "pheromone deposit rule: normalized|raw")
	workers := fs.Int("workers", 0, "ant worker count (0 = GOMAXPROCS)")
	seed := fs.Int64("seed", def.Seed, "rng seed")
	appendResult := fs.Bool("append-result", false, "append a line to the results log")
	reportMode := fs.String("report", string(report.ModeIteration), "console progress: iteration|ant|none")
	metricsAddr := fs.String("metrics-addr", "", "serve prometheus metrics on this address while running")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	mode, err := report.ParseMode(*reportMode)
	if err != nil {
		return err
	}

	req, err := loadOrDefaultRunRequest(*configPath)
	if err != nil {
		return err
	}
	if *configPath == "" {
		req = hpfold.RunRequest{
			RunID:          *runID,
			Sequence:       *sequence,
			BenchmarkIndex: *benchmark,
			Reference:      *reference,
			AppendResult:   *appendResult,
			Config: colony.Config{
				AntCount:            *ants,
				MaxIter:             *maxIter,
				NoImprMax:           *noImprMax,
				Evaporation:         *evaporation,
				Alpha:               *alpha,
				Beta:                *beta,
				NeutralMutationRate: *neutralRate,
				Deposit:             colony.DepositRule(*deposit),
				Workers:             *workers,
				Seed:                *seed,
			},
		}
	} else {
		err := overrideFromFlags(&req, setFlags, map[string]any{
			"run-id":        *runID,
			"sequence":      *sequence,
			"benchmark":     *benchmark,
			"reference":     *reference,
			"ants":          *ants,
			"max-iter":      *maxIter,
			"no-impr-max":   *noImprMax,
			"evaporation":   *evaporation,
			"alpha":         *alpha,
			"beta":          *beta,
			"neutral-rate":  *neutralRate,
			"deposit":       *deposit,
			"workers":       *workers,
			"seed":          *seed,
			"append-result": *appendResult,
		})
		if err != nil {
			return err
		}
	}

	metrics, stopMetrics, err := startMetrics(*metricsAddr)
	if err != nil {
		return err
	}
	defer stopMetrics()

	client, err := common.newClient(metrics)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	console := report.NewConsole(stdout, mode)
	req.Observer = console
	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}

	console.Summary(summary.Best, summary.BestFitness, summary.Reference)
	fmt.Fprintf(stdout, "run_id=%s sequence=%s best_fitness=%s best_iteration=%d evaluations=%s duration=%s artifacts=%s\n",
		summary.RunID,
		summary.Sequence,
		humanize.FtoaWithDigits(summary.BestFitness, 2),
		summary.BestIteration,
		humanize.Comma(int64(summary.Evaluations)),
		summary.Duration.Round(time.Millisecond),
		summary.ArtifactsDir,
	)
	return nil
}

func runSweep(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	common := registerClientFlags(fs)
	gridPath := fs.String("grid", "", "YAML parameter grid (default: built-in study grid)")
	parallel := fs.Int("parallel", 0, "concurrent runs (overrides the grid)")
	repeats := fs.Int("repeats", 0, "runs per cell and benchmark (overrides the grid)")
	maxIter := fs.Int("max-iter", 0, "iterations per run (overrides the grid)")
	metricsAddr := fs.String("metrics-addr", "", "serve prometheus metrics on this address while running")
	fromRuns := fs.String("from-runs", "", "rebuild convergence curves of this sweep id from its run artifacts instead of running")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *fromRuns != "" {
		return rebuildConvergence(ctx, common, *fromRuns)
	}

	grid := sweep.DefaultGrid()
	if *gridPath != "" {
		loaded, err := sweep.LoadGrid(*gridPath)
		if err != nil {
			return err
		}
		grid = loaded
	}
	if *parallel > 0 {
		grid.Parallel = *parallel
	}
	if *repeats > 0 {
		grid.Repeats = *repeats
	}
	if *maxIter > 0 {
		grid.MaxIter = *maxIter
	}

	metrics, stopMetrics, err := startMetrics(*metricsAddr)
	if err != nil {
		return err
	}
	defer stopMetrics()

	client, err := common.newClient(metrics)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	fmt.Fprintf(stdout, "sweep grid=%s cells=%d repeats=%d parallel=%d\n", grid.Name, grid.Size(), grid.Repeats, grid.Parallel)
	done := 0
	summary, err := client.Sweep(ctx, hpfold.SweepRequest{
		Grid: grid,
		Observer: func(outcome sweep.Outcome) {
			done++
			fmt.Fprintf(stdout, "run %s benchmark=%d cell=%d repeat=%d %s\n",
				humanize.Comma(int64(done)),
				outcome.Job.Benchmark.Index,
				outcome.Job.Cell,
				outcome.Job.Repeat,
				outcome.Result.String(),
			)
		},
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "sweep_id=%s runs=%s results=%s summary=%s convergence_files=%d\n",
		summary.SweepID,
		humanize.Comma(int64(summary.Runs)),
		summary.ResultsPath,
		summary.Directory,
		len(summary.Files),
	)
	for _, cell := range summary.Summaries {
		fmt.Fprintf(stdout, "benchmark=%d ants=%d no_impr=%d evap=%s alpha=%s beta=%s neutral=%s hits=%d/%d best=%s mean=%.3f std=%.3f ref=%d\n",
			cell.BenchmarkIndex,
			cell.AntCount,
			cell.NoImprMax,
			humanize.Ftoa(cell.Evaporation),
			humanize.Ftoa(cell.Alpha),
			humanize.Ftoa(cell.Beta),
			humanize.Ftoa(cell.NeutralMutationRate),
			cell.Hits,
			cell.Runs,
			humanize.Ftoa(cell.BestFound),
			cell.MeanFound,
			cell.StdFound,
			cell.Reference,
		)
	}
	return nil
}

func rebuildConvergence(ctx context.Context, common clientFlags, sweepID string) error {
	client, err := common.newClient(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Convergence(ctx, hpfold.ConvergenceRequest{SweepID: sweepID})
	if err != nil {
		return err
	}
	for _, curve := range summary.Curves {
		final := 0.0
		if n := len(curve.Points); n > 0 {
			final = curve.Points[n-1].Mean
		}
		fmt.Fprintf(stdout, "benchmark=%d ants=%d no_impr=%d evap=%s alpha=%s beta=%s neutral=%s runs=%d iterations=%d final_mean=%.3f\n",
			curve.BenchmarkIndex,
			curve.AntCount,
			curve.NoImprMax,
			humanize.Ftoa(curve.Evaporation),
			humanize.Ftoa(curve.Alpha),
			humanize.Ftoa(curve.Beta),
			humanize.Ftoa(curve.NeutralMutationRate),
			curve.Runs,
			len(curve.Points),
			final,
		)
	}
	fmt.Fprintf(stdout, "sweep_id=%s convergence_files=%d dir=%s\n", summary.SweepID, len(summary.Files), summary.Directory)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	common := registerClientFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	sweepID := fs.String("sweep-id", "", "only list runs of this sweep")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := common.newClient(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	items, err := client.Runs(ctx, hpfold.RunsRequest{Limit: *limit, SweepID: *sweepID})
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(stdout, "no runs found")
		return nil
	}
	for _, item := range items {
		age := item.CreatedAtUTC
		if created, err := time.Parse(time.RFC3339Nano, item.CreatedAtUTC); err == nil {
			age = humanize.Time(created)
		}
		fmt.Fprintf(stdout, "run_id=%s created=%q sequence=%s ants=%d iterations=%d seed=%d fitness=%s/%d conformation=%s\n",
			item.RunID,
			age,
			item.Sequence,
			item.AntCount,
			item.MaxIter,
			item.Seed,
			humanize.Ftoa(item.FinalBestFitness),
			item.Reference,
			item.Conformation,
		)
	}
	return nil
}

func runHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	common := registerClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	limit := fs.Int("limit", 0, "max iterations to print (0 = all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("history requires --run-id or --latest")
	}

	client, err := common.newClient(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.History(ctx, hpfold.HistoryRequest{RunID: *runID, Latest: *latest, Limit: *limit})
	if err != nil {
		return err
	}
	for _, it := range history {
		fmt.Fprintf(stdout, "iteration=%d best=%s iteration_best=%s mean=%.3f min=%s rewinds=%s improved=%t\n",
			it.Iteration,
			humanize.Ftoa(it.BestFitness),
			humanize.Ftoa(it.IterationBest),
			it.MeanFitness,
			humanize.Ftoa(it.MinFitness),
			humanize.Comma(int64(it.Rewinds)),
			it.Improved,
		)
	}
	return nil
}

func runShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	common := registerClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show the most recent run")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("show requires --run-id or --latest")
	}

	client, err := common.newClient(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	shown, err := client.Show(ctx, hpfold.ShowRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "run_id=%s sequence=%s conformation=%s fitness=%s/%d\n",
		shown.RunID, shown.Sequence, shown.Conformation, humanize.Ftoa(shown.Fitness), shown.Reference)
	fmt.Fprintf(stdout, "benchmark=%d ants=%d max_iter=%d no_impr=%d evap=%s alpha=%s beta=%s neutral=%s seed=%d\n",
		shown.BenchmarkIndex,
		shown.Config.AntCount,
		shown.Config.MaxIter,
		shown.Config.NoImprMax,
		humanize.Ftoa(shown.Config.Evaporation),
		humanize.Ftoa(shown.Config.Alpha),
		humanize.Ftoa(shown.Config.Beta),
		humanize.Ftoa(shown.Config.NeutralMutationRate),
		shown.Config.Seed,
	)
	fmt.Fprint(stdout, shown.Drawing)
	if len(shown.Improvements) > 0 {
		steps := make([]string, 0, len(shown.Improvements))
		for _, imp := range shown.Improvements {
			steps = append(steps, fmt.Sprintf("%d:%s", imp.Iteration, humanize.Ftoa(imp.Fitness)))
		}
		fmt.Fprintf(stdout, "improvements=%s\n", strings.Join(steps, ","))
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	common := registerClientFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", exportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("export requires --run-id or --latest")
	}

	client, err := common.newClient(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, hpfold.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
	return nil
}

func runBenchmarks(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("benchmarks", flag.ContinueOnError)
	common := registerClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := common.newClient(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	benchmarks, err := client.Benchmarks(ctx)
	if err != nil {
		return err
	}
	for _, b := range benchmarks {
		fmt.Fprintf(stdout, "index=%d reference=%d length=%d hydrophobic=%d sequence=%s\n",
			b.Index, b.Reference, b.Sequence.Len(), b.Sequence.HydrophobicCount(), b.Sequence.String())
	}
	return nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: hpfoldctl <run|sweep|runs|history|show|export|benchmarks> [flags]", msg)
}
