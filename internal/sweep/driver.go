package sweep

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"hpfold/internal/colony"
	"hpfold/internal/protein"
	"hpfold/internal/stats"
)

// seedStride keeps the per-ant seed ranges of different jobs apart.
const seedStride = 1 << 20

// Job is one run of one cell on one benchmark.
type Job struct {
	Index     int
	Cell      int
	Repeat    int
	Benchmark protein.Benchmark
	Config    colony.Config
}

// ResultLine builds the results-log line for this job's outcome.
func (j Job) ResultLine(conformation string, found float64) stats.ResultLine {
	return stats.ResultLine{
		BenchmarkIndex:      j.Benchmark.Index,
		AntCount:            j.Config.AntCount,
		NoImprMax:           j.Config.NoImprMax,
		Evaporation:         j.Config.Evaporation,
		Alpha:               j.Config.Alpha,
		Beta:                j.Config.Beta,
		NeutralMutationRate: j.Config.NeutralMutationRate,
		Conformation:        conformation,
		Found:               found,
		Reference:           j.Benchmark.Reference,
	}
}

type Outcome struct {
	Job             Job
	RunID           string
	Result          stats.ResultLine
	BestByIteration []float64
}

type RunFunc func(ctx context.Context, job Job) (Outcome, error)

// SelectBenchmarks keeps the grid's benchmark indices, or all of them when
// the grid names none.
func SelectBenchmarks(grid Grid, all []protein.Benchmark) ([]protein.Benchmark, error) {
	if len(grid.Benchmarks) == 0 {
		return all, nil
	}
	out := make([]protein.Benchmark, 0, len(grid.Benchmarks))
	for _, idx := range grid.Benchmarks {
		if idx >= len(all) {
			return nil, fmt.Errorf("benchmark index %d out of range (have %d)", idx, len(all))
		}
		out = append(out, all[idx])
	}
	return out, nil
}

// Jobs lays out cells, then benchmarks, then repeats. Every job gets its own
// seed so repeats differ while the whole sweep stays reproducible.
func Jobs(grid Grid, benchmarks []protein.Benchmark) []Job {
	cells := grid.Expand()
	jobs := make([]Job, 0, len(cells)*len(benchmarks)*grid.Repeats)
	for c, cfg := range cells {
		for _, bench := range benchmarks {
			for r := 0; r < grid.Repeats; r++ {
				jobCfg := cfg
				jobCfg.Seed = grid.Seed + int64(len(jobs))*seedStride
				jobs = append(jobs, Job{
					Index:     len(jobs),
					Cell:      c,
					Repeat:    r,
					Benchmark: bench,
					Config:    jobCfg,
				})
			}
		}
	}
	return jobs
}

// Execute runs jobs with at most parallel in flight. The first error cancels
// the jobs that have not started; outcomes come back in job order.
func Execute(ctx context.Context, jobs []Job, parallel int, run RunFunc) ([]Outcome, error) {
	if parallel <= 0 {
		parallel = 1
	}
	outcomes := make([]Outcome, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcome, err := run(gctx, job)
			if err != nil {
				return fmt.Errorf("job %d (cell %d, benchmark %d): %w", job.Index, job.Cell, job.Benchmark.Index, err)
			}
			outcomes[i] = outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}
