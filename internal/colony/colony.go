// Package colony runs the ant colony optimisation loop over HP lattice
// conformations.
package colony

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"

	"hpfold/internal/conformation"
	"hpfold/internal/protein"
)

type IterationStats struct {
	Iteration     int     `json:"iteration"`
	BestFitness   float64 `json:"best_fitness"`
	IterationBest float64 `json:"iteration_best"`
	MeanFitness   float64 `json:"mean_fitness"`
	MinFitness    float64 `json:"min_fitness"`
	Rewinds       int     `json:"rewinds"`
	Improved      bool    `json:"improved"`
}

type Result struct {
	Best            *conformation.Conformation
	BestFitness     float64
	BestIteration   int
	BestByIteration []float64
	Iterations      []IterationStats
	Evaluations     int
}

type antResult struct {
	conf    *conformation.Conformation
	fitness float64
	rewinds int
}

// Run folds seq for cfg.MaxIter iterations and returns the best conformation
// seen. Ties never replace the incumbent. The context is only consulted
// between iterations; an iteration that has started always completes.
func Run(ctx context.Context, seq protein.Sequence, cfg Config, observer Observer) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	if seq.Len() < protein.MinLength {
		return Result{}, fmt.Errorf("%w: got=%d want>=%d", protein.ErrSequenceTooShort, seq.Len(), protein.MinLength)
	}
	if observer == nil {
		observer = NopObserver{}
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > cfg.AntCount {
		workers = cfg.AntCount
	}

	pheromones := NewPheromones(seq, cfg)
	result := Result{
		Best:            conformation.New(seq),
		BestFitness:     math.Inf(-1),
		BestIteration:   -1,
		BestByIteration: make([]float64, 0, cfg.MaxIter),
		Iterations:      make([]IterationStats, 0, cfg.MaxIter),
	}

	for iter := 0; iter < cfg.MaxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		ants := runAnts(seq, cfg, pheromones, iter, workers)

		stats := IterationStats{Iteration: iter, MinFitness: math.Inf(1), IterationBest: math.Inf(-1)}
		conformations := make([]*conformation.Conformation, len(ants))
		total := 0.0
		for i, ant := range ants {
			conformations[i] = ant.conf
			total += ant.fitness
			stats.Rewinds += ant.rewinds
			stats.MinFitness = math.Min(stats.MinFitness, ant.fitness)
			stats.IterationBest = math.Max(stats.IterationBest, ant.fitness)
			if ant.fitness > result.BestFitness {
				result.BestFitness = ant.fitness
				result.Best = ant.conf.Clone()
				result.BestIteration = iter
				stats.Improved = true
			}
			observer.AntDone(cfg, iter, i, ant.conf, ant.fitness)
		}
		result.Evaluations += len(ants)

		pheromones.Update(conformations)

		stats.BestFitness = result.BestFitness
		stats.MeanFitness = total / float64(len(ants))
		result.BestByIteration = append(result.BestByIteration, result.BestFitness)
		result.Iterations = append(result.Iterations, stats)

		observer.IterationDone(cfg, iter, result.Best, result.BestFitness)
	}
	return result, nil
}

// runAnts builds one iteration's ants on a fixed worker pool. Workers only
// read the pheromone matrix; the returned slice is in ant order.
func runAnts(seq protein.Sequence, cfg Config, pheromones *Pheromones, iter, workers int) []antResult {
	jobs := make(chan int)
	results := make([]antResult, cfg.AntCount)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for ant := range jobs {
				rng := rand.New(rand.NewSource(antSeed(cfg, iter, ant)))
				results[ant] = buildAnt(seq, cfg, pheromones, rng)
			}
		}()
	}

	for ant := 0; ant < cfg.AntCount; ant++ {
		jobs <- ant
	}
	close(jobs)
	wg.Wait()

	return results
}

func antSeed(cfg Config, iter, ant int) int64 {
	return cfg.Seed + int64(iter)*int64(cfg.AntCount) + int64(ant) + 1
}

func buildAnt(seq protein.Sequence, cfg Config, pheromones *Pheromones, rng *rand.Rand) antResult {
	conf := conformation.New(seq)
	rewinds := 0
	for !conf.IsFullyGrown() {
		if !conf.Grow(pheromones, rng) {
			conf.Rewind()
			rewinds++
		}
	}

	LocalSearch(conf, cfg, rng)

	return antResult{conf: conf, fitness: conf.Evaluate(), rewinds: rewinds}
}

// LocalSearch repeats local-search passes until cfg.NoImprMax consecutive
// passes bring no improvement.
func LocalSearch(conf *conformation.Conformation, cfg Config, rng *rand.Rand) {
	noImpr := 0
	for noImpr < cfg.NoImprMax {
		if conf.LocalSearch(rng, cfg.NeutralMutationRate) {
			noImpr = 0
		} else {
			noImpr++
		}
	}
}
