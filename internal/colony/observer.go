package colony

import "hpfold/internal/conformation"

// Observer receives progress notifications from Run. Both callbacks are made
// from the goroutine that called Run, after the iteration barrier, so
// implementations need no locking of their own. Conformations must be treated
// as read-only.
type Observer interface {
	AntDone(cfg Config, iteration, ant int, conf *conformation.Conformation, fitness float64)
	IterationDone(cfg Config, iteration int, best *conformation.Conformation, bestFitness float64)
}

type NopObserver struct{}

func (NopObserver) AntDone(Config, int, int, *conformation.Conformation, float64) {}

func (NopObserver) IterationDone(Config, int, *conformation.Conformation, float64) {}

// Observers fans every notification out in order.
type Observers []Observer

func (o Observers) AntDone(cfg Config, iteration, ant int, conf *conformation.Conformation, fitness float64) {
	for _, item := range o {
		item.AntDone(cfg, iteration, ant, conf, fitness)
	}
}

func (o Observers) IterationDone(cfg Config, iteration int, best *conformation.Conformation, bestFitness float64) {
	for _, item := range o {
		item.IterationDone(cfg, iteration, best, bestFitness)
	}
}
