package report

import (
	"log/slog"

	"hpfold/internal/colony"
	"hpfold/internal/conformation"
)

// SlogObserver logs iteration summaries at info and individual ants at debug.
type SlogObserver struct {
	logger *slog.Logger
}

func NewSlogObserver(logger *slog.Logger) *SlogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogObserver{logger: logger}
}

func (o *SlogObserver) AntDone(_ colony.Config, iteration, ant int, conf *conformation.Conformation, fitness float64) {
	o.logger.Debug("ant done",
		"iteration", iteration,
		"ant", ant,
		"fitness", fitness,
		"conformation", conf.String(),
	)
}

func (o *SlogObserver) IterationDone(cfg colony.Config, iteration int, best *conformation.Conformation, bestFitness float64) {
	o.logger.Info("iteration done",
		"iteration", iteration,
		"max_iter", cfg.MaxIter,
		"best_fitness", bestFitness,
		"best", best.String(),
	)
}
