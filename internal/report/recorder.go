package report

import (
	"hpfold/internal/colony"
	"hpfold/internal/conformation"
	"hpfold/internal/model"
)

// Recorder keeps the trajectory of best-so-far conformations.
type Recorder struct {
	improvements []model.Improvement
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) AntDone(colony.Config, int, int, *conformation.Conformation, float64) {}

func (r *Recorder) IterationDone(_ colony.Config, iteration int, best *conformation.Conformation, bestFitness float64) {
	if n := len(r.improvements); n > 0 && r.improvements[n-1].Fitness >= bestFitness {
		return
	}
	r.improvements = append(r.improvements, model.Improvement{
		Iteration:    iteration,
		Fitness:      bestFitness,
		Conformation: best.String(),
	})
}

func (r *Recorder) Improvements() []model.Improvement {
	return append([]model.Improvement(nil), r.improvements...)
}
