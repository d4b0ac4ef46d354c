package report

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"hpfold/internal/colony"
	"hpfold/internal/conformation"
)

const metricsNamespace = "hpfold"

const colonySubsystem = "colony"

// Metrics exposes colony progress as prometheus collectors. It is an
// Observer; RunFinished is called by the owner once Run returns. One Metrics
// may observe several concurrent runs: counters and the histogram aggregate
// over all of them, while BestFitness holds the last value reported by any
// run and is not a per-run series.
type Metrics struct {
	AntsTotal       prometheus.Counter
	IterationsTotal prometheus.Counter
	BestFitness     prometheus.Gauge
	AntFitness      prometheus.Histogram
	RunsTotal       *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg. Pass a fresh registry per
// test to keep registrations isolated.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AntsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: colonySubsystem,
			Name:      "ants_total",
			Help:      "Total number of ants built",
		}),
		IterationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: colonySubsystem,
			Name:      "iterations_total",
			Help:      "Total number of completed colony iterations",
		}),
		BestFitness: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: colonySubsystem,
			Name:      "best_fitness",
			Help:      "Best-so-far fitness reported by the most recently completed iteration of any run",
		}),
		AntFitness: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: colonySubsystem,
			Name:      "ant_fitness",
			Help:      "Fitness of each ant after local search",
			Buckets:   prometheus.LinearBuckets(0, 2, 16),
		}),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: colonySubsystem,
			Name:      "runs_total",
			Help:      "Total number of runs by final status",
		}, []string{"status"}),
	}
}

func (m *Metrics) AntDone(_ colony.Config, _, _ int, _ *conformation.Conformation, fitness float64) {
	m.AntsTotal.Inc()
	m.AntFitness.Observe(fitness)
}

func (m *Metrics) IterationDone(_ colony.Config, _ int, _ *conformation.Conformation, bestFitness float64) {
	m.IterationsTotal.Inc()
	m.BestFitness.Set(bestFitness)
}

func (m *Metrics) RunFinished(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RunsTotal.WithLabelValues(status).Inc()
}
