package corrector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logicguard_correction_runs_total",
			Help: "Correction runs by outcome",
		},
		[]string{"outcome"},
	)

	iterationsUsed = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "logicguard_correction_iterations",
			Help:    "Iterations used per finished correction run",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		},
	)

	generationCalls = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logicguard_generation_calls_total",
			Help: "Repair generation calls issued by the correction loop",
		},
	)
)
