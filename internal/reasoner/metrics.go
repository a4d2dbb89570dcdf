package reasoner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logicguard_consistency_checks_total",
		Help: "Total consistency checks performed",
	})

	// Labels: constraint category.
	violationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logicguard_violations_total",
		Help: "Constraint violations found, by category",
	}, []string{"category"})

	checkDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "logicguard_consistency_check_duration_seconds",
		Help:    "Duration of one consistency check",
		Buckets: []float64{0.000001, 0.00001, 0.0001, 0.001, 0.01},
	})
)
