// Package metrics provides Prometheus metrics for the anchoring service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the anchoring metrics.
type Metrics struct {
	BatchesCreatedTotal prometheus.Counter
	AnchorsTotal        *prometheus.CounterVec // outcome: anchored | dead_lettered | replayed
	SubmitAttempts      prometheus.Histogram
	DeadLetterDepth     prometheus.Gauge
}

// New creates a new Metrics instance with all metrics registered.
func New() *Metrics {
	return &Metrics{
		BatchesCreatedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veritas_anchor_batches_created_total",
			Help: "Total number of anchor batches created",
		}),
		AnchorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veritas_anchor_submissions_total",
			Help: "Total number of anchoring outcomes",
		}, []string{"outcome"}),
		SubmitAttempts: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "veritas_anchor_submit_attempts",
			Help:    "Ledger submission attempts consumed per batch",
			Buckets: []float64{1, 2, 3, 4, 5, 8, 13},
		}),
		DeadLetterDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "veritas_anchor_dead_letter_depth",
			Help: "Number of batches currently in the dead-letter queue",
		}),
	}
}
