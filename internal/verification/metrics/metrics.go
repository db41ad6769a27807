// Package metrics provides Prometheus metrics for the verification engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the verification pipeline metrics.
type Metrics struct {
	VerificationsTotal *prometheus.CounterVec // status: verified | suspicious | failed
	CheckOutcomesTotal *prometheus.CounterVec // check, status
	RiskScore          prometheus.Histogram
	PipelineDuration   prometheus.Histogram
}

// New creates a new Metrics instance with all metrics registered.
func New() *Metrics {
	return &Metrics{
		VerificationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veritas_verifications_total",
			Help: "Total number of credential verifications by trust status",
		}, []string{"status"}),
		CheckOutcomesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veritas_verification_checks_total",
			Help: "Total number of pipeline check outcomes",
		}, []string{"check", "status"}),
		RiskScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "veritas_verification_risk_score",
			Help:    "Aggregate risk score distribution",
			Buckets: []float64{0, 5, 10, 20, 35, 50, 75, 100, 150},
		}),
		PipelineDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "veritas_verification_duration_seconds",
			Help:    "End-to-end verification pipeline duration",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
