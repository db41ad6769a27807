// Package metrics provides Prometheus metrics for proof operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the proof generation and verification metrics.
type Metrics struct {
	GenerationsTotal   *prometheus.CounterVec // format, status
	VerificationsTotal *prometheus.CounterVec // format, code
	ReplaysBlocked     prometheus.Counter
}

// New creates a new Metrics instance with all metrics registered.
func New() *Metrics {
	return &Metrics{
		GenerationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veritas_proof_generations_total",
			Help: "Total number of proof generations by format and status",
		}, []string{"format", "status"}),
		VerificationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veritas_proof_verifications_total",
			Help: "Total number of proof verifications by format and outcome code",
		}, []string{"format", "code"}),
		ReplaysBlocked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veritas_proof_replays_blocked_total",
			Help: "Total number of verifications rejected by the replay guard",
		}),
	}
}
