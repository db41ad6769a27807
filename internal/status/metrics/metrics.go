// Package metrics provides Prometheus metrics for the revocation status list service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the status list metrics.
type Metrics struct {
	RegistrationsTotal prometheus.Counter
	RevocationsTotal   *prometheus.CounterVec // outcome: revoked | already_revoked
	ListsOpenedTotal   prometheus.Counter
	ActiveListFill     prometheus.Gauge
}

// New creates a new Metrics instance with all metrics registered.
func New() *Metrics {
	return &Metrics{
		RegistrationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veritas_status_registrations_total",
			Help: "Total number of credential status registrations",
		}),
		RevocationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veritas_status_revocations_total",
			Help: "Total number of revocation calls by outcome",
		}, []string{"outcome"}),
		ListsOpenedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veritas_status_lists_opened_total",
			Help: "Total number of status lists opened",
		}),
		ActiveListFill: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "veritas_status_active_list_fill",
			Help: "Fraction of the active status list's capacity that is allocated",
		}),
	}
}
