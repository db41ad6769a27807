package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the process-wide Prometheus metrics. Module-specific metrics
// live in each module's metrics package.
type Metrics struct {
	EndpointLatency *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
}

// New creates and registers the process-wide Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		EndpointLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "veritas_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veritas_requests_total",
			Help: "Total number of HTTP requests by endpoint and status class",
		}, []string{"endpoint", "status"}),
	}
}

// ObserveEndpointLatency records the latency for a given endpoint.
func (m *Metrics) ObserveEndpointLatency(endpoint string, durationSeconds float64) {
	m.EndpointLatency.WithLabelValues(endpoint).Observe(durationSeconds)
}

// IncrementRequests increments the request counter for an endpoint/status pair.
func (m *Metrics) IncrementRequests(endpoint, status string) {
	m.RequestsTotal.WithLabelValues(endpoint, status).Inc()
}
