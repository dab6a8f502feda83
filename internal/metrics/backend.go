package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	backendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "umbra",
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Requests made to the umbra backend API",
		},
		[]string{"endpoint", "status"}, // status is the HTTP code or "error" on transport failure
	)

	backendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "umbra",
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Umbra backend API latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
)

type BackendMetrics struct{}

func NewBackendMetrics() *BackendMetrics {
	return &BackendMetrics{}
}

func (m *BackendMetrics) RecordRequest(endpoint, status string, took time.Duration) {
	backendRequestsTotal.WithLabelValues(endpoint, status).Inc()
	backendRequestDuration.WithLabelValues(endpoint).Observe(took.Seconds())
}
