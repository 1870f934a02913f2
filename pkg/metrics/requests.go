package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics records outcomes of storefront API calls.
type RequestMetrics struct {
	duration *prometheus.HistogramVec
	failure  *prometheus.CounterVec
	retries  *prometheus.CounterVec
}

// NewRequestMetrics registers the request metrics on the provided registerer.
func NewRequestMetrics(reg prometheus.Registerer) *RequestMetrics {
	if reg == nil {
		return &RequestMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_request_duration_seconds",
		Help:    "Duration of storefront API requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_request_failures",
		Help: "Failed storefront API requests by error code.",
	}, []string{"operation", "code"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_request_retries",
		Help: "Retried storefront API requests.",
	}, []string{"operation"})
	reg.MustRegister(duration, failure, retries)
	return &RequestMetrics{
		duration: duration,
		failure:  failure,
		retries:  retries,
	}
}

// ObserveDuration records the duration for the named operation.
func (m *RequestMetrics) ObserveDuration(operation string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

// IncFailure increments the failure counter for the named operation.
func (m *RequestMetrics) IncFailure(operation, code string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(operation), normalizeLabel(code)).Inc()
}

// IncRetry increments the retry counter for the named operation.
func (m *RequestMetrics) IncRetry(operation string) {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.WithLabelValues(normalizeLabel(operation)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
