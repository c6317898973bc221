package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EmailsQueuedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_queued_count",
			Help: "Total number of delivery jobs enqueued",
		},
		[]string{"kind"}, // kind: immediate, scheduled
	)

	DeliveryAttemptCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_attempt_count",
			Help: "Total number of delivery job outcomes",
		},
		[]string{"status"}, // status: processed, failed, skipped
	)

	ProviderCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_call_latency_ms",
			Help:    "Mail provider API call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)
)

func IncrementEmailsQueued(kind string) {
	EmailsQueuedCount.WithLabelValues(kind).Inc()
}

func IncrementDeliveryAttempt(status string) {
	DeliveryAttemptCount.WithLabelValues(status).Inc()
}

func RecordProviderCallLatency(status string, duration time.Duration) {
	ProviderCallLatency.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
