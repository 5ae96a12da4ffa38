package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SnapshotDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docstore_snapshot_deliveries_total",
			Help: "Total number of snapshots delivered to live subscriptions",
		},
		[]string{"collection"},
	)

	SnapshotSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docstore_snapshot_size_docs",
			Help:    "Number of documents per delivered snapshot",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1 to ~4k docs
		},
		[]string{"collection"},
	)

	MutationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "task_mutation_duration_seconds",
			Help:    "Task store mutation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "outcome"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path", "status"},
	)

	NotificationEmailCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_email_count",
			Help: "Total number of assignment notification emails attempted",
		},
		[]string{"status"}, // status: sent, failed
	)

	SignInCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sign_in_count",
			Help: "Total number of sign-in attempts",
		},
		[]string{"outcome"}, // outcome: ok, denied, connection_error
	)
)

// RecordSnapshot records one snapshot delivery for a collection.
func RecordSnapshot(collection string, docs int) {
	SnapshotDeliveries.WithLabelValues(collection).Inc()
	SnapshotSize.WithLabelValues(collection).Observe(float64(docs))
}

// RecordMutation records a task store mutation outcome.
func RecordMutation(operation, outcome string, duration time.Duration) {
	MutationDuration.WithLabelValues(operation, outcome).Observe(duration.Seconds())
}

// RecordHTTPRequestDuration records an HTTP request duration.
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementNotificationEmail bumps the email attempt counter.
func IncrementNotificationEmail(status string) {
	NotificationEmailCount.WithLabelValues(status).Inc()
}

// IncrementSignIn bumps the sign-in attempt counter.
func IncrementSignIn(outcome string) {
	SignInCount.WithLabelValues(outcome).Inc()
}
