// Package metrics provides Prometheus metrics for the iris service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncRunsTotal tracks finished sync runs by provider and terminal status
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iris",
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Total number of sync runs by terminal status",
		},
		[]string{"provider", "status"},
	)

	// SyncRunDuration tracks sync run duration in seconds
	SyncRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "iris",
			Subsystem: "sync",
			Name:      "run_duration_seconds",
			Help:      "Duration of sync runs in seconds",
			Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"provider"},
	)

	// SyncRejectedTotal tracks invocations refused before a run was opened
	SyncRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iris",
			Subsystem: "sync",
			Name:      "rejected_total",
			Help:      "Total number of sync invocations rejected before a run started",
		},
		[]string{"provider", "error_kind"},
	)

	// EntitiesReconciledTotal tracks upserts by entity type and outcome
	EntitiesReconciledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iris",
			Subsystem: "sync",
			Name:      "entities_reconciled_total",
			Help:      "Total number of reconciled entities by type and outcome",
		},
		[]string{"entity", "outcome"},
	)

	// PartialFailuresTotal tracks isolated per-application failures
	PartialFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iris",
			Subsystem: "sync",
			Name:      "partial_failures_total",
			Help:      "Total number of isolated per-application assignment failures",
		},
		[]string{"provider"},
	)

	// HTTPRequestsTotal tracks outbound HTTP requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iris",
			Subsystem: "http_client",
			Name:      "requests_total",
			Help:      "Total number of outbound HTTP requests",
		},
		[]string{"method", "status_code"},
	)

	// HTTPRequestDuration tracks outbound HTTP request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "iris",
			Subsystem: "http_client",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound HTTP requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method"},
	)

	// RateLimitWaitTime tracks time spent waiting on the outbound limiter
	RateLimitWaitTime = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "iris",
			Subsystem: "ratelimit",
			Name:      "wait_seconds",
			Help:      "Time spent waiting for the provider rate limiter in seconds",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5},
		},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iris",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)

	// KafkaPublishDuration tracks Kafka publish duration
	KafkaPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "iris",
			Subsystem: "kafka",
			Name:      "publish_duration_seconds",
			Help:      "Duration of Kafka publish operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
	)

	// RedisOperationDuration tracks Redis operation duration
	RedisOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "iris",
			Subsystem: "redis",
			Name:      "operation_duration_seconds",
			Help:      "Duration of Redis operations in seconds",
			Buckets:   []float64{0.0001, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
		[]string{"operation"},
	)
)

// RecordSyncRun records a finished sync run
func RecordSyncRun(provider, status string, durationSeconds float64) {
	SyncRunsTotal.WithLabelValues(provider, status).Inc()
	SyncRunDuration.WithLabelValues(provider).Observe(durationSeconds)
}

// RecordSyncRejected records an invocation refused before a run was opened
func RecordSyncRejected(provider, errorKind string) {
	SyncRejectedTotal.WithLabelValues(provider, errorKind).Inc()
}

// RecordEntity records one reconciled entity. outcome is "created" or "updated".
func RecordEntity(entity, outcome string) {
	EntitiesReconciledTotal.WithLabelValues(entity, outcome).Inc()
}

// RecordPartialFailure records an isolated per-application failure
func RecordPartialFailure(provider string) {
	PartialFailuresTotal.WithLabelValues(provider).Inc()
}

// RecordHTTPRequest records an outbound HTTP request metric
func RecordHTTPRequest(method, statusCode string, durationSeconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordRateLimitWait records time spent blocked on the limiter
func RecordRateLimitWait(durationSeconds float64) {
	RateLimitWaitTime.Observe(durationSeconds)
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string, durationSeconds float64) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
	KafkaPublishDuration.Observe(durationSeconds)
}

// RecordRedisOperation records a Redis operation duration
func RecordRedisOperation(operation string, durationSeconds float64) {
	RedisOperationDuration.WithLabelValues(operation).Observe(durationSeconds)
}
