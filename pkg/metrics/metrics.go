// Package metrics provides Prometheus metrics for the Clover service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BatchItemsTotal tracks batch items processed by kind and outcome
	BatchItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "batch",
			Name:      "items_total",
			Help:      "Total number of batch items processed by kind and outcome",
		},
		[]string{"kind", "status"},
	)

	// BatchRunDuration tracks batch run duration in seconds
	BatchRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "batch",
			Name:      "run_duration_seconds",
			Help:      "Duration of batch runs in seconds",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"kind"},
	)

	// MatchingResultsTotal tracks matching results persisted
	MatchingResultsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "matching",
			Name:      "results_total",
			Help:      "Total number of matching results persisted",
		},
	)

	// DuplicateGroupsTotal tracks duplicate group changes by action
	DuplicateGroupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "grouping",
			Name:      "groups_total",
			Help:      "Total number of duplicate group changes by action",
		},
		[]string{"action"},
	)

	// EmbeddingCoverage tracks the fraction of programs with a stored embedding
	EmbeddingCoverage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "clover",
			Subsystem: "embeddings",
			Name:      "coverage_ratio",
			Help:      "Fraction of live support programs with a stored embedding",
		},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)
)

// RecordBatchItem records one batch item outcome
func RecordBatchItem(kind, status string) {
	BatchItemsTotal.WithLabelValues(kind, status).Inc()
}

// RecordBatchRun records a completed batch run
func RecordBatchRun(kind string, durationSeconds float64) {
	BatchRunDuration.WithLabelValues(kind).Observe(durationSeconds)
}

// RecordGroupChange records a duplicate group change
func RecordGroupChange(action string) {
	DuplicateGroupsTotal.WithLabelValues(action).Inc()
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
}
