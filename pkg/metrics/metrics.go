// Package metrics provides Prometheus metrics for the Clover service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ClaimsProcessedTotal tracks claim decisions by status and reason
	ClaimsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "matching",
			Name:      "claims_total",
			Help:      "Total number of claim match decisions by status and reason",
		},
		[]string{"status", "reason"},
	)

	// MatchDuration tracks how long a single claim takes to match
	MatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "matching",
			Name:      "match_duration_seconds",
			Help:      "Duration of a single claim match in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	// CandidateCount tracks how many orders survive the threshold per claim
	CandidateCount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "matching",
			Name:      "candidates_per_claim",
			Help:      "Number of candidate orders passing the similarity and date gates per claim",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 25, 50, 100},
		},
	)

	// BatchesProcessedTotal tracks completed batch runs
	BatchesProcessedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "matching",
			Name:      "batches_total",
			Help:      "Total number of completed batch runs",
		},
	)

	// BatchDuration tracks batch run duration in seconds
	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "matching",
			Name:      "batch_duration_seconds",
			Help:      "Duration of batch runs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
	)

	// IndexOrders tracks the size of the served reference index
	IndexOrders = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "clover",
			Subsystem: "refindex",
			Name:      "orders",
			Help:      "Number of orders in the served reference index",
		},
	)

	// IndexBuildsTotal tracks index builds by status
	IndexBuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "refindex",
			Name:      "builds_total",
			Help:      "Total number of reference index builds by status",
		},
		[]string{"status"},
	)

	// IndexBuildDuration tracks index build duration
	IndexBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "refindex",
			Name:      "build_duration_seconds",
			Help:      "Duration of reference index builds in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
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

	// KafkaPublishDuration tracks Kafka publish duration
	KafkaPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "kafka",
			Name:      "publish_duration_seconds",
			Help:      "Duration of Kafka publish operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
	)

	// KafkaMessagesConsumed tracks consumed claim messages by outcome
	KafkaMessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "kafka",
			Name:      "messages_consumed_total",
			Help:      "Total number of consumed claim messages by outcome",
		},
		[]string{"outcome"},
	)

	// ImportRowsTotal tracks ledger rows imported by table and outcome
	ImportRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "reference",
			Name:      "import_rows_total",
			Help:      "Total number of ledger rows imported by table and outcome",
		},
		[]string{"table", "outcome"},
	)
)

// RecordClaimDecision records the terminal decision for one claim. Reason is
// empty for matched claims.
func RecordClaimDecision(status, reason string, durationSeconds float64) {
	ClaimsProcessedTotal.WithLabelValues(status, reason).Inc()
	MatchDuration.Observe(durationSeconds)
}

// RecordCandidateCount records how many orders passed the gates for a claim.
func RecordCandidateCount(count int) {
	CandidateCount.Observe(float64(count))
}

// RecordBatch records a completed batch run.
func RecordBatch(durationSeconds float64) {
	BatchesProcessedTotal.Inc()
	BatchDuration.Observe(durationSeconds)
}

// RecordIndexBuild records a reference index build.
func RecordIndexBuild(status string, orders int, durationSeconds float64) {
	IndexBuildsTotal.WithLabelValues(status).Inc()
	if status == "success" {
		IndexOrders.Set(float64(orders))
		IndexBuildDuration.Observe(durationSeconds)
	}
}

// RecordKafkaPublish records a Kafka publish operation.
func RecordKafkaPublish(topic, status string, durationSeconds float64) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
	KafkaPublishDuration.Observe(durationSeconds)
}

// RecordKafkaConsume records the outcome of one consumed claim message.
func RecordKafkaConsume(outcome string) {
	KafkaMessagesConsumed.WithLabelValues(outcome).Inc()
}

// RecordImportRows records ledger rows written or skipped during an import.
func RecordImportRows(table, outcome string, count int) {
	ImportRowsTotal.WithLabelValues(table, outcome).Add(float64(count))
}
