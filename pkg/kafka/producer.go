package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Producer handles Kafka event emission
type Producer struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	requiredAcks := kafka.RequiredAcks(cfg.RequiredAcks)

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           requiredAcks,
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// MatchEvent represents the reconciliation outcome for a single claim
type MatchEvent struct {
	EventType             string              `json:"event_type"` // claim.matched, claim.unmatched, claim.failed
	SchemaVersion         string              `json:"schema_version"`
	TenantID              string              `json:"tenant_id,omitempty"`
	ClaimID               string              `json:"claim_id"`
	BatchID               string              `json:"batch_id,omitempty"`
	Status                string              `json:"status"`
	Reason                string              `json:"reason,omitempty"`
	OrderID               string              `json:"order_id,omitempty"`
	FileMakerRecordNumber string              `json:"filemaker_record_number,omitempty"`
	Scores                *models.MatchScores `json:"scores,omitempty"`
	Timestamp             time.Time           `json:"timestamp"`
}

// BatchCompletedEvent summarizes a finished reconciliation batch
type BatchCompletedEvent struct {
	EventType     string    `json:"event_type"` // batch.completed
	SchemaVersion string    `json:"schema_version"`
	TenantID      string    `json:"tenant_id,omitempty"`
	BatchID       string    `json:"batch_id"`
	TotalClaims   int       `json:"total_claims"`
	Matched       int       `json:"matched"`
	Unmatched     int       `json:"unmatched"`
	Failed        int       `json:"failed"`
	DurationMS    int64     `json:"duration_ms"`
	Timestamp     time.Time `json:"timestamp"`
}

// PublishMatchEvent publishes a claim match event to Kafka
func (p *Producer) PublishMatchEvent(ctx context.Context, event *MatchEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishMatchEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(event.EventType)},
		{Key: "tenant_id", Value: []byte(event.TenantID)},
		{Key: "claim_id", Value: []byte(event.ClaimID)},
	}
	if tp := tracing.GetTraceParent(ctx); tp != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(tp)})
	}

	msg := kafka.Message{
		Topic:   p.topic,
		Key:     []byte(event.ClaimID),
		Value:   data,
		Headers: headers,
	}

	start := time.Now()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.RecordKafkaPublish(p.topic, "failure", time.Since(start).Seconds())
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish match event")
		return err
	}
	metrics.RecordKafkaPublish(p.topic, "success", time.Since(start).Seconds())

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type": event.EventType,
		"claim_id":   event.ClaimID,
		"status":     event.Status,
	}).Debug("Published match event")

	return nil
}

// PublishBatchEvent publishes a batch completion event to Kafka
func (p *Producer) PublishBatchEvent(ctx context.Context, event *BatchCompletedEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishBatchEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(event.EventType)},
		{Key: "tenant_id", Value: []byte(event.TenantID)},
		{Key: "batch_id", Value: []byte(event.BatchID)},
	}
	if tp := tracing.GetTraceParent(ctx); tp != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(tp)})
	}

	msg := kafka.Message{
		Topic:   p.topic,
		Key:     []byte(event.BatchID),
		Value:   data,
		Headers: headers,
	}

	start := time.Now()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.RecordKafkaPublish(p.topic, "failure", time.Since(start).Seconds())
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish batch event")
		return err
	}
	metrics.RecordKafkaPublish(p.topic, "success", time.Since(start).Seconds())

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type": event.EventType,
		"batch_id":   event.BatchID,
	}).Debug("Published batch event")

	return nil
}
