// Package events handles event emission for claim match decisions
package events

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter handles event emission for Clover
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitClaimMatched emits a claim.matched event
func (e *Emitter) EmitClaimMatched(ctx context.Context, tenantID, claimID, batchID string, result *models.MatchResult) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitClaimMatched")
	defer span.End()

	event := &kafka.MatchEvent{
		EventType:             "claim.matched",
		SchemaVersion:         SchemaVersion,
		TenantID:              tenantID,
		ClaimID:               claimID,
		BatchID:               batchID,
		Status:                string(models.MatchStatusMatched),
		OrderID:               result.OrderID,
		FileMakerRecordNumber: result.FileMakerRecordNumber,
		Scores:                result.Scores,
	}

	if err := e.producer.PublishMatchEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit claim.matched event")
		return err
	}

	return nil
}

// EmitClaimUnmatched emits a claim.unmatched event
func (e *Emitter) EmitClaimUnmatched(ctx context.Context, tenantID, claimID, batchID string, result *models.MatchResult) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitClaimUnmatched")
	defer span.End()

	event := &kafka.MatchEvent{
		EventType:     "claim.unmatched",
		SchemaVersion: SchemaVersion,
		TenantID:      tenantID,
		ClaimID:       claimID,
		BatchID:       batchID,
		Status:        string(models.MatchStatusUnmatched),
		Reason:        result.Reason,
		Scores:        result.Scores,
	}

	if err := e.producer.PublishMatchEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit claim.unmatched event")
		return err
	}

	return nil
}

// EmitClaimFailed emits a claim.failed event for a processing fault
func (e *Emitter) EmitClaimFailed(ctx context.Context, tenantID, claimID, batchID string, processErr error) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitClaimFailed")
	defer span.End()

	reason := ""
	if processErr != nil {
		reason = processErr.Error()
	}

	event := &kafka.MatchEvent{
		EventType:     "claim.failed",
		SchemaVersion: SchemaVersion,
		TenantID:      tenantID,
		ClaimID:       claimID,
		BatchID:       batchID,
		Status:        string(models.MatchStatusFailed),
		Reason:        reason,
	}

	if err := e.producer.PublishMatchEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit claim.failed event")
		return err
	}

	return nil
}

// EmitBatchCompleted emits a batch.completed event summarizing a batch run
func (e *Emitter) EmitBatchCompleted(ctx context.Context, tenantID string, report *models.BatchReport) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitBatchCompleted")
	defer span.End()

	event := &kafka.BatchCompletedEvent{
		EventType:     "batch.completed",
		SchemaVersion: SchemaVersion,
		TenantID:      tenantID,
		BatchID:       report.BatchID,
		TotalClaims:   report.Total,
		Matched:       report.Matched,
		Unmatched:     report.Unmatched,
		Failed:        report.Failed,
		DurationMS:    report.DurationMS,
	}

	if err := e.producer.PublishBatchEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit batch.completed event")
		return err
	}

	return nil
}
