// Package processor orchestrates claim reconciliation: match decision,
// audit persistence, event emission, and batch aggregation. Faults on one
// claim are captured in its outcome and never abort the surrounding batch.
package processor

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	ctxmiddleware "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/refindex"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// faultReason is the bounded metrics label for per-record processing
// faults; the actual cause lives in the outcome and the logs.
const faultReason = "processing fault"

// AuditStore persists match decisions
type AuditStore interface {
	Create(ctx context.Context, claimID, batchID string, result *models.MatchResult) (string, error)
}

// EventEmitter publishes claim and batch lifecycle events
type EventEmitter interface {
	EmitClaimMatched(ctx context.Context, tenantID, claimID, batchID string, result *models.MatchResult) error
	EmitClaimUnmatched(ctx context.Context, tenantID, claimID, batchID string, result *models.MatchResult) error
	EmitClaimFailed(ctx context.Context, tenantID, claimID, batchID string, processErr error) error
	EmitBatchCompleted(ctx context.Context, tenantID string, report *models.BatchReport) error
}

// IndexProvider serves the reference index claims are matched against
type IndexProvider interface {
	Current() (*refindex.Index, error)
}

// IdempotencyGuard deduplicates claim processing across redeliveries
type IdempotencyGuard interface {
	TryClaim(ctx context.Context, claimID string) (bool, error)
	Release(ctx context.Context, claimID string) error
}

// Processor handles claim reconciliation end to end
type Processor struct {
	logger      ectologger.Logger
	engine      *matching.Engine
	index       IndexProvider
	auditRepo   AuditStore
	emitter     EventEmitter
	idempotency IdempotencyGuard
	reports     *ReportStore
	workerCount int
}

// NewProcessor creates a new claim processor. emitter and idempotency are
// optional; nil skips event emission or redelivery deduplication.
func NewProcessor(
	logger ectologger.Logger,
	engine *matching.Engine,
	index IndexProvider,
	auditRepo AuditStore,
	emitter EventEmitter,
	idempotency IdempotencyGuard,
	workerCount int,
	reportRetention time.Duration,
) *Processor {
	if workerCount <= 0 {
		workerCount = DefaultWorkerCount
	}
	return &Processor{
		logger:      logger,
		engine:      engine,
		index:       index,
		auditRepo:   auditRepo,
		emitter:     emitter,
		idempotency: idempotency,
		reports:     NewReportStore(reportRetention),
		workerCount: workerCount,
	}
}

// Reports exposes the retained batch reports for the report route
func (p *Processor) Reports() *ReportStore {
	return p.reports
}

// ProcessClaim reconciles one claim against the served reference index,
// persists the audit row, emits the match event, and returns the outcome
// with the enriched (or reason-tagged) claim. The returned error marks a
// processing fault; the outcome is populated either way.
func (p *Processor) ProcessClaim(ctx context.Context, claim *models.ClaimRecord) (*models.RecordOutcome, error) {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.ProcessClaim")
	defer span.End()

	start := time.Now()

	claimID := claim.ClaimID
	if claimID == "" {
		// One-off API claims may arrive without an id; the audit row and
		// events still need a stable handle.
		claimID = uuid.NewString()
	}
	batchID := ctxmiddleware.GetBatchID(ctx)
	tenantID := ctxmiddleware.GetTenantID(ctx)

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"claim_id": claimID,
		"batch_id": batchID,
	})

	idx, err := p.index.Current()
	if err != nil {
		log.WithError(err).Error("Reference index unavailable")
		return p.recordFault(ctx, claimID, claim, start, err)
	}

	result := p.engine.Match(ctx, claim, idx)

	if _, err := p.auditRepo.Create(ctx, claimID, batchID, result); err != nil {
		log.WithError(err).Error("Failed to persist match result")
		return p.recordFault(ctx, claimID, claim, start, err)
	}

	enriched := claim
	if result.Matched() {
		enriched = claim.WithMatch(result.OrderID, result.FileMakerRecordNumber)
		enriched.ClaimID = claimID
		if p.emitter != nil {
			if err := p.emitter.EmitClaimMatched(ctx, tenantID, claimID, batchID, result); err != nil {
				return p.recordFault(ctx, claimID, claim, start, err)
			}
		}
		log.WithFields(map[string]any{
			"order_id":        result.OrderID,
			"composite_score": result.Scores.CompositeScore,
		}).Info("Claim matched")
	} else {
		if p.emitter != nil {
			if err := p.emitter.EmitClaimUnmatched(ctx, tenantID, claimID, batchID, result); err != nil {
				return p.recordFault(ctx, claimID, claim, start, err)
			}
		}
		log.WithFields(map[string]any{
			"reason": result.Reason,
		}).Info("Claim unmatched")
	}

	metrics.RecordClaimDecision(string(result.Status), result.Reason, time.Since(start).Seconds())

	return &models.RecordOutcome{
		ClaimID: claimID,
		Claim:   enriched,
		Result:  result,
	}, nil
}

// ProcessMessage handles an incoming claim.extracted Kafka message
func (p *Processor) ProcessMessage(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.ProcessMessage")
	defer span.End()

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"key":    msg.Key,
		"topic":  msg.Topic,
		"offset": msg.Offset,
	})

	// Parse the claim payload if not already parsed
	if msg.ClaimMessage == nil {
		if err := msg.ParseClaimMessage(); err != nil {
			log.WithError(err).Error("Failed to parse claim message")
			return err
		}
	}

	claimID := msg.GetClaimID()
	if claimID == "" {
		log.Error("Missing claim_id in message")
		return nil // Skip message, don't retry
	}

	ctx = ctxmiddleware.SetTenantID(ctx, msg.GetTenantID())
	ctx = ctxmiddleware.SetBatchID(ctx, msg.GetBatchID())

	log = log.WithFields(map[string]any{
		"claim_id":     claimID,
		"tenant_id":    msg.GetTenantID(),
		"batch_id":     msg.GetBatchID(),
		"document_key": msg.GetDocumentKey(),
	})

	if p.idempotency != nil {
		fresh, err := p.idempotency.TryClaim(ctx, claimID)
		if err != nil {
			log.WithError(err).Error("Idempotency check failed")
			return err
		}
		if !fresh {
			log.Info("Skipping already-processed claim")
			return nil
		}
	}

	claim := msg.ClaimMessage.Claim
	claim.ClaimID = claimID

	if _, err := p.ProcessClaim(ctx, &claim); err != nil {
		// Release the idempotency hold so the redelivery can retry.
		if p.idempotency != nil {
			if relErr := p.idempotency.Release(ctx, claimID); relErr != nil {
				log.WithError(relErr).Warn("Failed to release idempotency hold")
			}
		}
		return err
	}

	return nil
}

// recordFault captures a per-record processing fault: the claim's outcome
// carries the error, downstream consumers hear about it, and the caller
// decides whether to continue (batch) or retry (Kafka).
func (p *Processor) recordFault(ctx context.Context, claimID string, claim *models.ClaimRecord, start time.Time, cause error) (*models.RecordOutcome, error) {
	batchID := ctxmiddleware.GetBatchID(ctx)
	tenantID := ctxmiddleware.GetTenantID(ctx)

	metrics.RecordClaimDecision(string(models.MatchStatusFailed), faultReason, time.Since(start).Seconds())

	if p.emitter != nil {
		if err := p.emitter.EmitClaimFailed(ctx, tenantID, claimID, batchID, cause); err != nil {
			p.logger.WithContext(ctx).WithError(err).Warn("Failed to emit claim.failed event")
		}
	}

	return &models.RecordOutcome{
		ClaimID: claimID,
		Claim:   claim,
		Result:  &models.MatchResult{Status: models.MatchStatusFailed},
		Error:   cause.Error(),
	}, cause
}
