package processor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	ctxmiddleware "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// DefaultWorkerCount is the default number of concurrent claim matchers
const DefaultWorkerCount = 8

type indexedClaim struct {
	index int
	claim models.ClaimRecord
}

type indexedOutcome struct {
	index   int
	outcome *models.RecordOutcome
}

// ProcessBatch runs a batch of claims through a bounded worker pool and
// aggregates the outcomes into a BatchReport. Outcomes are placed by input
// index, so report order equals input order regardless of which worker
// finished first. Per-claim faults are captured in their outcomes and the
// rest of the batch continues.
func (p *Processor) ProcessBatch(ctx context.Context, batchID string, claims []models.ClaimRecord) (*models.BatchReport, error) {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.ProcessBatch")
	defer span.End()

	if batchID == "" {
		batchID = uuid.NewString()
	}
	ctx = ctxmiddleware.SetBatchID(ctx, batchID)

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_id":    batchID,
		"claim_count": len(claims),
	})

	report := &models.BatchReport{
		BatchID:          batchID,
		Total:            len(claims),
		UnmatchedReasons: make(map[string]int),
		StartedAt:        time.Now().UTC(),
		Outcomes:         make([]models.RecordOutcome, len(claims)),
	}

	workers := p.workerCount
	if workers > len(claims) {
		workers = len(claims)
	}

	log.Infof("Processing batch: %d claims with %d workers", len(claims), workers)

	claimChan := make(chan indexedClaim, len(claims))
	outcomeChan := make(chan indexedOutcome, len(claims))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go p.worker(ctx, &wg, claimChan, outcomeChan)
	}

	for i, claim := range claims {
		claimChan <- indexedClaim{index: i, claim: claim}
	}
	close(claimChan)

	go func() {
		wg.Wait()
		close(outcomeChan)
	}()

	for res := range outcomeChan {
		report.Outcomes[res.index] = *res.outcome

		switch {
		case res.outcome.Error != "":
			report.Failed++
		case res.outcome.Result != nil && res.outcome.Result.Matched():
			report.Matched++
		default:
			report.Unmatched++
			if res.outcome.Result != nil && res.outcome.Result.Reason != "" {
				report.UnmatchedReasons[res.outcome.Result.Reason]++
			}
		}
	}

	report.FinishedAt = time.Now().UTC()
	report.DurationMS = report.FinishedAt.Sub(report.StartedAt).Milliseconds()

	p.reports.Put(report)
	metrics.RecordBatch(report.FinishedAt.Sub(report.StartedAt).Seconds())

	// The report is already retained, so a publish failure is logged
	// rather than failing the completed batch.
	if p.emitter != nil {
		if err := p.emitter.EmitBatchCompleted(ctx, ctxmiddleware.GetTenantID(ctx), report); err != nil {
			log.WithError(err).Error("Failed to emit batch.completed event")
		}
	}

	log.WithFields(map[string]any{
		"matched":     report.Matched,
		"unmatched":   report.Unmatched,
		"failed":      report.Failed,
		"duration_ms": report.DurationMS,
	}).Info("Batch completed")

	return report, nil
}

func (p *Processor) worker(ctx context.Context, wg *sync.WaitGroup, claims <-chan indexedClaim, outcomes chan<- indexedOutcome) {
	defer wg.Done()

	for item := range claims {
		// On cancellation the remaining claims still get an outcome, so
		// the report's accounting stays exact.
		if err := ctx.Err(); err != nil {
			claim := item.claim
			outcomes <- indexedOutcome{
				index: item.index,
				outcome: &models.RecordOutcome{
					ClaimID: claim.ClaimID,
					Claim:   &claim,
					Result:  &models.MatchResult{Status: models.MatchStatusFailed},
					Error:   err.Error(),
				},
			}
			continue
		}

		claim := item.claim
		outcome, err := p.ProcessClaim(ctx, &claim)
		if err != nil {
			p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"claim_id": outcome.ClaimID,
			}).Error("Claim processing fault")
		}
		outcomes <- indexedOutcome{index: item.index, outcome: outcome}
	}
}
