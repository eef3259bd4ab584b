package processor

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/internal/repositories/lineitems"
	ctxmiddleware "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/refindex"
)

type auditRow struct {
	claimID string
	batchID string
	result  *models.MatchResult
}

type fakeAudit struct {
	mu      sync.Mutex
	rows    []auditRow
	failFor map[string]error
}

func (f *fakeAudit) Create(_ context.Context, claimID, batchID string, result *models.MatchResult) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.failFor[claimID]; ok {
		return "", err
	}
	f.rows = append(f.rows, auditRow{claimID: claimID, batchID: batchID, result: result})
	return claimID, nil
}

func (f *fakeAudit) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeEmitter struct {
	mu      sync.Mutex
	events  []string
	reports []*models.BatchReport
}

func (f *fakeEmitter) record(event string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeEmitter) EmitClaimMatched(_ context.Context, _, claimID, _ string, _ *models.MatchResult) error {
	f.record("claim.matched:" + claimID)
	return nil
}

func (f *fakeEmitter) EmitClaimUnmatched(_ context.Context, _, claimID, _ string, _ *models.MatchResult) error {
	f.record("claim.unmatched:" + claimID)
	return nil
}

func (f *fakeEmitter) EmitClaimFailed(_ context.Context, _, claimID, _ string, _ error) error {
	f.record("claim.failed:" + claimID)
	return nil
}

func (f *fakeEmitter) EmitBatchCompleted(_ context.Context, _ string, report *models.BatchReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, report)
	return nil
}

func (f *fakeEmitter) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

type staticIndex struct {
	idx *refindex.Index
}

func (s *staticIndex) Current() (*refindex.Index, error) {
	if s.idx == nil {
		return nil, refindex.ErrIndexNotReady
	}
	return s.idx, nil
}

type fakeIdempotency struct {
	mu       sync.Mutex
	seen     map[string]bool
	released []string
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{seen: make(map[string]bool)}
}

func (f *fakeIdempotency) TryClaim(_ context.Context, claimID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.seen[claimID] {
		return false, nil
	}
	f.seen[claimID] = true
	return true, nil
}

func (f *fakeIdempotency) Release(_ context.Context, claimID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.seen, claimID)
	f.released = append(f.released, claimID)
	return nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

func testIndex() *refindex.Index {
	orders := []models.OrderRecord{
		{OrderID: "O1", FileMakerRecordNumber: "FM-1", PatientName: "Smith, John"},
		{OrderID: "O2", FileMakerRecordNumber: "FM-2", PatientName: "Doe, Jane"},
	}
	items := []lineitems.LineItemRow{
		{OrderID: "O1", DateOfService: nullStr("2024-03-01"), CPTCode: nullStr("99213")},
		{OrderID: "O2", DateOfService: nullStr("2024-06-10"), CPTCode: nullStr("73721")},
	}
	return refindex.Build(orders, items, "test")
}

func testClaim(id, name, dos string) models.ClaimRecord {
	return models.ClaimRecord{
		ClaimID:     id,
		PatientInfo: models.PatientInfo{PatientName: name},
		ServiceLines: []models.ServiceLine{
			{DateOfService: dos, CPTCode: "99213"},
		},
	}
}

func newTestProcessor(audit *fakeAudit, emitter *fakeEmitter, idx *refindex.Index, idem IdempotencyGuard) *Processor {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	engine := matching.NewEngine(logger)
	return NewProcessor(logger, engine, &staticIndex{idx: idx}, audit, emitter, idem, 4, time.Minute)
}

func TestProcessClaimMatched(t *testing.T) {
	audit := &fakeAudit{}
	emitter := &fakeEmitter{}
	p := newTestProcessor(audit, emitter, testIndex(), nil)

	claim := testClaim("clm-1", "John Smith", "2024-03-05")
	outcome, err := p.ProcessClaim(context.Background(), &claim)
	require.NoError(t, err)

	require.NotNil(t, outcome.Result)
	assert.Equal(t, models.MatchStatusMatched, outcome.Result.Status)
	assert.Equal(t, "O1", outcome.Result.OrderID)

	require.NotNil(t, outcome.Claim)
	assert.Equal(t, "O1", outcome.Claim.OrderID)
	assert.Equal(t, "FM-1", outcome.Claim.FileMakerRecordNumber)

	// The caller's claim is never mutated
	assert.Empty(t, claim.OrderID)

	require.Len(t, audit.rows, 1)
	assert.Equal(t, "clm-1", audit.rows[0].claimID)
	assert.Equal(t, []string{"claim.matched:clm-1"}, emitter.all())
}

func TestProcessClaimUnmatched(t *testing.T) {
	audit := &fakeAudit{}
	emitter := &fakeEmitter{}
	p := newTestProcessor(audit, emitter, testIndex(), nil)

	claim := testClaim("clm-2", "Quincy Zebra", "2024-03-05")
	outcome, err := p.ProcessClaim(context.Background(), &claim)
	require.NoError(t, err)

	assert.Equal(t, models.MatchStatusUnmatched, outcome.Result.Status)
	assert.Equal(t, models.UnmatchReasonNoCandidate, outcome.Result.Reason)
	assert.Empty(t, outcome.Claim.OrderID)
	assert.Equal(t, []string{"claim.unmatched:clm-2"}, emitter.all())
}

func TestProcessClaimGeneratesClaimID(t *testing.T) {
	audit := &fakeAudit{}
	emitter := &fakeEmitter{}
	p := newTestProcessor(audit, emitter, testIndex(), nil)

	claim := testClaim("", "John Smith", "2024-03-05")
	outcome, err := p.ProcessClaim(context.Background(), &claim)
	require.NoError(t, err)

	assert.NotEmpty(t, outcome.ClaimID)
	require.Len(t, audit.rows, 1)
	assert.Equal(t, outcome.ClaimID, audit.rows[0].claimID)
	assert.Equal(t, outcome.ClaimID, outcome.Claim.ClaimID)
}

func TestProcessClaimAuditFault(t *testing.T) {
	audit := &fakeAudit{failFor: map[string]error{"clm-3": errors.New("insert failed")}}
	emitter := &fakeEmitter{}
	p := newTestProcessor(audit, emitter, testIndex(), nil)

	claim := testClaim("clm-3", "John Smith", "2024-03-05")
	outcome, err := p.ProcessClaim(context.Background(), &claim)
	require.Error(t, err)

	assert.Equal(t, models.MatchStatusFailed, outcome.Result.Status)
	assert.Contains(t, outcome.Error, "insert failed")
	assert.Equal(t, []string{"claim.failed:clm-3"}, emitter.all())
}

func TestProcessClaimIndexNotReady(t *testing.T) {
	audit := &fakeAudit{}
	emitter := &fakeEmitter{}
	p := newTestProcessor(audit, emitter, nil, nil)

	claim := testClaim("clm-4", "John Smith", "2024-03-05")
	outcome, err := p.ProcessClaim(context.Background(), &claim)
	require.Error(t, err)
	assert.ErrorIs(t, err, refindex.ErrIndexNotReady)

	assert.Equal(t, models.MatchStatusFailed, outcome.Result.Status)
	assert.Zero(t, audit.count())
}

func TestProcessBatchAggregatesInInputOrder(t *testing.T) {
	audit := &fakeAudit{}
	emitter := &fakeEmitter{}
	p := newTestProcessor(audit, emitter, testIndex(), nil)

	claims := []models.ClaimRecord{
		testClaim("clm-a", "John Smith", "2024-03-05"),
		testClaim("clm-b", "Quincy Zebra", "2024-03-05"),
		testClaim("clm-c", "", "2024-03-05"),
		testClaim("clm-d", "Jane Doe", "2024-06-12"),
	}

	report, err := p.ProcessBatch(context.Background(), "batch-1", claims)
	require.NoError(t, err)

	assert.Equal(t, "batch-1", report.BatchID)
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 2, report.Matched)
	assert.Equal(t, 2, report.Unmatched)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 1, report.UnmatchedReasons[models.UnmatchReasonNoCandidate])
	assert.Equal(t, 1, report.UnmatchedReasons[models.UnmatchReasonMissingNameOrDate])

	// Report order equals input order regardless of worker scheduling
	require.Len(t, report.Outcomes, 4)
	assert.Equal(t, "clm-a", report.Outcomes[0].ClaimID)
	assert.Equal(t, "clm-b", report.Outcomes[1].ClaimID)
	assert.Equal(t, "clm-c", report.Outcomes[2].ClaimID)
	assert.Equal(t, "clm-d", report.Outcomes[3].ClaimID)
	assert.Equal(t, "O1", report.Outcomes[0].Claim.OrderID)
	assert.Equal(t, "O2", report.Outcomes[3].Claim.OrderID)

	// Retained for the report route
	stored, ok := p.Reports().Get("batch-1")
	require.True(t, ok)
	assert.Equal(t, report, stored)

	require.Len(t, emitter.reports, 1)
	assert.Equal(t, "batch-1", emitter.reports[0].BatchID)
}

func TestProcessBatchContinuesPastFaults(t *testing.T) {
	audit := &fakeAudit{failFor: map[string]error{"clm-bad": errors.New("connection reset")}}
	emitter := &fakeEmitter{}
	p := newTestProcessor(audit, emitter, testIndex(), nil)

	claims := []models.ClaimRecord{
		testClaim("clm-ok", "John Smith", "2024-03-05"),
		testClaim("clm-bad", "John Smith", "2024-03-05"),
		testClaim("clm-miss", "Quincy Zebra", "2024-03-05"),
	}

	report, err := p.ProcessBatch(context.Background(), "batch-2", claims)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Matched)
	assert.Equal(t, 1, report.Unmatched)
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, report.Outcomes[1].Error, "connection reset")
	assert.Equal(t, models.MatchStatusFailed, report.Outcomes[1].Result.Status)
}

func TestProcessBatchGeneratesBatchID(t *testing.T) {
	p := newTestProcessor(&fakeAudit{}, &fakeEmitter{}, testIndex(), nil)

	report, err := p.ProcessBatch(context.Background(), "", []models.ClaimRecord{
		testClaim("clm-1", "John Smith", "2024-03-05"),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, report.BatchID)
	_, ok := p.Reports().Get(report.BatchID)
	assert.True(t, ok)
}

func claimMessageJSON() []byte {
	return []byte(`{
		"claim_id": "clm-msg-1",
		"source": {"tenant_id": "tenant-1", "batch_id": "batch-k"},
		"claim": {
			"patient_info": {"patient_name": "John Smith"},
			"service_lines": [{"date_of_service": "2024-03-05", "cpt_code": "99213"}]
		}
	}`)
}

func TestProcessMessageHappyPath(t *testing.T) {
	audit := &fakeAudit{}
	emitter := &fakeEmitter{}
	idem := newFakeIdempotency()
	p := newTestProcessor(audit, emitter, testIndex(), idem)

	msg := &kafka.IncomingMessage{Value: claimMessageJSON()}
	require.NoError(t, p.ProcessMessage(context.Background(), msg))

	require.Len(t, audit.rows, 1)
	assert.Equal(t, "clm-msg-1", audit.rows[0].claimID)
	assert.Equal(t, "batch-k", audit.rows[0].batchID)
	assert.Equal(t, []string{"claim.matched:clm-msg-1"}, emitter.all())
}

func TestProcessMessageSkipsDuplicate(t *testing.T) {
	audit := &fakeAudit{}
	emitter := &fakeEmitter{}
	idem := newFakeIdempotency()
	idem.seen["clm-msg-1"] = true
	p := newTestProcessor(audit, emitter, testIndex(), idem)

	msg := &kafka.IncomingMessage{Value: claimMessageJSON()}
	require.NoError(t, p.ProcessMessage(context.Background(), msg))

	assert.Zero(t, audit.count())
	assert.Empty(t, emitter.all())
}

func TestProcessMessageReleasesHoldOnFault(t *testing.T) {
	audit := &fakeAudit{failFor: map[string]error{"clm-msg-1": errors.New("db down")}}
	emitter := &fakeEmitter{}
	idem := newFakeIdempotency()
	p := newTestProcessor(audit, emitter, testIndex(), idem)

	msg := &kafka.IncomingMessage{Value: claimMessageJSON()}
	err := p.ProcessMessage(context.Background(), msg)
	require.Error(t, err)

	// The hold is released so the redelivery can retry
	assert.Equal(t, []string{"clm-msg-1"}, idem.released)
	assert.False(t, idem.seen["clm-msg-1"])
}

func TestProcessMessageUnparseablePayload(t *testing.T) {
	p := newTestProcessor(&fakeAudit{}, &fakeEmitter{}, testIndex(), nil)

	msg := &kafka.IncomingMessage{Value: []byte(`{"claim_id": `)}
	assert.Error(t, p.ProcessMessage(context.Background(), msg))
}

func TestProcessClaimUsesBatchIDFromContext(t *testing.T) {
	audit := &fakeAudit{}
	p := newTestProcessor(audit, &fakeEmitter{}, testIndex(), nil)

	ctx := ctxmiddleware.SetBatchID(context.Background(), "batch-ctx")
	claim := testClaim("clm-ctx", "John Smith", "2024-03-05")
	_, err := p.ProcessClaim(ctx, &claim)
	require.NoError(t, err)

	require.Len(t, audit.rows, 1)
	assert.Equal(t, "batch-ctx", audit.rows[0].batchID)
}

func TestReportStoreEvictsExpired(t *testing.T) {
	store := NewReportStore(50 * time.Millisecond)

	old := &models.BatchReport{BatchID: "old", FinishedAt: time.Now().UTC().Add(-time.Minute)}
	store.Put(old)

	fresh := &models.BatchReport{BatchID: "fresh", FinishedAt: time.Now().UTC()}
	store.Put(fresh)

	_, ok := store.Get("old")
	assert.False(t, ok)
	_, ok = store.Get("fresh")
	assert.True(t, ok)
	assert.Equal(t, 1, store.Len())
}
