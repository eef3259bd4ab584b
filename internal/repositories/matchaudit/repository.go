package matchaudit

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const matchResultsTable = "match_results"

// MatchResultRow is one persisted match decision.
type MatchResultRow struct {
	ID                    string                              `db:"id"`
	ClaimID               string                              `db:"claim_id"`
	BatchID               string                              `db:"batch_id"`
	ClaimName             string                              `db:"claim_name"`
	NormalizedName        string                              `db:"normalized_name"`
	Status                string                              `db:"status"`
	Reason                string                              `db:"reason"`
	OrderID               sql.NullString                      `db:"order_id"`
	FileMakerRecordNumber sql.NullString                      `db:"filemaker_record_number"`
	Scores                database.JSONB[*models.MatchScores] `db:"scores"`
	CreatedAt             time.Time                           `db:"created_at"`
}

var matchResultStruct = database.NewStruct(new(MatchResultRow))

// Entry is the API projection of an audit row. Unlike batch reports, audit
// rows do not expire, so this is what the results route serves.
type Entry struct {
	ID                    string              `json:"id"`
	ClaimID               string              `json:"claim_id"`
	BatchID               string              `json:"batch_id"`
	ClaimName             string              `json:"claim_name"`
	NormalizedName        string              `json:"normalized_name"`
	Status                string              `json:"status"`
	Reason                string              `json:"reason,omitempty"`
	OrderID               string              `json:"order_id,omitempty"`
	FileMakerRecordNumber string              `json:"filemaker_record_number,omitempty"`
	Scores                *models.MatchScores `json:"scores,omitempty"`
	CreatedAt             time.Time           `json:"created_at"`
}

// ToEntry converts a database row to its API projection
func ToEntry(row *MatchResultRow) Entry {
	return Entry{
		ID:                    row.ID,
		ClaimID:               row.ClaimID,
		BatchID:               row.BatchID,
		ClaimName:             row.ClaimName,
		NormalizedName:        row.NormalizedName,
		Status:                row.Status,
		Reason:                row.Reason,
		OrderID:               row.OrderID.String,
		FileMakerRecordNumber: row.FileMakerRecordNumber.String,
		Scores:                row.Scores.GetValue(),
		CreatedAt:             row.CreatedAt,
	}
}

// ToEntries converts a slice of database rows to API projections
func ToEntries(rows []MatchResultRow) []Entry {
	entries := make([]Entry, len(rows))
	for i := range rows {
		entries[i] = ToEntry(&rows[i])
	}
	return entries
}

func newRow(claimID, batchID string, result *models.MatchResult) *MatchResultRow {
	row := &MatchResultRow{
		ID:        uuid.NewString(),
		ClaimID:   claimID,
		BatchID:   batchID,
		Status:    string(result.Status),
		Reason:    result.Reason,
		Scores:    database.JSONB[*models.MatchScores]{Data: result.Scores},
		CreatedAt: time.Now().UTC(),
	}
	if result.Matched() {
		row.OrderID = sql.NullString{String: result.OrderID, Valid: true}
		row.FileMakerRecordNumber = sql.NullString{String: result.FileMakerRecordNumber, Valid: true}
	}
	if result.Scores != nil {
		row.ClaimName = result.Scores.ClaimNameRaw
		row.NormalizedName = result.Scores.ClaimNameNormalized
	}
	return row
}

// Repository persists the match audit trail
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Create stores the decision for one claim. Audit rows are append-only;
// reprocessing a claim writes a new row rather than updating the old one.
func (r *Repository) Create(ctx context.Context, claimID, batchID string, result *models.MatchResult) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "matchaudit.Repository.Create")
	defer span.End()

	row := newRow(claimID, batchID, result)

	ib := matchResultStruct.InsertInto(matchResultsTable, row)
	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"claim_id": claimID,
			"batch_id": batchID,
			"status":   result.Status,
		}).Error("Failed to persist match result")
		return "", httperror.NewHTTPError(http.StatusInternalServerError, "failed to persist match result")
	}

	return row.ID, nil
}

// ListByBatch returns the audit rows for a batch in decision order.
func (r *Repository) ListByBatch(ctx context.Context, batchID string) ([]MatchResultRow, error) {
	ctx, span := tracing.StartSpan(ctx, "matchaudit.Repository.ListByBatch")
	defer span.End()

	sb := matchResultStruct.SelectFrom(matchResultsTable)
	sb.Where(sb.Equal("batch_id", batchID))
	sb.OrderBy("created_at ASC", "id ASC")

	query, args := sb.Build()
	var rows []MatchResultRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"batch_id": batchID}).Error("Failed to list match results")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list match results: %v", err)
	}
	return rows, nil
}
