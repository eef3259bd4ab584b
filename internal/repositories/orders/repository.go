package orders

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Repository handles reference-ledger order persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// ListAll returns every ledger order in a stable scan order: first-import
// order with order_id as the tiebreak. Index rebuilds depend on this
// ordering being the same run to run.
func (r *Repository) ListAll(ctx context.Context) ([]models.OrderRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "orders.Repository.ListAll")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("order_id", "filemaker_record_number", "patient_last_name", "patient_first_name", "patient_name")
	sb.From("reference_orders")
	sb.OrderBy("created_at ASC", "order_id ASC")

	query, args := sb.Build()
	var orders []models.OrderRecord
	if err := r.db.SelectContext(ctx, &orders, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list reference orders")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list reference orders: %v", err)
	}
	return orders, nil
}

// UpsertBatch inserts or refreshes ledger orders keyed on order_id. Returns
// the number of rows written.
func (r *Repository) UpsertBatch(ctx context.Context, records []models.OrderRecord) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "orders.Repository.UpsertBatch")
	defer span.End()

	if len(records) == 0 {
		return 0, nil
	}

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	written := 0

	const batchSize = 500
	for i := 0; i < len(records); i += batchSize {
		end := i + batchSize
		if end > len(records) {
			end = len(records)
		}

		ib := database.NewInsertBuilder()
		ib = ib.InsertInto("reference_orders")
		ib = ib.Cols("order_id", "filemaker_record_number", "patient_last_name", "patient_first_name", "patient_name", "created_at", "updated_at")
		for _, rec := range records[i:end] {
			ib = ib.Values(rec.OrderID, rec.FileMakerRecordNumber, rec.PatientLastName, rec.PatientFirstName, rec.PatientName, now, now)
		}
		ub := ib.OnConflict("order_id")
		ub.Set(
			ub.Assign("filemaker_record_number", database.Excluded("filemaker_record_number")),
			ub.Assign("patient_last_name", database.Excluded("patient_last_name")),
			ub.Assign("patient_first_name", database.Excluded("patient_first_name")),
			ub.Assign("patient_name", database.Excluded("patient_name")),
			ub.Assign("updated_at", database.Excluded("updated_at")),
		)

		query, args := ib.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"batch_start": i,
				"batch_size":  end - i,
			}).Error("Failed to upsert reference orders")
			return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert reference orders")
		}
		written += end - i
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to commit reference order upsert")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit")
	}

	return written, nil
}

// Count returns the number of ledger orders.
func (r *Repository) Count(ctx context.Context) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "orders.Repository.Count")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("reference_orders")

	query, args := sb.Build()
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count reference orders")
		return 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to count reference orders: %v", err)
	}
	return count, nil
}
