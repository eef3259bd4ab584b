package lineitems

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// LineItemRow is one ledger line item: a service date and procedure code
// belonging to an order. Dates are stored exactly as extracted; parsing
// happens at index build time so unparseable values can be dropped there.
type LineItemRow struct {
	OrderID       string         `db:"order_id"`
	DateOfService sql.NullString `db:"date_of_service"`
	CPTCode       sql.NullString `db:"cpt_code"`
}

// Repository handles reference-ledger line item persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// ListAll returns every line item grouped by order in insertion order.
func (r *Repository) ListAll(ctx context.Context) ([]LineItemRow, error) {
	ctx, span := tracing.StartSpan(ctx, "lineitems.Repository.ListAll")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("order_id", "date_of_service", "cpt_code")
	sb.From("reference_line_items")
	sb.OrderBy("order_id ASC", "id ASC")

	query, args := sb.Build()
	var rows []LineItemRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list reference line items")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list reference line items: %v", err)
	}
	return rows, nil
}

// InsertBatch inserts line items, skipping rows already present. Returns the
// number of rows sent (duplicates are dropped by the database, not counted
// separately).
func (r *Repository) InsertBatch(ctx context.Context, rows []LineItemRow) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "lineitems.Repository.InsertBatch")
	defer span.End()

	if len(rows) == 0 {
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
	for i := 0; i < len(rows); i += batchSize {
		end := i + batchSize
		if end > len(rows) {
			end = len(rows)
		}

		ib := database.NewInsertBuilder()
		ib = ib.InsertInto("reference_line_items")
		ib = ib.Cols("order_id", "date_of_service", "cpt_code", "created_at")
		for _, row := range rows[i:end] {
			ib = ib.Values(row.OrderID, row.DateOfService, row.CPTCode, now)
		}
		ib = ib.OnConflictDoNothing()

		query, args := ib.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"batch_start": i,
				"batch_size":  end - i,
			}).Error("Failed to insert reference line items")
			return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert reference line items")
		}
		written += end - i
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to commit reference line item insert")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit")
	}

	return written, nil
}

// Count returns the number of ledger line items.
func (r *Repository) Count(ctx context.Context) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "lineitems.Repository.Count")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("reference_line_items")

	query, args := sb.Build()
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count reference line items")
		return 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to count reference line items: %v", err)
	}
	return count, nil
}
