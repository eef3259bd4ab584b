// Package reference ingests ledger snapshots into Postgres. Snapshots are
// columnar exports of the upstream order system, one file for orders and one
// for their line items, read locally or downloaded from S3.
package reference

import (
	"context"
	"os"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/internal/repositories/lineitems"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// OrderStore persists ledger orders. Satisfied by orders.Repository.
type OrderStore interface {
	UpsertBatch(ctx context.Context, records []models.OrderRecord) (int, error)
}

// LineItemStore persists ledger line items. Satisfied by lineitems.Repository.
type LineItemStore interface {
	InsertBatch(ctx context.Context, rows []lineitems.LineItemRow) (int, error)
}

// Summary reports what an import read, wrote, and skipped.
type Summary struct {
	OrdersWritten    int   `json:"orders_written"`
	OrdersSkipped    int   `json:"orders_skipped"`
	LineItemsWritten int   `json:"line_items_written"`
	LineItemsSkipped int   `json:"line_items_skipped"`
	DurationMS       int64 `json:"duration_ms"`
}

// Importer loads ledger snapshots into the reference tables.
type Importer struct {
	orders    OrderStore
	lineItems LineItemStore
	logger    ectologger.Logger
}

func NewImporter(orders OrderStore, lineItems LineItemStore, logger ectologger.Logger) *Importer {
	return &Importer{
		orders:    orders,
		lineItems: lineItems,
		logger:    logger,
	}
}

// ImportFromFiles ingests local snapshot files. Unreadable files fail the
// import; unkeyable rows inside readable files are skipped and counted.
func (i *Importer) ImportFromFiles(ctx context.Context, ordersPath, lineItemsPath string) (*Summary, error) {
	ctx, span := tracing.StartSpan(ctx, "reference.Importer.ImportFromFiles")
	defer span.End()

	start := time.Now()
	summary := &Summary{}

	orders, skipped, err := ReadOrders(ordersPath)
	if err != nil {
		i.logger.WithContext(ctx).WithError(err).Errorf("Failed to read orders snapshot %s", ordersPath)
		return nil, err
	}
	summary.OrdersSkipped = skipped
	if skipped > 0 {
		i.logger.WithContext(ctx).WithField("skipped", skipped).Warn("Skipped orders rows with no order id")
	}

	items, skipped, err := ReadLineItems(lineItemsPath)
	if err != nil {
		i.logger.WithContext(ctx).WithError(err).Errorf("Failed to read line items snapshot %s", lineItemsPath)
		return nil, err
	}
	summary.LineItemsSkipped = skipped
	if skipped > 0 {
		i.logger.WithContext(ctx).WithField("skipped", skipped).Warn("Skipped line item rows with no order id")
	}

	written, err := i.orders.UpsertBatch(ctx, orders)
	if err != nil {
		return nil, err
	}
	summary.OrdersWritten = written

	written, err = i.lineItems.InsertBatch(ctx, items)
	if err != nil {
		return nil, err
	}
	summary.LineItemsWritten = written
	summary.DurationMS = time.Since(start).Milliseconds()

	metrics.RecordImportRows("reference_orders", "written", summary.OrdersWritten)
	metrics.RecordImportRows("reference_orders", "skipped", summary.OrdersSkipped)
	metrics.RecordImportRows("reference_line_items", "written", summary.LineItemsWritten)
	metrics.RecordImportRows("reference_line_items", "skipped", summary.LineItemsSkipped)

	i.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"orders_written":     summary.OrdersWritten,
		"orders_skipped":     summary.OrdersSkipped,
		"line_items_written": summary.LineItemsWritten,
		"line_items_skipped": summary.LineItemsSkipped,
		"duration_ms":        summary.DurationMS,
	}).Info("Ledger import completed")

	return summary, nil
}

// ImportFromS3 downloads both snapshots and ingests them. Temp files are
// removed before returning.
func (i *Importer) ImportFromS3(ctx context.Context, downloader *S3Downloader, ordersKey, lineItemsKey string) (*Summary, error) {
	ctx, span := tracing.StartSpan(ctx, "reference.Importer.ImportFromS3")
	defer span.End()

	ordersPath, err := downloader.Download(ctx, ordersKey)
	if err != nil {
		return nil, err
	}
	defer os.Remove(ordersPath)

	lineItemsPath, err := downloader.Download(ctx, lineItemsKey)
	if err != nil {
		return nil, err
	}
	defer os.Remove(lineItemsPath)

	return i.ImportFromFiles(ctx, ordersPath, lineItemsPath)
}
