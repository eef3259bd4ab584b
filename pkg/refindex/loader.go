package refindex

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/internal/repositories/lineitems"
	"github.com/Ramsey-B/clover/internal/repositories/orders"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Loader builds an Index from the ledger tables.
type Loader struct {
	ordersRepo    *orders.Repository
	lineItemsRepo *lineitems.Repository
	logger        ectologger.Logger
}

func NewLoader(ordersRepo *orders.Repository, lineItemsRepo *lineitems.Repository, logger ectologger.Logger) *Loader {
	return &Loader{
		ordersRepo:    ordersRepo,
		lineItemsRepo: lineItemsRepo,
		logger:        logger,
	}
}

// Load reads the full ledger and builds a fresh Index.
func (l *Loader) Load(ctx context.Context) (*Index, error) {
	ctx, span := tracing.StartSpan(ctx, "refindex.Loader.Load")
	defer span.End()

	orderRows, err := l.ordersRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	itemRows, err := l.lineItemsRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	idx := Build(orderRows, itemRows, "postgres")

	stats := idx.Stats()
	l.logger.WithContext(ctx).WithFields(map[string]any{
		"orders":              stats.Orders,
		"orders_with_dates":   stats.OrdersWithDates,
		"line_items":          stats.LineItems,
		"dropped_dates":       stats.DroppedDates,
		"orphaned_line_items": stats.OrphanedLineItems,
		"distinct_cpt_codes":  stats.DistinctCPTCodes,
		"build_duration_ms":   stats.BuildDurationMS,
	}).Info("Built reference index")

	return idx, nil
}
