// Package refindex builds and serves the in-memory reference ledger that
// claims are matched against. An Index is immutable once built: rebuilds
// construct a fresh Index from the ledger and atomically swap the served
// pointer, so matching never observes a partially built index.
package refindex

import (
	"time"

	"github.com/Ramsey-B/clover/internal/repositories/lineitems"
	"github.com/Ramsey-B/clover/pkg/dates"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalize"
)

// Stats describes what an index build saw and kept.
type Stats struct {
	Orders            int       `json:"orders"`
	OrdersWithDates   int       `json:"orders_with_dates"`
	LineItems         int       `json:"line_items"`
	DroppedDates      int       `json:"dropped_dates"`
	OrphanedLineItems int       `json:"orphaned_line_items"`
	DistinctCPTCodes  int       `json:"distinct_cpt_codes"`
	BuiltAt           time.Time `json:"built_at"`
	BuildDurationMS   int64     `json:"build_duration_ms"`
	Source            string    `json:"source"`
}

// Index holds every ledger order with its comparison fingerprint, parsed
// service dates, and procedure code set. Read-only after Build.
type Index struct {
	orders []*models.OrderRecord
	byID   map[string]*models.OrderRecord
	stats  Stats
}

// Build assembles an index from ledger rows. Orders keep their given order;
// that order is the candidate scan order, so it must be deterministic.
//
// Line items referencing an unknown order are dropped. Service dates that
// fail to parse are dropped without failing the order; orders can end up
// with zero dates and stay in the index (they just never satisfy the
// date-proximity gate). Procedure codes are trimmed and deduplicated.
func Build(orderRows []models.OrderRecord, itemRows []lineitems.LineItemRow, source string) *Index {
	start := time.Now()

	idx := &Index{
		orders: make([]*models.OrderRecord, 0, len(orderRows)),
		byID:   make(map[string]*models.OrderRecord, len(orderRows)),
	}

	for i := range orderRows {
		order := orderRows[i]
		order.NormalizedName = normalize.Fingerprint(order.DisplayName())
		order.DatesOfService = nil
		order.CPTCodes = make(map[string]struct{})

		idx.orders = append(idx.orders, &order)
		idx.byID[order.OrderID] = &order
	}

	stats := Stats{
		Orders:    len(idx.orders),
		LineItems: len(itemRows),
		Source:    source,
	}

	for _, item := range itemRows {
		order, ok := idx.byID[item.OrderID]
		if !ok {
			stats.OrphanedLineItems++
			continue
		}

		if item.DateOfService.Valid {
			if parsed, ok := dates.Parse(item.DateOfService.String); ok {
				order.DatesOfService = append(order.DatesOfService, parsed)
			} else {
				stats.DroppedDates++
			}
		}

		if item.CPTCode.Valid {
			if code := normalize.Trim(item.CPTCode.String); code != "" {
				order.CPTCodes[code] = struct{}{}
			}
		}
	}

	distinctCPT := make(map[string]struct{})
	for _, order := range idx.orders {
		if len(order.DatesOfService) > 0 {
			stats.OrdersWithDates++
		}
		for code := range order.CPTCodes {
			distinctCPT[code] = struct{}{}
		}
	}
	stats.DistinctCPTCodes = len(distinctCPT)
	stats.BuiltAt = time.Now().UTC()
	stats.BuildDurationMS = time.Since(start).Milliseconds()

	idx.stats = stats
	return idx
}

// Orders returns the scan-order slice backing the index. Callers must treat
// it as read-only.
func (idx *Index) Orders() []*models.OrderRecord {
	return idx.orders
}

// Get returns the order with the given id.
func (idx *Index) Get(orderID string) (*models.OrderRecord, bool) {
	order, ok := idx.byID[orderID]
	return order, ok
}

// Len returns the number of orders in the index.
func (idx *Index) Len() int {
	return len(idx.orders)
}

// Stats returns the build statistics.
func (idx *Index) Stats() Stats {
	return idx.stats
}
