package processor

import (
	"sync"
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
)

// DefaultReportRetention bounds how long completed batch reports stay
// available to the report route.
const DefaultReportRetention = time.Hour

// ReportStore retains completed batch reports in memory, keyed by batch
// id. Reports older than the retention window are evicted on each insert.
type ReportStore struct {
	mu        sync.RWMutex
	retention time.Duration
	reports   map[string]*models.BatchReport
}

// NewReportStore creates a report store with the given retention window
func NewReportStore(retention time.Duration) *ReportStore {
	if retention <= 0 {
		retention = DefaultReportRetention
	}
	return &ReportStore{
		retention: retention,
		reports:   make(map[string]*models.BatchReport),
	}
}

// Put retains a completed report and evicts expired ones
func (s *ReportStore) Put(report *models.BatchReport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-s.retention)
	for id, r := range s.reports {
		if r.FinishedAt.Before(cutoff) {
			delete(s.reports, id)
		}
	}

	s.reports[report.BatchID] = report
}

// Get returns the retained report for a batch id
func (s *ReportStore) Get(batchID string) (*models.BatchReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, ok := s.reports[batchID]
	return report, ok
}

// Len returns the number of retained reports
func (s *ReportStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.reports)
}
