package refindex

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	rebuildLockKey = "clover:refindex:rebuild"
	rebuildLockTTL = 5 * time.Minute
)

// ErrRebuildInProgress is returned when another rebuild holds the lock.
var ErrRebuildInProgress = errors.New("index rebuild already in progress")

// ErrIndexNotReady is returned when matching is attempted before the first
// successful load.
var ErrIndexNotReady = errors.New("reference index not loaded")

// Locker serializes rebuilds across instances. Implemented by the redis
// client; nil disables locking.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// Manager owns the served Index pointer. Reads are lock-free; Rebuild loads
// a fresh Index and swaps it in. A failed rebuild keeps the previous index
// serving.
type Manager struct {
	loader  *Loader
	logger  ectologger.Logger
	locker  Locker
	current atomic.Pointer[Index]
}

func NewManager(loader *Loader, logger ectologger.Logger, locker Locker) *Manager {
	return &Manager{
		loader: loader,
		logger: logger,
		locker: locker,
	}
}

// Current returns the served index, or ErrIndexNotReady before first load.
func (m *Manager) Current() (*Index, error) {
	idx := m.current.Load()
	if idx == nil {
		return nil, ErrIndexNotReady
	}
	return idx, nil
}

// Ready reports whether an index has been loaded.
func (m *Manager) Ready() bool {
	return m.current.Load() != nil
}

// Rebuild loads a fresh index from the ledger and swaps it in. Concurrent
// rebuilds collapse: callers that lose the lock get ErrRebuildInProgress.
func (m *Manager) Rebuild(ctx context.Context) (*Index, error) {
	ctx, span := tracing.StartSpan(ctx, "refindex.Manager.Rebuild")
	defer span.End()

	if m.locker != nil {
		acquired, err := m.locker.AcquireLock(ctx, rebuildLockKey, rebuildLockTTL)
		if err != nil {
			m.logger.WithContext(ctx).WithError(err).Error("Failed to acquire index rebuild lock")
			return nil, err
		}
		if !acquired {
			return nil, ErrRebuildInProgress
		}
		defer func() {
			if err := m.locker.ReleaseLock(ctx, rebuildLockKey); err != nil {
				m.logger.WithContext(ctx).WithError(err).Warn("Failed to release index rebuild lock")
			}
		}()
	}

	start := time.Now()

	idx, err := m.loader.Load(ctx)
	if err != nil {
		metrics.RecordIndexBuild("failure", 0, time.Since(start).Seconds())
		m.logger.WithContext(ctx).WithError(err).Error("Index rebuild failed; previous index stays in service")
		return nil, err
	}

	m.current.Store(idx)
	metrics.RecordIndexBuild("success", idx.Len(), time.Since(start).Seconds())

	return idx, nil
}
