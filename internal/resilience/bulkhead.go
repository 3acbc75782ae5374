package resilience

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// Bulkhead bounds concurrent execution of a callable. It implements exactly
// one concurrency regime: goroutine callers acquiring via context.Context-
// bounded waits. There is no separate synchronous blocking variant.
type Bulkhead struct {
	name string
	cfg  BulkheadConfig
	sem  *semaphore.Weighted
	log  zerolog.Logger

	active        int64
	totalAccepted int64
	totalRejected int64
}

// NewBulkhead constructs a named bounded-concurrency pool.
func NewBulkhead(name string, cfg BulkheadConfig, log zerolog.Logger) *Bulkhead {
	if err := cfg.Validate(); err != nil {
		log.Warn().Str("bulkhead", name).Err(err).Msg("bulkhead config invalid, using as-is")
	}
	return &Bulkhead{
		name: name,
		cfg:  cfg,
		sem:  semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		log:  log.With().Str("component", "bulkhead").Str("bulkhead", name).Logger(),
	}
}

// Execute acquires a slot (waiting at most cfg.Timeout), runs fn, and
// releases the slot on every exit path. On timeout it returns a
// *BulkheadFullError carrying the actual time spent waiting.
func (b *Bulkhead) Execute(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	waitCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	start := time.Now()
	if err := b.sem.Acquire(waitCtx, 1); err != nil {
		waited := time.Since(start)
		atomic.AddInt64(&b.totalRejected, 1)
		b.log.Warn().Dur("waited", waited).Msg("bulkhead full")
		return nil, &BulkheadFullError{Name: b.name, Timeout: b.cfg.Timeout, Waited: waited}
	}
	defer b.sem.Release(1)

	atomic.AddInt64(&b.active, 1)
	atomic.AddInt64(&b.totalAccepted, 1)
	defer atomic.AddInt64(&b.active, -1)

	return fn(ctx)
}

// Name returns the bulkhead's registry key.
func (b *Bulkhead) Name() string { return b.name }

// BulkheadStats is a point-in-time snapshot of a pool's counters.
type BulkheadStats struct {
	MaxConcurrent   int
	ActiveCount     int64
	AvailableSlots  int64
	TotalAccepted   int64
	TotalRejected   int64
}

func (b *Bulkhead) Stats() BulkheadStats {
	active := atomic.LoadInt64(&b.active)
	return BulkheadStats{
		MaxConcurrent:  b.cfg.MaxConcurrent,
		ActiveCount:    active,
		AvailableSlots: int64(b.cfg.MaxConcurrent) - active,
		TotalAccepted:  atomic.LoadInt64(&b.totalAccepted),
		TotalRejected:  atomic.LoadInt64(&b.totalRejected),
	}
}
