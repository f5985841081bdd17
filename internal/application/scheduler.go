package application

import (
	"context"
	"sync"
	"time"

	"valutatrade-hub/internal/domain"

	"go.uber.org/zap"
)

// RefreshScheduler drives periodic RefreshAll passes over a fixed pair
// universe, independent of trading activity. A pass still in flight causes
// the next tick to be skipped, never queued.
type RefreshScheduler struct {
	cache    *RateCache
	pairs    []domain.Pair
	interval time.Duration
	stats    StatsRecorder
	clock    Clock
	log      *zap.Logger

	// passMu is held for the duration of every pass, periodic or RunOnce.
	// Ticks probe it with TryLock so they skip instead of queueing.
	passMu sync.Mutex
}

type SchedulerOption func(*RefreshScheduler)

func WithSchedulerStats(s StatsRecorder) SchedulerOption {
	return func(rs *RefreshScheduler) { rs.stats = s }
}

func WithSchedulerClock(c Clock) SchedulerOption {
	return func(rs *RefreshScheduler) { rs.clock = c }
}

func WithSchedulerLogger(l *zap.Logger) SchedulerOption {
	return func(rs *RefreshScheduler) { rs.log = l }
}

func NewRefreshScheduler(cache *RateCache, pairs []domain.Pair, interval time.Duration, opts ...SchedulerOption) *RefreshScheduler {
	rs := &RefreshScheduler{
		cache:    cache,
		pairs:    pairs,
		interval: interval,
	}
	for _, opt := range opts {
		opt(rs)
	}
	if rs.stats == nil {
		rs.stats = NoopStats{}
	}
	if rs.clock == nil {
		rs.clock = realClock{}
	}
	if rs.log == nil {
		rs.log = zap.NewNop()
	}
	return rs
}

// Start runs the periodic loop until ctx is cancelled.
func (rs *RefreshScheduler) Start(ctx context.Context) {
	t := time.NewTicker(rs.interval)
	defer t.Stop()

	rs.log.Info("refresh scheduler started",
		zap.Duration("interval", rs.interval),
		zap.Int("pairs", len(rs.pairs)))
	for {
		select {
		case <-ctx.Done():
			rs.log.Info("refresh scheduler stopped")
			return
		case <-t.C:
			if !rs.passMu.TryLock() {
				rs.log.Warn("refresh pass still in flight, tick skipped")
				continue
			}
			go func() {
				defer rs.passMu.Unlock()
				rs.runPass(ctx)
			}()
		}
	}
}

// RunOnce executes a single refresh pass synchronously with the same
// semantics as a periodic tick. It blocks until any in-flight pass
// finishes and does not affect the periodic cadence.
func (rs *RefreshScheduler) RunOnce(ctx context.Context) (RefreshReport, error) {
	rs.passMu.Lock()
	defer rs.passMu.Unlock()
	return rs.runPass(ctx)
}

// runPass must be called with passMu held.
func (rs *RefreshScheduler) runPass(ctx context.Context) (RefreshReport, error) {
	start := rs.clock.Now()
	report, err := rs.cache.RefreshAll(ctx, rs.pairs)
	dur := rs.clock.Now().Sub(start)

	rs.stats.RecordRefreshPass(dur, len(report.Updated), len(report.Failed))
	for _, pair := range report.Failed {
		rs.stats.RecordRefreshFailure(pair)
	}
	if err != nil {
		rs.log.Warn("refresh pass incomplete",
			zap.Int("updated", len(report.Updated)),
			zap.Int("failed", len(report.Failed)),
			zap.Error(err))
		return report, err
	}
	rs.log.Info("refresh pass done",
		zap.Int("updated", len(report.Updated)),
		zap.Int("failed", len(report.Failed)),
		zap.Duration("duration", dur))
	return report, nil
}
