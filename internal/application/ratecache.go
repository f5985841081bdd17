package application

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sort"
	"sync"
	"time"

	"valutatrade-hub/internal/domain"

	"go.uber.org/zap"
)

// RefreshReport summarizes one refresh pass over a pair set.
type RefreshReport struct {
	Updated  []domain.Pair
	Failed   []domain.Pair
	BySource map[string]int
}

// RateCache owns the latest known rate per pair plus the rate-history log.
// Sources are held in priority order; the cache never inspects which
// concrete provider it is talking to.
type RateCache struct {
	mu      sync.RWMutex
	entries map[domain.Pair]domain.CachedRate

	sources []RateSource
	storage Storage
	ttl     time.Duration
	clock   Clock
	log     *zap.Logger
}

type CacheOption func(*RateCache)

func WithCacheClock(c Clock) CacheOption        { return func(rc *RateCache) { rc.clock = c } }
func WithCacheLogger(l *zap.Logger) CacheOption { return func(rc *RateCache) { rc.log = l } }

func NewRateCache(sources []RateSource, storage Storage, ttl time.Duration, opts ...CacheOption) *RateCache {
	rc := &RateCache{
		entries: map[domain.Pair]domain.CachedRate{},
		sources: sources,
		storage: storage,
		ttl:     ttl,
	}
	for _, opt := range opts {
		opt(rc)
	}
	if rc.clock == nil {
		rc.clock = realClock{}
	}
	if rc.log == nil {
		rc.log = zap.NewNop()
	}
	return rc
}

// TTL returns the configured staleness threshold.
func (rc *RateCache) TTL() time.Duration { return rc.ttl }

// Restore loads the last persisted snapshot into the cache. Entries restored
// this way keep their persisted UpdatedAt and become stale on the usual terms.
func (rc *RateCache) Restore(ctx context.Context) error {
	rates, err := rc.storage.LoadRateSnapshot(ctx)
	if err != nil {
		return err
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	for _, r := range rates {
		if !r.Rate.IsPositive() {
			continue
		}
		rc.entries[r.Pair] = r
	}
	return nil
}

// Get returns the cached rate for pair, refreshing it synchronously when the
// entry is missing or stale. On total source failure the last known entry is
// returned even if stale; a reverse-pair entry serves as a final fallback.
func (rc *RateCache) Get(ctx context.Context, pair domain.Pair) (domain.CachedRate, error) {
	if !domain.ValidatePair(string(pair)) {
		return domain.CachedRate{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedPair, pair)
	}

	now := rc.clock.Now()
	rc.mu.RLock()
	entry, ok := rc.entries[pair]
	rc.mu.RUnlock()
	if ok && !entry.Stale(now, rc.ttl) {
		return entry, nil
	}

	refreshed, err := rc.refreshPair(ctx, pair)
	if err == nil {
		return refreshed, nil
	}

	// Availability over freshness: fall back to the stale entry, then to the
	// inverse of the reverse pair. Callers that need guaranteed freshness
	// must check UpdatedAt themselves.
	if ok {
		return entry, nil
	}
	rc.mu.RLock()
	rev, revOK := rc.entries[pair.Reverse()]
	rc.mu.RUnlock()
	if revOK {
		return rev.Inverse(), nil
	}
	return domain.CachedRate{}, fmt.Errorf("%w: %s", domain.ErrNoRateAvailable, pair)
}

// refreshPair tries sources in priority order and accepts the first success.
func (rc *RateCache) refreshPair(ctx context.Context, pair domain.Pair) (domain.CachedRate, error) {
	var lastErr error
	for _, src := range rc.sources {
		q, err := src.Fetch(ctx, pair)
		if err != nil {
			if !errors.Is(err, domain.ErrUnsupportedPair) {
				rc.log.Warn("source fetch failed",
					zap.String("source", src.Name()),
					zap.String("pair", string(pair)),
					zap.Error(err))
			}
			lastErr = err
			continue
		}
		entry, err := rc.accept(ctx, q)
		if err != nil {
			lastErr = err
			continue
		}
		rc.persistSnapshot(ctx)
		return entry, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: no sources configured", domain.ErrNoRateAvailable)
	}
	return domain.CachedRate{}, lastErr
}

// RefreshAll queries every source for every pair. The first-priority success
// per pair updates the cache; every success is appended to history for audit.
// Pairs with no successful source keep their previous entry and are reported
// as failed, not fatal.
func (rc *RateCache) RefreshAll(ctx context.Context, pairs []domain.Pair) (RefreshReport, error) {
	report := RefreshReport{BySource: map[string]int{}}
	for _, pair := range pairs {
		select {
		case <-ctx.Done():
			// A cancelled pass leaves already-updated pairs updated.
			return report, ctx.Err()
		default:
		}
		if rc.refreshPairAudited(ctx, pair, &report) {
			report.Updated = append(report.Updated, pair)
		} else {
			report.Failed = append(report.Failed, pair)
		}
	}
	if err := rc.storage.SaveRateSnapshot(ctx, rc.List()); err != nil {
		return report, err
	}
	return report, nil
}

func (rc *RateCache) refreshPairAudited(ctx context.Context, pair domain.Pair, report *RefreshReport) bool {
	accepted := false
	for _, src := range rc.sources {
		q, err := src.Fetch(ctx, pair)
		if err != nil {
			if errors.Is(err, domain.ErrUnsupportedPair) {
				continue
			}
			rc.log.Warn("source fetch failed",
				zap.String("source", src.Name()),
				zap.String("pair", string(pair)),
				zap.Error(err))
			continue
		}
		if !accepted {
			if _, err := rc.accept(ctx, q); err != nil {
				rc.log.Warn("quote rejected", zap.String("pair", string(pair)), zap.Error(err))
				continue
			}
			accepted = true
			report.BySource[src.Name()]++
			continue
		}
		// Lower-priority success: history only, cache keeps the winner.
		// The audit log gets the same validation as the cached quote.
		if err := q.Validate(); err != nil {
			rc.log.Warn("quote rejected", zap.String("pair", string(pair)), zap.Error(err))
			continue
		}
		rc.appendHistory(ctx, q)
	}
	return accepted
}

// accept validates the quote, appends it to history and swaps the cache entry.
// UpdatedAt is set at acceptance time; an entry never moves backwards, so a
// refresh that completed earlier cannot overwrite a later one.
func (rc *RateCache) accept(ctx context.Context, q domain.Quote) (domain.CachedRate, error) {
	if err := q.Validate(); err != nil {
		return domain.CachedRate{}, err
	}
	rc.appendHistory(ctx, q)

	entry := domain.CachedRate{
		Pair:      q.Pair,
		Rate:      q.Rate,
		UpdatedAt: rc.clock.Now(),
		Source:    q.Source,
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if cur, ok := rc.entries[q.Pair]; ok && entry.UpdatedAt.Before(cur.UpdatedAt) {
		return cur, nil
	}
	rc.entries[q.Pair] = entry
	return entry, nil
}

func (rc *RateCache) appendHistory(ctx context.Context, q domain.Quote) {
	if err := rc.storage.AppendHistory(ctx, domain.NewRateHistoryEntry(q)); err != nil {
		rc.log.Warn("append history failed", zap.String("pair", string(q.Pair)), zap.Error(err))
	}
}

func (rc *RateCache) persistSnapshot(ctx context.Context) {
	if err := rc.storage.SaveRateSnapshot(ctx, rc.List()); err != nil {
		rc.log.Warn("save rate snapshot failed", zap.Error(err))
	}
}

// All returns a restartable sequence over a point-in-time snapshot of the
// cache; concurrent refreshes do not alter a sequence already produced.
func (rc *RateCache) All() iter.Seq[domain.CachedRate] {
	snapshot := rc.List()
	return func(yield func(domain.CachedRate) bool) {
		for _, r := range snapshot {
			if !yield(r) {
				return
			}
		}
	}
}

// List returns every known entry sorted by pair.
func (rc *RateCache) List() []domain.CachedRate {
	rc.mu.RLock()
	out := make([]domain.CachedRate, 0, len(rc.entries))
	for _, r := range rc.entries {
		out = append(out, r)
	}
	rc.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Pair < out[j].Pair })
	return out
}
