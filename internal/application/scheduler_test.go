package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"valutatrade-hub/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type recordingStats struct {
	mu       sync.Mutex
	passes   int
	failures []domain.Pair
}

func (s *recordingStats) RecordRefreshPass(time.Duration, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passes++
}

func (s *recordingStats) RecordRefreshFailure(pair domain.Pair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, pair)
}

func (s *recordingStats) RecordTrade(string, string)      {}
func (s *recordingStats) RecordTradeError(string, string) {}

func (s *recordingStats) passCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.passes
}

// blockingSource parks every Fetch until released.
type blockingSource struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSource) Name() string { return "blocking" }

func (b *blockingSource) Fetch(context.Context, domain.Pair) (domain.Quote, error) {
	b.entered <- struct{}{}
	<-b.release
	return domain.Quote{}, domain.ErrSourceUnavailable
}

func Test_RefreshScheduler_RunOnce(t *testing.T) {
	t.Parallel()

	stats := &recordingStats{}
	src := newScriptedSource("coingecko", map[domain.Pair]decimal.Decimal{"BTC/USD": d("50000")})
	cache := newTestCache(newFakeClock(t0), newMemStorage(), src)
	sched := NewRefreshScheduler(cache, []domain.Pair{"BTC/USD", "SOL/USD"}, time.Hour,
		WithSchedulerStats(stats), WithSchedulerClock(newFakeClock(t0)))

	report, err := sched.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, []domain.Pair{"BTC/USD"}, report.Updated)
	require.Equal(t, []domain.Pair{"SOL/USD"}, report.Failed)
	require.Equal(t, 1, stats.passCount())
	require.Equal(t, []domain.Pair{"SOL/USD"}, stats.failures)
}

func Test_RefreshScheduler_PeriodicPasses(t *testing.T) {
	t.Parallel()

	stats := &recordingStats{}
	src := newScriptedSource("coingecko", map[domain.Pair]decimal.Decimal{"BTC/USD": d("50000")})
	cache := newTestCache(newFakeClock(t0), newMemStorage(), src)
	sched := NewRefreshScheduler(cache, []domain.Pair{"BTC/USD"}, 10*time.Millisecond,
		WithSchedulerStats(stats))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return stats.passCount() >= 2 },
		2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop on cancellation")
	}
}

func Test_RefreshScheduler_TickDuringManualPassIsSkipped(t *testing.T) {
	t.Parallel()

	src := &blockingSource{entered: make(chan struct{}, 64), release: make(chan struct{})}
	cache := newTestCache(newFakeClock(t0), newMemStorage(), src)
	sched := NewRefreshScheduler(cache, []domain.Pair{"BTC/USD"}, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go sched.Start(ctx)

	done := make(chan struct{})
	go func() {
		_, _ = sched.RunOnce(context.Background())
		close(done)
	}()
	<-src.entered

	// Let several ticks fire while the manual pass is parked in the source.
	time.Sleep(60 * time.Millisecond)
	cancel()

	close(src.release)
	<-done

	// Ticks that fired during the manual pass are skipped, never queued:
	// nothing reaches the source after it completes.
	select {
	case <-src.entered:
		t.Fatal("a pass queued up behind the manual refresh")
	case <-time.After(100 * time.Millisecond):
	}
}

func Test_RefreshScheduler_SkipsTickWhileInFlight(t *testing.T) {
	t.Parallel()

	src := &blockingSource{entered: make(chan struct{}, 64), release: make(chan struct{})}
	cache := newTestCache(newFakeClock(t0), newMemStorage(), src)
	sched := NewRefreshScheduler(cache, []domain.Pair{"BTC/USD"}, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Start(ctx)

	// First tick enters the source and parks there.
	<-src.entered

	// Later ticks must be skipped, not stacked: nothing else reaches Fetch.
	select {
	case <-src.entered:
		t.Fatal("second pass started while the first was still in flight")
	case <-time.After(100 * time.Millisecond):
	}

	close(src.release)
}
