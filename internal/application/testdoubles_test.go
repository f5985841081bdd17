package application

import (
	"context"
	"sync"
	"time"

	"valutatrade-hub/internal/domain"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// scriptedSource serves fixed rates per pair and records every Fetch call.
type scriptedSource struct {
	mu    sync.Mutex
	name  string
	rates map[domain.Pair]decimal.Decimal
	err   error
	calls []domain.Pair
	at    time.Time
}

func newScriptedSource(name string, rates map[domain.Pair]decimal.Decimal) *scriptedSource {
	return &scriptedSource{name: name, rates: rates, at: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (s *scriptedSource) Name() string { return s.name }

func (s *scriptedSource) Fetch(_ context.Context, pair domain.Pair) (domain.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, pair)
	if s.err != nil {
		return domain.Quote{}, s.err
	}
	rate, ok := s.rates[pair]
	if !ok {
		return domain.Quote{}, domain.ErrUnsupportedPair
	}
	return domain.Quote{Pair: pair, Rate: rate, ObservedAt: s.at, Source: s.name}, nil
}

func (s *scriptedSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *scriptedSource) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// memStorage is an in-memory Storage that records history appends and can be
// told to fail individual operations.
type memStorage struct {
	mu       sync.Mutex
	wallets  map[string]*domain.Wallet
	snapshot []domain.CachedRate
	history  []domain.RateHistoryEntry

	failSaveWallet   error
	failSaveSnapshot error
}

func newMemStorage() *memStorage {
	return &memStorage{wallets: map[string]*domain.Wallet{}}
}

func (m *memStorage) LoadWallets(context.Context) ([]*domain.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Wallet, 0, len(m.wallets))
	for _, w := range m.wallets {
		out = append(out, w.Clone())
	}
	return out, nil
}

func (m *memStorage) SaveWallet(_ context.Context, w *domain.Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSaveWallet != nil {
		return m.failSaveWallet
	}
	m.wallets[w.UserID] = w.Clone()
	return nil
}

func (m *memStorage) LoadRateSnapshot(context.Context) ([]domain.CachedRate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.CachedRate(nil), m.snapshot...), nil
}

func (m *memStorage) SaveRateSnapshot(_ context.Context, rates []domain.CachedRate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSaveSnapshot != nil {
		return m.failSaveSnapshot
	}
	m.snapshot = append([]domain.CachedRate(nil), rates...)
	return nil
}

func (m *memStorage) AppendHistory(_ context.Context, e domain.RateHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, e)
	return nil
}

func (m *memStorage) historyFor(pair domain.Pair) []domain.RateHistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RateHistoryEntry
	for _, e := range m.history {
		if e.Pair == pair {
			out = append(out, e)
		}
	}
	return out
}

// fakeClock is a settable clock shared across goroutines.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// capturePublisher records published trade events.
type capturePublisher struct {
	mu     sync.Mutex
	events []TradeEvent
}

func (p *capturePublisher) PublishTrade(_ context.Context, ev TradeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *capturePublisher) all() []TradeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]TradeEvent(nil), p.events...)
}

// fixedRates implements Rates without touching any source.
type fixedRates struct {
	rates map[domain.Pair]decimal.Decimal
	err   error
	at    time.Time
}

func (f fixedRates) Get(_ context.Context, pair domain.Pair) (domain.CachedRate, error) {
	if f.err != nil {
		return domain.CachedRate{}, f.err
	}
	rate, ok := f.rates[pair]
	if !ok {
		return domain.CachedRate{}, domain.ErrNoRateAvailable
	}
	return domain.CachedRate{Pair: pair, Rate: rate, UpdatedAt: f.at, Source: "fixed"}, nil
}
