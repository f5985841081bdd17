package application

import (
	"context"
	"time"

	"valutatrade-hub/internal/domain"

	"github.com/shopspring/decimal"
)

// RateSource is one external quote provider. Fetch reports
// domain.ErrUnsupportedPair for pairs outside the provider's coverage and
// domain.ErrSourceUnavailable for network/decode failures. Sources never
// retry internally; retry policy belongs to the caller.
type RateSource interface {
	Name() string
	Fetch(ctx context.Context, pair domain.Pair) (domain.Quote, error)
}

// Storage is the persistence gateway. Implementations wrap I/O failures
// with domain.ErrStorageUnavailable.
type Storage interface {
	LoadWallets(ctx context.Context) ([]*domain.Wallet, error)
	SaveWallet(ctx context.Context, w *domain.Wallet) error
	LoadRateSnapshot(ctx context.Context) ([]domain.CachedRate, error)
	SaveRateSnapshot(ctx context.Context, rates []domain.CachedRate) error
	AppendHistory(ctx context.Context, e domain.RateHistoryEntry) error
}

// TradeEvent is published after a trade has been committed.
type TradeEvent struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Side       string          `json:"side"`
	Currency   string          `json:"currency"`
	Amount     decimal.Decimal `json:"amount"`
	Rate       decimal.Decimal `json:"rate"`
	USDAmount  decimal.Decimal `json:"usd_amount"`
	ExecutedAt time.Time       `json:"executed_at"`
}

type TradePublisher interface {
	PublishTrade(ctx context.Context, ev TradeEvent) error
}

// NoopPublisher drops events; used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishTrade(context.Context, TradeEvent) error { return nil }

// StatsRecorder receives operational counters. The metrics package provides
// the Prometheus implementation.
type StatsRecorder interface {
	RecordRefreshPass(d time.Duration, updated, failed int)
	RecordRefreshFailure(pair domain.Pair)
	RecordTrade(side, currency string)
	RecordTradeError(side, reason string)
}

type NoopStats struct{}

func (NoopStats) RecordRefreshPass(time.Duration, int, int) {}
func (NoopStats) RecordRefreshFailure(domain.Pair)          {}
func (NoopStats) RecordTrade(string, string)                {}
func (NoopStats) RecordTradeError(string, string)           {}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }
