package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"valutatrade-hub/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	SideBuy  = "buy"
	SideSell = "sell"

	usdCode = "USD"
)

// Rates is the slice of the rate cache the ledger needs. Get may trigger an
// on-demand refresh.
type Rates interface {
	Get(ctx context.Context, pair domain.Pair) (domain.CachedRate, error)
}

// TradeResult is the receipt for an executed trade.
type TradeResult struct {
	Wallet   *domain.Wallet
	Pair     domain.Pair
	Rate     decimal.Decimal
	Spent    decimal.Decimal
	Received decimal.Decimal
	// Before/After are the traded currency's balance around the trade.
	Before decimal.Decimal
	After  decimal.Decimal
}

// PortfolioReport values a wallet in a base currency. Currencies with no
// available rate are listed as unresolved instead of failing the whole sum.
type PortfolioReport struct {
	Base       string
	Total      decimal.Decimal
	Unresolved []string
}

// Ledger executes balance-mutating trades. It exclusively owns the wallet
// table; trades on the same user are serialized, different users proceed
// concurrently.
type Ledger struct {
	mu      sync.Mutex // guards wallets and locks maps
	wallets map[string]*domain.Wallet
	locks   map[string]*sync.Mutex

	rates   Rates
	storage Storage
	pub     TradePublisher
	stats   StatsRecorder
	clock   Clock
	log     *zap.Logger
}

type LedgerOption func(*Ledger)

func WithLedgerClock(c Clock) LedgerOption         { return func(l *Ledger) { l.clock = c } }
func WithLedgerLogger(lg *zap.Logger) LedgerOption { return func(l *Ledger) { l.log = lg } }
func WithPublisher(p TradePublisher) LedgerOption  { return func(l *Ledger) { l.pub = p } }
func WithLedgerStats(s StatsRecorder) LedgerOption { return func(l *Ledger) { l.stats = s } }

func NewLedger(rates Rates, storage Storage, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		wallets: map[string]*domain.Wallet{},
		locks:   map[string]*sync.Mutex{},
		rates:   rates,
		storage: storage,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.pub == nil {
		l.pub = NoopPublisher{}
	}
	if l.stats == nil {
		l.stats = NoopStats{}
	}
	if l.clock == nil {
		l.clock = realClock{}
	}
	if l.log == nil {
		l.log = zap.NewNop()
	}
	return l
}

// Restore loads the wallet table from storage.
func (l *Ledger) Restore(ctx context.Context) error {
	wallets, err := l.storage.LoadWallets(ctx)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, w := range wallets {
		l.wallets[w.UserID] = w
	}
	return nil
}

// Buy debits usdAmount USD and credits usdAmount/rate of currency, as one
// atomic wallet transition.
func (l *Ledger) Buy(ctx context.Context, userID, currency string, usdAmount decimal.Decimal) (TradeResult, error) {
	return l.trade(ctx, SideBuy, userID, currency, usdAmount)
}

// Sell debits amount of currency and credits amount*rate USD.
func (l *Ledger) Sell(ctx context.Context, userID, currency string, amount decimal.Decimal) (TradeResult, error) {
	return l.trade(ctx, SideSell, userID, currency, amount)
}

func (l *Ledger) trade(ctx context.Context, side, userID, currency string, amount decimal.Decimal) (TradeResult, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if !amount.IsPositive() {
		l.stats.RecordTradeError(side, "invalid_amount")
		return TradeResult{}, fmt.Errorf("%w: %s", domain.ErrInvalidAmount, amount)
	}
	pair, err := domain.NewPair(currency, usdCode)
	if err != nil {
		l.stats.RecordTradeError(side, "unknown_currency")
		return TradeResult{}, err
	}

	// Rate lookup may hit the network; never hold the user lock across it.
	rate, err := l.rates.Get(ctx, pair)
	if err != nil {
		l.stats.RecordTradeError(side, "no_rate")
		return TradeResult{}, err
	}

	var debitCode, creditCode string
	var debit, credit decimal.Decimal
	switch side {
	case SideBuy:
		debitCode, creditCode = usdCode, currency
		debit = amount
		credit = amount.DivRound(rate.Rate, domain.TradeScale)
	case SideSell:
		debitCode, creditCode = currency, usdCode
		debit = amount
		credit = amount.Mul(rate.Rate).Round(domain.TradeScale)
	default:
		return TradeResult{}, fmt.Errorf("unknown trade side %q", side)
	}
	if credit.IsZero() {
		// Would round below the smallest representable unit.
		l.stats.RecordTradeError(side, "invalid_amount")
		return TradeResult{}, fmt.Errorf("%w: %s %s at rate %s rounds to zero", domain.ErrInvalidAmount, amount, currency, rate.Rate)
	}

	userMu := l.userLock(userID)
	userMu.Lock()
	defer userMu.Unlock()

	wallet := l.wallet(userID)
	before := wallet.Balance(currency)

	next := wallet.Clone()
	if err := next.Withdraw(debitCode, debit); err != nil {
		l.stats.RecordTradeError(side, "insufficient_funds")
		return TradeResult{}, err
	}
	if err := next.Deposit(creditCode, credit); err != nil {
		return TradeResult{}, err
	}

	// Save-then-commit: a failed save is surfaced and the in-memory wallet is
	// left untouched, so no partial trade is ever observable.
	if err := l.storage.SaveWallet(ctx, next); err != nil {
		l.stats.RecordTradeError(side, "storage")
		return TradeResult{}, err
	}
	l.commit(next)

	l.stats.RecordTrade(side, currency)
	l.publish(ctx, side, userID, currency, amount, rate.Rate, debit, credit)

	res := TradeResult{
		Wallet:   next.Clone(),
		Pair:     pair,
		Rate:     rate.Rate,
		Spent:    debit,
		Received: credit,
		Before:   before,
		After:    next.Balance(currency),
	}
	return res, nil
}

// Deposit credits external funds to a user's wallet, creating it on first use.
func (l *Ledger) Deposit(ctx context.Context, userID, currency string, amount decimal.Decimal) (*domain.Wallet, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if !domain.IsSupportedCurrency(currency) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownCurrency, currency)
	}

	userMu := l.userLock(userID)
	userMu.Lock()
	defer userMu.Unlock()

	next := l.wallet(userID).Clone()
	if err := next.Deposit(currency, amount); err != nil {
		return nil, err
	}
	if err := l.storage.SaveWallet(ctx, next); err != nil {
		return nil, err
	}
	l.commit(next)
	return next.Clone(), nil
}

// PortfolioValue sums balance*rate over every wallet entry. Entries with no
// available rate are reported as unresolved rather than aborting the sum.
func (l *Ledger) PortfolioValue(ctx context.Context, userID, base string) (PortfolioReport, error) {
	base = strings.ToUpper(strings.TrimSpace(base))
	if !domain.IsSupportedCurrency(base) {
		return PortfolioReport{}, fmt.Errorf("%w: %s", domain.ErrUnknownCurrency, base)
	}

	userMu := l.userLock(userID)
	userMu.Lock()
	wallet := l.wallet(userID).Clone()
	userMu.Unlock()

	report := PortfolioReport{Base: base, Total: decimal.Zero}
	for _, code := range wallet.Currencies() {
		balance := wallet.Balance(code)
		if code == base {
			report.Total = report.Total.Add(balance)
			continue
		}
		pair, err := domain.NewPair(code, base)
		if err != nil {
			report.Unresolved = append(report.Unresolved, code)
			continue
		}
		rate, err := l.rates.Get(ctx, pair)
		if err != nil {
			if !errors.Is(err, domain.ErrNoRateAvailable) {
				l.log.Warn("portfolio rate lookup failed", zap.String("pair", string(pair)), zap.Error(err))
			}
			report.Unresolved = append(report.Unresolved, code)
			continue
		}
		report.Total = report.Total.Add(balance.Mul(rate.Rate))
	}
	report.Total = report.Total.Round(domain.TradeScale)
	return report, nil
}

// Wallet returns a copy of the user's wallet, creating an empty one if the
// user has never traded.
func (l *Ledger) Wallet(userID string) *domain.Wallet {
	userMu := l.userLock(userID)
	userMu.Lock()
	defer userMu.Unlock()
	return l.wallet(userID).Clone()
}

func (l *Ledger) userLock(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	mu, ok := l.locks[userID]
	if !ok {
		mu = &sync.Mutex{}
		l.locks[userID] = mu
	}
	return mu
}

// wallet must be called with the user lock held.
func (l *Ledger) wallet(userID string) *domain.Wallet {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.wallets[userID]
	if !ok {
		w = domain.NewWallet(userID)
		l.wallets[userID] = w
	}
	return w
}

func (l *Ledger) commit(w *domain.Wallet) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.wallets[w.UserID] = w
}

func (l *Ledger) publish(ctx context.Context, side, userID, currency string, amount, rate, debit, credit decimal.Decimal) {
	usd := debit
	if side == SideSell {
		usd = credit
	}
	ev := TradeEvent{
		ID:         uuid.NewString(),
		UserID:     userID,
		Side:       side,
		Currency:   currency,
		Amount:     amount,
		Rate:       rate,
		USDAmount:  usd,
		ExecutedAt: l.clock.Now(),
	}
	if err := l.pub.PublishTrade(ctx, ev); err != nil {
		l.log.Warn("publish trade event failed", zap.String("trade_id", ev.ID), zap.Error(err))
	}
}
