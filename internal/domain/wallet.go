package domain

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// TradeScale is the number of fractional digits kept on trade results.
// A computed amount that rounds to zero at this scale is rejected rather
// than silently truncated.
const TradeScale = 8

// Wallet holds one user's balances per currency code. An entry is created
// on first acquisition of a currency and retained at zero, never deleted.
type Wallet struct {
	UserID   string
	Balances map[string]decimal.Decimal
}

func NewWallet(userID string) *Wallet {
	return &Wallet{UserID: userID, Balances: map[string]decimal.Decimal{}}
}

func (w *Wallet) Balance(code string) decimal.Decimal {
	return w.Balances[code]
}

// Deposit credits amount to the currency entry, creating it if absent.
func (w *Wallet) Deposit(code string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: deposit %s %s", ErrInvalidAmount, amount, code)
	}
	if w.Balances == nil {
		w.Balances = map[string]decimal.Decimal{}
	}
	w.Balances[code] = w.Balances[code].Add(amount)
	return nil
}

// Withdraw debits amount from the currency entry. The entry stays in the
// wallet even when the balance reaches zero.
func (w *Wallet) Withdraw(code string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: withdraw %s %s", ErrInvalidAmount, amount, code)
	}
	have := w.Balances[code]
	if have.LessThan(amount) {
		return fmt.Errorf("%w: have %s %s, need %s %s", ErrInsufficientFunds, have, code, amount, code)
	}
	w.Balances[code] = have.Sub(amount)
	return nil
}

// Clone returns a deep copy so callers can mutate and commit atomically.
func (w *Wallet) Clone() *Wallet {
	c := NewWallet(w.UserID)
	for code, bal := range w.Balances {
		c.Balances[code] = bal
	}
	return c
}

// Currencies returns the wallet's currency codes in sorted order.
func (w *Wallet) Currencies() []string {
	out := make([]string, 0, len(w.Balances))
	for code := range w.Balances {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
