package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is one observed rate measurement from one source. Immutable once
// produced by an adapter.
type Quote struct {
	Pair       Pair
	Rate       decimal.Decimal
	ObservedAt time.Time
	Source     string
}

func (q Quote) Validate() error {
	if !ValidatePair(string(q.Pair)) {
		return fmt.Errorf("%w: %s", ErrUnsupportedPair, q.Pair)
	}
	if !q.Rate.IsPositive() {
		return fmt.Errorf("%w: rate %s for %s", ErrInvalidAmount, q.Rate, q.Pair)
	}
	if q.Source == "" {
		return fmt.Errorf("quote for %s has no source", q.Pair)
	}
	return nil
}
