package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CachedRate is the latest accepted rate for a pair. One entry per pair;
// UpdatedAt is the acceptance time and never moves backwards.
type CachedRate struct {
	Pair      Pair
	Rate      decimal.Decimal
	UpdatedAt time.Time
	Source    string
}

// Stale reports whether the entry is older than ttl. Staleness is a pure
// function of time; there is no background transition.
func (r CachedRate) Stale(now time.Time, ttl time.Duration) bool {
	return now.Sub(r.UpdatedAt) > ttl
}

// Inverse derives the reverse-pair rate from this entry. The result carries
// the source entry's UpdatedAt and Source; it is a view, never cached.
func (r CachedRate) Inverse() CachedRate {
	return CachedRate{
		Pair:      r.Pair.Reverse(),
		Rate:      decimal.NewFromInt(1).Div(r.Rate),
		UpdatedAt: r.UpdatedAt,
		Source:    r.Source,
	}
}
