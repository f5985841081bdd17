package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RateHistoryEntry is the append-only audit record of an accepted quote.
// The ID is derived from (pair, observed_at) so re-appending the same quote
// is a no-op for stores that enforce ID uniqueness.
type RateHistoryEntry struct {
	ID         string
	Pair       Pair
	Rate       decimal.Decimal
	ObservedAt time.Time
	Source     string
}

func NewRateHistoryEntry(q Quote) RateHistoryEntry {
	return RateHistoryEntry{
		ID:         HistoryID(q.Pair, q.ObservedAt),
		Pair:       q.Pair,
		Rate:       q.Rate,
		ObservedAt: q.ObservedAt,
		Source:     q.Source,
	}
}

func HistoryID(pair Pair, observedAt time.Time) string {
	return strings.ReplaceAll(string(pair), "/", "_") + "_" + observedAt.UTC().Format(time.RFC3339Nano)
}
