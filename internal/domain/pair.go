package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Pair identifies an exchange rate as "FROM/TO", e.g. "BTC/USD".
type Pair string

var pairRe = regexp.MustCompile(`^[A-Z]{2,5}/[A-Z]{2,5}$`)

// NewPair builds a pair from two registered currency codes.
func NewPair(from, to string) (Pair, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if !IsSupportedCurrency(from) {
		return "", fmt.Errorf("%w: %s", ErrUnknownCurrency, from)
	}
	if !IsSupportedCurrency(to) {
		return "", fmt.Errorf("%w: %s", ErrUnknownCurrency, to)
	}
	if from == to {
		return "", fmt.Errorf("%w: %s/%s", ErrUnsupportedPair, from, to)
	}
	return Pair(from + "/" + to), nil
}

// ValidatePair checks format, registered codes and distinct base/quote.
func ValidatePair(p string) bool {
	if !pairRe.MatchString(p) {
		return false
	}
	from, to, _ := SplitPair(Pair(p))
	return IsSupportedCurrency(from) && IsSupportedCurrency(to) && from != to
}

// SplitPair returns the base and quote codes of a well-formed pair.
func SplitPair(p Pair) (from, to string, ok bool) {
	i := strings.IndexByte(string(p), '/')
	if i <= 0 || i == len(p)-1 {
		return "", "", false
	}
	from, to = string(p[:i]), string(p[i+1:])
	if !validCurrencyCode(from) || !validCurrencyCode(to) {
		return "", "", false
	}
	return from, to, true
}

// Reverse flips base and quote: BTC/USD -> USD/BTC.
func (p Pair) Reverse() Pair {
	from, to, ok := SplitPair(p)
	if !ok {
		return p
	}
	return Pair(to + "/" + from)
}
