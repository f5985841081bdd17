package domain

import "errors"

var (
	ErrSourceUnavailable  = errors.New("rate source unavailable")
	ErrUnsupportedPair    = errors.New("unsupported pair")
	ErrUnknownCurrency    = errors.New("unknown currency")
	ErrNoRateAvailable    = errors.New("no rate available")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrStorageUnavailable = errors.New("storage unavailable")
)
