package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"valutatrade-hub/internal/application"
	"valutatrade-hub/internal/domain"
	"valutatrade-hub/internal/infrastructure/httpx"

	"github.com/shopspring/decimal"
)

const exchangeRateName = "exchangerate"

// ExchangeRate fetches fiat-to-fiat quotes from ExchangeRate-API
// (/v4/latest/{base} returns every rate against the base currency).
type ExchangeRate struct {
	BaseURL string
	Client  *httpx.Client
}

var _ application.RateSource = (*ExchangeRate)(nil)

func NewExchangeRate(baseURL string, client *httpx.Client) *ExchangeRate {
	return &ExchangeRate{BaseURL: baseURL, Client: client}
}

func (e *ExchangeRate) Name() string { return exchangeRateName }

type xrLatestResp struct {
	Base  string             `json:"base"`
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

func (e *ExchangeRate) Fetch(ctx context.Context, pair domain.Pair) (domain.Quote, error) {
	from, to, ok := domain.SplitPair(pair)
	if !ok {
		return domain.Quote{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedPair, pair)
	}
	if !domain.IsFiat(from) || !domain.IsFiat(to) {
		return domain.Quote{}, fmt.Errorf("%w: %s: %s", domain.ErrUnsupportedPair, exchangeRateName, pair)
	}

	u := strings.TrimRight(e.BaseURL, "/") + "/" + from
	var body xrLatestResp
	if err := e.Client.GetJSON(ctx, u, &body); err != nil {
		return domain.Quote{}, fmt.Errorf("%w: %s: %v", domain.ErrSourceUnavailable, exchangeRateName, err)
	}

	rate, ok := body.Rates[to]
	if !ok || rate <= 0 {
		return domain.Quote{}, fmt.Errorf("%w: %s: missing rate for %s", domain.ErrSourceUnavailable, exchangeRateName, pair)
	}

	return domain.Quote{
		Pair:       pair,
		Rate:       decimal.NewFromFloat(rate),
		ObservedAt: time.Now().UTC(),
		Source:     exchangeRateName,
	}, nil
}
