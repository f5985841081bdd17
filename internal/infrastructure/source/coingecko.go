package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"valutatrade-hub/internal/application"
	"valutatrade-hub/internal/domain"
	"valutatrade-hub/internal/infrastructure/httpx"

	"github.com/shopspring/decimal"
)

const coinGeckoName = "coingecko"

// coinIDs maps currency codes to CoinGecko coin identifiers.
var coinIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"SOL":  "solana",
	"USDT": "tether",
}

// CoinGecko fetches crypto-to-fiat quotes from the CoinGecko simple/price
// endpoint. Pairs outside its coverage are an expected outcome, not an error.
type CoinGecko struct {
	BaseURL string
	Client  *httpx.Client
}

var _ application.RateSource = (*CoinGecko)(nil)

func NewCoinGecko(baseURL string, client *httpx.Client) *CoinGecko {
	return &CoinGecko{BaseURL: baseURL, Client: client}
}

func (c *CoinGecko) Name() string { return coinGeckoName }

func (c *CoinGecko) Fetch(ctx context.Context, pair domain.Pair) (domain.Quote, error) {
	from, to, ok := domain.SplitPair(pair)
	if !ok {
		return domain.Quote{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedPair, pair)
	}
	coinID, ok := coinIDs[from]
	if !ok || !domain.IsFiat(to) {
		return domain.Quote{}, fmt.Errorf("%w: %s: %s", domain.ErrUnsupportedPair, coinGeckoName, pair)
	}

	vs := strings.ToLower(to)
	u := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=%s",
		strings.TrimRight(c.BaseURL, "/"), url.QueryEscape(coinID), url.QueryEscape(vs))

	var body map[string]map[string]float64
	if err := c.Client.GetJSON(ctx, u, &body); err != nil {
		return domain.Quote{}, fmt.Errorf("%w: %s: %v", domain.ErrSourceUnavailable, coinGeckoName, err)
	}

	rate, ok := body[coinID][vs]
	if !ok || rate <= 0 {
		return domain.Quote{}, fmt.Errorf("%w: %s: missing rate for %s", domain.ErrSourceUnavailable, coinGeckoName, pair)
	}

	return domain.Quote{
		Pair:       pair,
		Rate:       decimal.NewFromFloat(rate),
		ObservedAt: time.Now().UTC(),
		Source:     coinGeckoName,
	}, nil
}
