package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"valutatrade-hub/internal/domain"
	"valutatrade-hub/internal/infrastructure/httpx"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func Test_CoinGecko_Fetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/simple/price", r.URL.Path)
		require.Equal(t, "bitcoin", r.URL.Query().Get("ids"))
		require.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"bitcoin":{"usd":50123.45}}`))
	}))
	defer srv.Close()

	cg := NewCoinGecko(srv.URL, &httpx.Client{HTTP: srv.Client()})
	q, err := cg.Fetch(context.Background(), "BTC/USD")
	require.NoError(t, err)
	require.Equal(t, domain.Pair("BTC/USD"), q.Pair)
	require.Equal(t, "coingecko", q.Source)
	require.True(t, q.Rate.Equal(decimal.NewFromFloat(50123.45)))
	require.False(t, q.ObservedAt.IsZero())
}

func Test_CoinGecko_UnsupportedPairs(t *testing.T) {
	t.Parallel()

	cg := NewCoinGecko("http://unused", &httpx.Client{})

	// Fiat base and crypto quote are both outside CoinGecko coverage.
	_, err := cg.Fetch(context.Background(), "EUR/USD")
	require.ErrorIs(t, err, domain.ErrUnsupportedPair)

	_, err = cg.Fetch(context.Background(), "BTC/ETH")
	require.ErrorIs(t, err, domain.ErrUnsupportedPair)
}

func Test_CoinGecko_ServerErrorIsSourceUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cg := NewCoinGecko(srv.URL, &httpx.Client{HTTP: srv.Client()})
	_, err := cg.Fetch(context.Background(), "BTC/USD")
	require.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func Test_CoinGecko_MissingRateIsSourceUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	cg := NewCoinGecko(srv.URL, &httpx.Client{HTTP: srv.Client()})
	_, err := cg.Fetch(context.Background(), "ETH/EUR")
	require.ErrorIs(t, err, domain.ErrSourceUnavailable)
}
