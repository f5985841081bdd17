package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"valutatrade-hub/internal/application"
	"valutatrade-hub/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	rates map[domain.Pair]decimal.Decimal
}

func (s stubSource) Name() string { return "stub" }

func (s stubSource) Fetch(_ context.Context, pair domain.Pair) (domain.Quote, error) {
	rate, ok := s.rates[pair]
	if !ok {
		return domain.Quote{}, domain.ErrUnsupportedPair
	}
	return domain.Quote{Pair: pair, Rate: rate, ObservedAt: time.Now().UTC(), Source: "stub"}, nil
}

type stubStorage struct{}

func (stubStorage) LoadWallets(context.Context) ([]*domain.Wallet, error) { return nil, nil }
func (stubStorage) SaveWallet(context.Context, *domain.Wallet) error      { return nil }
func (stubStorage) LoadRateSnapshot(context.Context) ([]domain.CachedRate, error) {
	return nil, nil
}
func (stubStorage) SaveRateSnapshot(context.Context, []domain.CachedRate) error  { return nil }
func (stubStorage) AppendHistory(context.Context, domain.RateHistoryEntry) error { return nil }

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	src := stubSource{rates: map[domain.Pair]decimal.Decimal{
		"BTC/USD": decimal.NewFromInt(50000),
		"ETH/USD": decimal.NewFromInt(3000),
	}}
	cache := application.NewRateCache([]application.RateSource{src}, stubStorage{}, 5*time.Minute)
	ledger := application.NewLedger(cache, stubStorage{})
	sched := application.NewRefreshScheduler(cache, []domain.Pair{"BTC/USD", "ETH/USD"}, time.Hour)
	return NewRouter(NewServer(cache, ledger, sched, nil))
}

func doJSON(t *testing.T, h http.Handler, method, target, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if user != "" {
		req.Header.Set(UserIDHeader, user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func Test_Router_Health(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/readyz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func Test_Router_ReadyzFailsWhenStorageDown(t *testing.T) {
	cache := application.NewRateCache(nil, stubStorage{}, time.Minute)
	ledger := application.NewLedger(cache, stubStorage{})
	sched := application.NewRefreshScheduler(cache, nil, time.Hour)
	ping := func(context.Context) error { return domain.ErrStorageUnavailable }
	h := NewRouter(NewServer(cache, ledger, sched, ping))

	rec := doJSON(t, h, http.MethodGet, "/readyz", "", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func Test_Router_RequestIDEchoed(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))

	rec = doJSON(t, h, http.MethodGet, "/healthz", "", "")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func Test_Router_GetRate(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/rates/BTC/USD", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Pair   string          `json:"pair"`
		Rate   decimal.Decimal `json:"rate"`
		Source string          `json:"source"`
		Stale  bool            `json:"stale"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "BTC/USD", body.Pair)
	require.True(t, body.Rate.Equal(decimal.NewFromInt(50000)))
	require.Equal(t, "stub", body.Source)
	require.False(t, body.Stale)
}

func Test_Router_GetRate_Errors(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodGet, "/api/v1/rates/DOGE/USD", "", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Valid pair the stub cannot serve.
	rec = doJSON(t, h, http.MethodGet, "/api/v1/rates/EUR/GBP", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_Router_ListRates(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/rates/refresh", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/rates", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Rates []struct {
			Pair string `json:"pair"`
		} `json:"rates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Rates, 2)
}

func Test_Router_RefreshReport(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/rates/refresh", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Updated []string       `json:"updated"`
		Failed  []string       `json:"failed"`
		Sources map[string]int `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.ElementsMatch(t, []string{"BTC/USD", "ETH/USD"}, body.Updated)
	require.Empty(t, body.Failed)
	require.Equal(t, 2, body.Sources["stub"])
}

type failingSnapshotStorage struct{ stubStorage }

func (failingSnapshotStorage) SaveRateSnapshot(context.Context, []domain.CachedRate) error {
	return domain.ErrStorageUnavailable
}

func Test_Router_RefreshStorageFailure(t *testing.T) {
	src := stubSource{rates: map[domain.Pair]decimal.Decimal{"BTC/USD": decimal.NewFromInt(50000)}}
	cache := application.NewRateCache([]application.RateSource{src}, failingSnapshotStorage{}, time.Minute)
	ledger := application.NewLedger(cache, failingSnapshotStorage{})
	sched := application.NewRefreshScheduler(cache, []domain.Pair{"BTC/USD"}, time.Hour)
	h := NewRouter(NewServer(cache, ledger, sched, nil))

	rec := doJSON(t, h, http.MethodPost, "/api/v1/rates/refresh", "", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func Test_Router_RefreshCancelledRequest(t *testing.T) {
	h := newTestHandler(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rates/refresh", strings.NewReader("")).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusRequestTimeout, rec.Code)
}

func Test_Router_TradeRequiresUser(t *testing.T) {
	h := newTestHandler(t)

	for _, target := range []string{"/api/v1/buy", "/api/v1/sell", "/api/v1/deposit"} {
		rec := doJSON(t, h, http.MethodPost, target, "", `{"currency":"BTC","usd_amount":"10"}`)
		require.Equal(t, http.StatusUnauthorized, rec.Code, target)
	}
	rec := doJSON(t, h, http.MethodGet, "/api/v1/wallet", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func Test_Router_DepositBuySellFlow(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/deposit", "alice", `{"currency":"USD","amount":"1000"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/buy", "alice", `{"currency":"BTC","usd_amount":"500"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var trade struct {
		Received decimal.Decimal `json:"received"`
		Spent    decimal.Decimal `json:"spent"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trade))
	require.True(t, trade.Received.Equal(decimal.RequireFromString("0.01")))
	require.True(t, trade.Spent.Equal(decimal.NewFromInt(500)))

	rec = doJSON(t, h, http.MethodPost, "/api/v1/sell", "alice", `{"currency":"BTC","amount":"0.01"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/wallet", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var wallet struct {
		UserID   string                     `json:"user_id"`
		Balances map[string]decimal.Decimal `json:"balances"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wallet))
	require.Equal(t, "alice", wallet.UserID)
	require.True(t, wallet.Balances["USD"].Equal(decimal.NewFromInt(1000)))
	require.True(t, wallet.Balances["BTC"].IsZero())
}

func Test_Router_TradeErrors(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/buy", "alice", `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/v1/buy", "alice", `{"currency":"BTC","usd_amount":"-5"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Empty wallet cannot afford any buy.
	rec = doJSON(t, h, http.MethodPost, "/api/v1/buy", "alice", `{"currency":"BTC","usd_amount":"10"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func Test_Router_Portfolio(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/api/v1/deposit", "alice", `{"currency":"USD","amount":"100"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, h, http.MethodPost, "/api/v1/deposit", "alice", `{"currency":"BTC","amount":"0.01"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/v1/portfolio", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Base       string          `json:"base"`
		Total      decimal.Decimal `json:"total"`
		Unresolved []string        `json:"unresolved"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "USD", body.Base)
	require.True(t, body.Total.Equal(decimal.NewFromInt(600)))
	require.Empty(t, body.Unresolved)
}
