package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"valutatrade-hub/internal/application"
	"valutatrade-hub/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// Server exposes the rate cache, ledger and scheduler over HTTP.
type Server struct {
	cache  *application.RateCache
	ledger *application.Ledger
	sched  *application.RefreshScheduler
	ping   func(ctx context.Context) error
}

func NewServer(cache *application.RateCache, ledger *application.Ledger, sched *application.RefreshScheduler, ping func(ctx context.Context) error) *Server {
	return &Server{cache: cache, ledger: ledger, sched: sched, ping: ping}
}

type rateResp struct {
	Pair      string          `json:"pair"`
	Rate      decimal.Decimal `json:"rate"`
	UpdatedAt time.Time       `json:"updated_at"`
	Source    string          `json:"source"`
	Stale     bool            `json:"stale"`
}

func (s *Server) rateResp(r domain.CachedRate) rateResp {
	return rateResp{
		Pair:      string(r.Pair),
		Rate:      r.Rate,
		UpdatedAt: r.UpdatedAt,
		Source:    r.Source,
		Stale:     r.Stale(time.Now().UTC(), s.cache.TTL()),
	}
}

func (s *Server) ListRates(w http.ResponseWriter, r *http.Request) {
	out := []rateResp{}
	for entry := range s.cache.All() {
		out = append(out, s.rateResp(entry))
	}
	writeJSON(w, http.StatusOK, map[string]any{"rates": out})
}

func (s *Server) GetRate(w http.ResponseWriter, r *http.Request) {
	pair, err := domain.NewPair(chi.URLParam(r, "from"), chi.URLParam(r, "to"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	rate, err := s.cache.Get(r.Context(), pair)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.rateResp(rate))
}

func (s *Server) RefreshRates(w http.ResponseWriter, r *http.Request) {
	report, err := s.sched.RunOnce(r.Context())
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusRequestTimeout, "refresh interrupted")
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"updated": pairStrings(report.Updated),
		"failed":  pairStrings(report.Failed),
		"sources": report.BySource,
	})
}

type depositReq struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

func (s *Server) Deposit(w http.ResponseWriter, r *http.Request) {
	var body depositReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	wallet, err := s.ledger.Deposit(r.Context(), userID(r), body.Currency, body.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, walletResp(wallet))
}

type buyReq struct {
	Currency  string          `json:"currency"`
	USDAmount decimal.Decimal `json:"usd_amount"`
}

func (s *Server) Buy(w http.ResponseWriter, r *http.Request) {
	var body buyReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := s.ledger.Buy(r.Context(), userID(r), body.Currency, body.USDAmount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tradeResp(res))
}

type sellReq struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

func (s *Server) Sell(w http.ResponseWriter, r *http.Request) {
	var body sellReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := s.ledger.Sell(r.Context(), userID(r), body.Currency, body.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tradeResp(res))
}

func (s *Server) Portfolio(w http.ResponseWriter, r *http.Request) {
	base := r.URL.Query().Get("base")
	if base == "" {
		base = "USD"
	}
	report, err := s.ledger.PortfolioValue(r.Context(), userID(r), base)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	unresolved := report.Unresolved
	if unresolved == nil {
		unresolved = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"base":       report.Base,
		"total":      report.Total,
		"unresolved": unresolved,
	})
}

func (s *Server) Wallet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, walletResp(s.ledger.Wallet(userID(r))))
}

func tradeResp(res application.TradeResult) map[string]any {
	return map[string]any{
		"wallet":   walletResp(res.Wallet),
		"pair":     string(res.Pair),
		"rate":     res.Rate,
		"spent":    res.Spent,
		"received": res.Received,
		"before":   res.Before,
		"after":    res.After,
	}
}

func walletResp(w *domain.Wallet) map[string]any {
	return map[string]any{
		"user_id":  w.UserID,
		"balances": w.Balances,
	}
}

func pairStrings(pairs []domain.Pair) []string {
	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, string(p))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps each failure kind to a distinct, stable response.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrUnknownCurrency),
		errors.Is(err, domain.ErrUnsupportedPair):
		writeError(w, http.StatusBadRequest, firstLine(err))
	case errors.Is(err, domain.ErrInsufficientFunds):
		writeError(w, http.StatusUnprocessableEntity, firstLine(err))
	case errors.Is(err, domain.ErrNoRateAvailable), errors.Is(err, domain.ErrSourceUnavailable):
		writeError(w, http.StatusNotFound, firstLine(err))
	case errors.Is(err, domain.ErrStorageUnavailable):
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func firstLine(err error) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return msg
}
