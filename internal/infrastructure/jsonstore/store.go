package jsonstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"valutatrade-hub/internal/application"
	"valutatrade-hub/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	walletsFile = "wallets.json"
	ratesFile   = "rates.json"
	historyFile = "history.jsonl"
	filePerm    = 0o644
	dirPerm     = 0o755
)

// Store is the JSON-file persistence gateway: wallets and the rate snapshot
// live in whole-file documents rewritten atomically via temp-and-rename; the
// rate history is an append-only JSON-lines log.
type Store struct {
	mu  sync.Mutex
	dir string
}

var _ application.Storage = (*Store)(nil)

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("%w: create data dir: %v", domain.ErrStorageUnavailable, err)
	}
	return &Store{dir: dir}, nil
}

type walletDoc struct {
	UserID   string                     `json:"user_id"`
	Balances map[string]decimal.Decimal `json:"balances"`
}

type rateDoc struct {
	Pair      string          `json:"pair"`
	Rate      decimal.Decimal `json:"rate"`
	UpdatedAt time.Time       `json:"updated_at"`
	Source    string          `json:"source"`
}

type historyDoc struct {
	ID         string          `json:"id"`
	Pair       string          `json:"pair"`
	Rate       decimal.Decimal `json:"rate"`
	ObservedAt time.Time       `json:"observed_at"`
	Source     string          `json:"source"`
}

func (s *Store) LoadWallets(context.Context) ([]*domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var docs []walletDoc
	if err := s.readFile(walletsFile, &docs); err != nil {
		return nil, err
	}
	out := make([]*domain.Wallet, 0, len(docs))
	for _, d := range docs {
		w := domain.NewWallet(d.UserID)
		for code, bal := range d.Balances {
			w.Balances[code] = bal
		}
		out = append(out, w)
	}
	return out, nil
}

func (s *Store) SaveWallet(_ context.Context, w *domain.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var docs []walletDoc
	if err := s.readFile(walletsFile, &docs); err != nil {
		return err
	}
	doc := walletDoc{UserID: w.UserID, Balances: w.Balances}
	replaced := false
	for i := range docs {
		if docs[i].UserID == w.UserID {
			docs[i] = doc
			replaced = true
			break
		}
	}
	if !replaced {
		docs = append(docs, doc)
	}
	return s.writeFile(walletsFile, docs)
}

func (s *Store) LoadRateSnapshot(context.Context) ([]domain.CachedRate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var docs []rateDoc
	if err := s.readFile(ratesFile, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.CachedRate, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.CachedRate{
			Pair:      domain.Pair(d.Pair),
			Rate:      d.Rate,
			UpdatedAt: d.UpdatedAt,
			Source:    d.Source,
		})
	}
	return out, nil
}

func (s *Store) SaveRateSnapshot(_ context.Context, rates []domain.CachedRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := make([]rateDoc, 0, len(rates))
	for _, r := range rates {
		docs = append(docs, rateDoc{
			Pair:      string(r.Pair),
			Rate:      r.Rate,
			UpdatedAt: r.UpdatedAt,
			Source:    r.Source,
		})
	}
	return s.writeFile(ratesFile, docs)
}

func (s *Store) AppendHistory(_ context.Context, e domain.RateHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, err := json.Marshal(historyDoc{
		ID:         e.ID,
		Pair:       string(e.Pair),
		Rate:       e.Rate,
		ObservedAt: e.ObservedAt,
		Source:     e.Source,
	})
	if err != nil {
		return fmt.Errorf("%w: marshal history: %v", domain.ErrStorageUnavailable, err)
	}
	f, err := os.OpenFile(filepath.Join(s.dir, historyFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("%w: open history: %v", domain.ErrStorageUnavailable, err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("%w: append history: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

// History reads the full append-only log; handy for inspection and tests.
func (s *Store) History() ([]domain.RateHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, historyFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read history: %v", domain.ErrStorageUnavailable, err)
	}
	var out []domain.RateHistoryEntry
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var d historyDoc
		if err := dec.Decode(&d); err != nil {
			return nil, fmt.Errorf("%w: decode history: %v", domain.ErrStorageUnavailable, err)
		}
		out = append(out, domain.RateHistoryEntry{
			ID:         d.ID,
			Pair:       domain.Pair(d.Pair),
			Rate:       d.Rate,
			ObservedAt: d.ObservedAt,
			Source:     d.Source,
		})
	}
	return out, nil
}

func (s *Store) readFile(name string, out any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", domain.ErrStorageUnavailable, name, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", domain.ErrStorageUnavailable, name, err)
	}
	return nil
}

func (s *Store) writeFile(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal %s: %v", domain.ErrStorageUnavailable, name, err)
	}
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, filePerm); err != nil {
		return fmt.Errorf("%w: write %s: %v", domain.ErrStorageUnavailable, name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: rename %s: %v", domain.ErrStorageUnavailable, name, err)
	}
	return nil
}
