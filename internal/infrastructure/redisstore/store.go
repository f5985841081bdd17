package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"valutatrade-hub/internal/application"
	"valutatrade-hub/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	walletKeyPrefix = "wallet:"
	snapshotKey     = "rates:snapshot"
	historyKey      = "rates:history"
)

// Store is the Redis persistence gateway: one JSON document per wallet, the
// rate snapshot as a single key, the history as an RPUSH-only list.
type Store struct {
	Client *redis.Client
}

var _ application.Storage = (*Store)(nil)

func New(client *redis.Client) *Store { return &Store{Client: client} }

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

func (s *Store) LoadWallets(ctx context.Context) ([]*domain.Wallet, error) {
	var out []*domain.Wallet
	iter := s.Client.Scan(ctx, 0, walletKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		raw, err := s.Client.Get(ctx, iter.Val()).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return nil, storageErr("get wallet", err)
		}
		var d walletDoc
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return nil, storageErr("decode wallet", err)
		}
		w := domain.NewWallet(d.UserID)
		for code, bal := range d.Balances {
			w.Balances[code] = bal
		}
		out = append(out, w)
	}
	if err := iter.Err(); err != nil {
		return nil, storageErr("scan wallets", err)
	}
	return out, nil
}

func (s *Store) SaveWallet(ctx context.Context, w *domain.Wallet) error {
	raw, err := json.Marshal(walletDoc{UserID: w.UserID, Balances: w.Balances})
	if err != nil {
		return storageErr("marshal wallet", err)
	}
	if err := s.Client.Set(ctx, walletKeyPrefix+w.UserID, raw, 0).Err(); err != nil {
		return storageErr("set wallet", err)
	}
	return nil
}

func (s *Store) LoadRateSnapshot(ctx context.Context) ([]domain.CachedRate, error) {
	raw, err := s.Client.Get(ctx, snapshotKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get snapshot", err)
	}
	var docs []rateDoc
	if err := json.Unmarshal([]byte(raw), &docs); err != nil {
		return nil, storageErr("decode snapshot", err)
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

func (s *Store) SaveRateSnapshot(ctx context.Context, rates []domain.CachedRate) error {
	docs := make([]rateDoc, 0, len(rates))
	for _, r := range rates {
		docs = append(docs, rateDoc{
			Pair:      string(r.Pair),
			Rate:      r.Rate,
			UpdatedAt: r.UpdatedAt,
			Source:    r.Source,
		})
	}
	raw, err := json.Marshal(docs)
	if err != nil {
		return storageErr("marshal snapshot", err)
	}
	if err := s.Client.Set(ctx, snapshotKey, raw, 0).Err(); err != nil {
		return storageErr("set snapshot", err)
	}
	return nil
}

func (s *Store) AppendHistory(ctx context.Context, e domain.RateHistoryEntry) error {
	raw, err := json.Marshal(historyDoc{
		ID:         e.ID,
		Pair:       string(e.Pair),
		Rate:       e.Rate,
		ObservedAt: e.ObservedAt,
		Source:     e.Source,
	})
	if err != nil {
		return storageErr("marshal history", err)
	}
	if err := s.Client.RPush(ctx, historyKey, raw).Err(); err != nil {
		return storageErr("push history", err)
	}
	return nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrStorageUnavailable, op, err)
}
