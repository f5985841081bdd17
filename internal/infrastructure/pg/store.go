package pg

import (
	"context"
	"fmt"

	"valutatrade-hub/internal/application"
	"valutatrade-hub/internal/domain"

	"github.com/shopspring/decimal"
)

// Store is the Postgres persistence gateway.
type Store struct{ db *DB }

var _ application.Storage = (*Store)(nil)

func NewStore(db *DB) *Store { return &Store{db: db} }

func (s *Store) LoadWallets(ctx context.Context) ([]*domain.Wallet, error) {
	const q = `SELECT user_id, currency, balance::text FROM wallets ORDER BY user_id`
	rows, err := s.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, storageErr("load wallets", err)
	}
	defer rows.Close()

	byUser := map[string]*domain.Wallet{}
	var order []string
	for rows.Next() {
		var userID, currency, balance string
		if err := rows.Scan(&userID, &currency, &balance); err != nil {
			return nil, storageErr("scan wallet row", err)
		}
		bal, err := decimal.NewFromString(balance)
		if err != nil {
			return nil, storageErr("parse balance", err)
		}
		w, ok := byUser[userID]
		if !ok {
			w = domain.NewWallet(userID)
			byUser[userID] = w
			order = append(order, userID)
		}
		w.Balances[currency] = bal
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("load wallets", err)
	}
	out := make([]*domain.Wallet, 0, len(order))
	for _, id := range order {
		out = append(out, byUser[id])
	}
	return out, nil
}

func (s *Store) SaveWallet(ctx context.Context, w *domain.Wallet) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return storageErr("begin", err)
	}
	defer tx.Rollback(ctx)

	const up = `
        INSERT INTO wallets(user_id, currency, balance)
        VALUES ($1, $2, $3)
        ON CONFLICT (user_id, currency) DO UPDATE SET balance=EXCLUDED.balance`
	for code, bal := range w.Balances {
		if _, err := tx.Exec(ctx, up, w.UserID, code, bal.String()); err != nil {
			return storageErr("upsert balance", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return storageErr("commit", err)
	}
	return nil
}

func (s *Store) LoadRateSnapshot(ctx context.Context) ([]domain.CachedRate, error) {
	const q = `SELECT pair, rate::text, updated_at, source FROM rates ORDER BY pair`
	rows, err := s.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, storageErr("load rates", err)
	}
	defer rows.Close()

	var out []domain.CachedRate
	for rows.Next() {
		var r domain.CachedRate
		var rate string
		if err := rows.Scan(&r.Pair, &rate, &r.UpdatedAt, &r.Source); err != nil {
			return nil, storageErr("scan rate row", err)
		}
		if r.Rate, err = decimal.NewFromString(rate); err != nil {
			return nil, storageErr("parse rate", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("load rates", err)
	}
	return out, nil
}

func (s *Store) SaveRateSnapshot(ctx context.Context, rates []domain.CachedRate) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return storageErr("begin", err)
	}
	defer tx.Rollback(ctx)

	const up = `
        INSERT INTO rates(pair, rate, updated_at, source)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (pair) DO UPDATE
          SET rate=EXCLUDED.rate, updated_at=EXCLUDED.updated_at, source=EXCLUDED.source`
	for _, r := range rates {
		if _, err := tx.Exec(ctx, up, r.Pair, r.Rate.String(), r.UpdatedAt, r.Source); err != nil {
			return storageErr("upsert rate", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return storageErr("commit", err)
	}
	return nil
}

func (s *Store) AppendHistory(ctx context.Context, e domain.RateHistoryEntry) error {
	const q = `
        INSERT INTO rates_history(id, pair, rate, observed_at, source)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (id) DO NOTHING`
	if _, err := s.db.Pool.Exec(ctx, q, e.ID, e.Pair, e.Rate.String(), e.ObservedAt, e.Source); err != nil {
		return storageErr("append history", err)
	}
	return nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrStorageUnavailable, op, err)
}
