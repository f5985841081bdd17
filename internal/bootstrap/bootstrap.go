package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"valutatrade-hub/internal/application"
	"valutatrade-hub/internal/config"
	"valutatrade-hub/internal/domain"
	"valutatrade-hub/internal/infrastructure/httpx"
	"valutatrade-hub/internal/infrastructure/jsonstore"
	kafkapub "valutatrade-hub/internal/infrastructure/kafka"
	"valutatrade-hub/internal/infrastructure/logx"
	"valutatrade-hub/internal/infrastructure/pg"
	"valutatrade-hub/internal/infrastructure/redisstore"
	"valutatrade-hub/internal/infrastructure/source"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// BuildStorage selects the persistence gateway by STORAGE env. The returned
// ping reports readiness (nil for the file store), cleanup closes the backend.
func BuildStorage(ctx context.Context, cfg config.Config) (application.Storage, func(ctx context.Context) error, func(), error) {
	log := logx.L()
	switch cfg.Storage {
	case "jsonfile":
		store, err := jsonstore.New(cfg.DataDir)
		if err != nil {
			return nil, nil, func() {}, err
		}
		return store, nil, func() {}, nil

	case "pg":
		if cfg.DatabaseURL == "" {
			return nil, nil, func() {}, fmt.Errorf("DATABASE_URL is required for STORAGE=pg")
		}
		db, err := pg.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, func() {}, err
		}
		if err := pg.RunMigrations(ctx, db); err != nil {
			db.Close()
			return nil, nil, func() {}, err
		}
		cleanup := func() {
			log.Info("closing pg")
			db.Close()
		}
		return pg.NewStore(db), db.Ping, cleanup, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := waitReady(ctx, func() error { return client.Ping(ctx).Err() }); err != nil {
			_ = client.Close()
			return nil, nil, func() {}, fmt.Errorf("redis not ready: %w", err)
		}
		ping := func(ctx context.Context) error { return client.Ping(ctx).Err() }
		cleanup := func() {
			log.Info("closing redis")
			_ = client.Close()
		}
		return redisstore.New(client), ping, cleanup, nil

	default:
		return nil, nil, func() {}, fmt.Errorf("unknown STORAGE %q", cfg.Storage)
	}
}

// BuildSources constructs the quote source adapters in ADAPTER_PRIORITY
// order; the order is the cache's tie-break rule.
func BuildSources(cfg config.Config) ([]application.RateSource, error) {
	client := &httpx.Client{HTTP: &http.Client{Timeout: cfg.RequestTimeout}}
	out := make([]application.RateSource, 0, len(cfg.AdapterPriority))
	for _, name := range cfg.AdapterPriority {
		switch name {
		case "coingecko":
			out = append(out, source.NewCoinGecko(cfg.CoinGeckoAPIBase, client))
		case "exchangerate":
			out = append(out, source.NewExchangeRate(cfg.ExchangeRateAPIBase, client))
		case "fake":
			out = append(out, source.NewFake(decimal.NewFromFloat(1.2345)))
		default:
			return nil, fmt.Errorf("unknown adapter %q in ADAPTER_PRIORITY", name)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("ADAPTER_PRIORITY is empty")
	}
	return out, nil
}

// BuildPublisher returns the Kafka trade publisher, or a noop when no
// brokers are configured.
func BuildPublisher(cfg config.Config) (application.TradePublisher, func(), error) {
	if len(cfg.KafkaBrokers) == 0 {
		return application.NoopPublisher{}, func() {}, nil
	}
	pub := kafkapub.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	cleanup := func() { _ = pub.Close() }
	return pub, cleanup, nil
}

// BuildPairs parses the configured refresh universe.
func BuildPairs(cfg config.Config) ([]domain.Pair, error) {
	out := make([]domain.Pair, 0, len(cfg.Pairs))
	for _, p := range cfg.Pairs {
		if !domain.ValidatePair(p) {
			return nil, fmt.Errorf("invalid pair %q in PAIRS", p)
		}
		out = append(out, domain.Pair(p))
	}
	return out, nil
}

func waitReady(ctx context.Context, ping func() error) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 200 * time.Millisecond
	exp.MaxInterval = 2 * time.Second
	exp.MaxElapsedTime = 15 * time.Second
	return backoff.Retry(ping, backoff.WithContext(exp, ctx))
}
