package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"valutatrade-hub/internal/application"
	"valutatrade-hub/internal/bootstrap"
	"valutatrade-hub/internal/config"
	"valutatrade-hub/internal/infrastructure/logx"
	"valutatrade-hub/internal/infrastructure/metrics"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func init() { _ = godotenv.Load() }

// The worker runs the periodic refresh scheduler without serving the API;
// it shares the persistence gateway with cmd/api and exposes only health
// and metrics endpoints.
func main() {
	logger := logx.L()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, _, closeStorage, err := bootstrap.BuildStorage(ctx, cfg)
	if err != nil {
		logger.Fatal("bootstrap storage", zap.Error(err))
	}
	defer closeStorage()

	sources, err := bootstrap.BuildSources(cfg)
	if err != nil {
		logger.Fatal("bootstrap sources", zap.Error(err))
	}
	pairs, err := bootstrap.BuildPairs(cfg)
	if err != nil {
		logger.Fatal("bootstrap pairs", zap.Error(err))
	}

	cache := application.NewRateCache(sources, storage, cfg.TTL,
		application.WithCacheLogger(logger))
	if err := cache.Restore(ctx); err != nil {
		logger.Warn("restore rate snapshot", zap.Error(err))
	}

	sched := application.NewRefreshScheduler(cache, pairs, cfg.RefreshInterval,
		application.WithSchedulerStats(metrics.New()),
		application.WithSchedulerLogger(logger))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	metricsSrv := &http.Server{Addr: ":" + cfg.Port, Handler: mux}
	go func() {
		logger.Info("metrics listener started", zap.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("metrics listen", zap.Error(err))
		}
	}()

	sched.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	logger.Info("worker stopped")
}
