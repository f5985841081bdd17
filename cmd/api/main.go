package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"valutatrade-hub/internal/application"
	"valutatrade-hub/internal/bootstrap"
	"valutatrade-hub/internal/config"
	httpserver "valutatrade-hub/internal/infrastructure/http"
	"valutatrade-hub/internal/infrastructure/logx"
	"valutatrade-hub/internal/infrastructure/metrics"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func init() { _ = godotenv.Load() }

func main() {
	logger := logx.L()
	cfg := config.Load()
	addr := ":" + cfg.Port

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storage, ping, closeStorage, err := bootstrap.BuildStorage(ctx, cfg)
	if err != nil {
		logger.Fatal("bootstrap storage", zap.Error(err))
	}
	defer closeStorage()

	sources, err := bootstrap.BuildSources(cfg)
	if err != nil {
		logger.Fatal("bootstrap sources", zap.Error(err))
	}
	publisher, closePublisher, err := bootstrap.BuildPublisher(cfg)
	if err != nil {
		logger.Fatal("bootstrap publisher", zap.Error(err))
	}
	defer closePublisher()
	pairs, err := bootstrap.BuildPairs(cfg)
	if err != nil {
		logger.Fatal("bootstrap pairs", zap.Error(err))
	}

	stats := metrics.New()

	cache := application.NewRateCache(sources, storage, cfg.TTL,
		application.WithCacheLogger(logger))
	if err := cache.Restore(ctx); err != nil {
		logger.Warn("restore rate snapshot", zap.Error(err))
	}

	ledger := application.NewLedger(cache, storage,
		application.WithPublisher(publisher),
		application.WithLedgerStats(stats),
		application.WithLedgerLogger(logger))
	if err := ledger.Restore(ctx); err != nil {
		logger.Fatal("restore wallets", zap.Error(err))
	}

	sched := application.NewRefreshScheduler(cache, pairs, cfg.RefreshInterval,
		application.WithSchedulerStats(stats),
		application.WithSchedulerLogger(logger))
	go sched.Start(ctx)

	srv := httpserver.NewServer(cache, ledger, sched, ping)
	server := &http.Server{
		Addr:    addr,
		Handler: httpserver.NewRouter(srv),
	}

	go func() {
		logger.Info("server started", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	shutdownCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	_ = server.Shutdown(shutdownCtx)
	logger.Info("server stopped")
}
