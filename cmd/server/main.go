package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Toasterson/akh-medu-sub004/internal/api"
	"github.com/Toasterson/akh-medu-sub004/internal/config"
	"github.com/Toasterson/akh-medu-sub004/internal/domain"
	"github.com/Toasterson/akh-medu-sub004/internal/store"
)

func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	if err := config.Load(); err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	storeCfg := store.DefaultConfig(config.DataDir())
	storeCfg.SyncWrites = config.SyncWrites()
	storeCfg.GCInterval = config.GCInterval()
	storeCfg.Logger = logger

	db, err := store.Open(storeCfg)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer func() { _ = db.Close() }()
	logger.Info("store opened", zap.String("path", config.DataDir()))

	app, err := api.NewApp(db, logger)
	if err != nil {
		logger.Fatal("failed to build app", zap.Error(err))
	}

	// Rehydrate the truth maintenance graph from the ledger before serving.
	ctx := context.Background()
	restored, err := app.Retraction.Rebuild(ctx, supportKinds())
	if err != nil {
		logger.Fatal("failed to rebuild truth maintenance graph", zap.Error(err))
	}
	logger.Info("truth maintenance graph ready", zap.Int("support_sets", restored))

	// Start background services
	app.GC.Start()

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:    addr,
		Handler: app.Router,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	// Stop background services
	app.GC.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

// supportKinds lists the derivation tags whose records carry support sets
// worth rehydrating.
func supportKinds() []domain.KindTag {
	return []domain.KindTag{
		domain.KindExtracted,
		domain.KindSeed,
		domain.KindGraphEdge,
		domain.KindVsaRecovery,
		domain.KindAnalogy,
		domain.KindFillerRecovery,
		domain.KindReasoned,
		domain.KindAggregated,
	}
}
