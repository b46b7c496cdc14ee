package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"taskboard/internal/config"
	"taskboard/internal/events"
	"taskboard/internal/logger"
	"taskboard/internal/manager"
	"taskboard/internal/server"
	"taskboard/internal/storage"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logger.Error(ctx, err, "load config")
		os.Exit(1)
	}
	logger.Init("taskd", cfg.LogLevel, cfg.LogFormat)

	store, err := openStore(cfg.StoreDriver)
	if err != nil {
		logger.Error(ctx, err, "open store", "driver", cfg.StoreDriver)
		os.Exit(1)
	}
	defer store.Close()

	hub := events.NewHub()
	defer hub.Close()

	tm := manager.NewTaskManager(store, hub)

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: server.NewRouter(tm, hub),
	}

	go func() {
		logger.Info(ctx, "server started", "addr", srv.Addr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, err, "listen")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()

	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, err, "server forced to shutdown")
	}
	logger.Info(ctx, "server exited")
}

func openStore(driver string) (storage.Store, error) {
	if driver == "sqlite" {
		return storage.NewSQLiteStorage()
	}
	return storage.NewMemoryStorage(), nil
}
