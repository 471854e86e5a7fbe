package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"order_watch/internal/app"
	"order_watch/internal/engine"
	"order_watch/internal/infra"
	"order_watch/internal/infra/capture"
	"order_watch/internal/infra/feed"
	"order_watch/internal/server"
	"order_watch/internal/service"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	configPath := flag.String("config", app.DefaultConfigPath, "path to config file")
	flag.Parse()

	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()
	cfg := bootstrap.Config

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Materialized state + derived filter view
	store := service.NewOrderStore()
	view := service.NewFilterView(store, cfg.Ingest.FilterCacheSize)

	// 5. Ingest pipeline (queue + drain loop)
	ingestor := engine.NewIngestor(store, infra.GlobalMetrics, engine.IngestorConfig{
		BatchSize:     cfg.Ingest.BatchSize,
		IdleTimeout:   cfg.IdleTimeout(),
		OnOrdersAdded: view.Refresh,
	})
	ingestor.Start(ctx)
	defer ingestor.Stop()

	// 6. Feed watcher (transport)
	watcher := feed.NewWatcher(cfg.Feed.WSURL, infra.GlobalMetrics)
	unsubscribe := watcher.Subscribe(ingestor.Enqueue)
	defer unsubscribe()

	if bootstrap.CaptureStore != nil {
		recorder := capture.NewRecorder(bootstrap.CaptureStore)
		recorder.Attach(watcher)
		defer recorder.Detach()
	}

	if err := watcher.Start(ctx); err != nil {
		slog.Error("Failed to start order feed watcher", slog.Any("error", err))
		os.Exit(1)
	}
	defer watcher.Stop()

	// 7. API server for the presentation layer
	api := server.New(cfg.Server.Addr, store, view, watcher, infra.GlobalMetrics)
	go func() {
		if err := api.Start(); err != nil {
			slog.Error("API server failed", slog.Any("error", err))
			stop()
		}
	}()

	slog.InfoContext(ctx, "order_watch operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()

	slog.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		slog.Warn("API shutdown failed", slog.Any("error", err))
	}
}
