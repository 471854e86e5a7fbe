package app

import (
	"log/slog"

	"order_watch/internal/event"
	"order_watch/internal/infra"
	"order_watch/internal/infra/capture"
)

// DefaultConfigPath is where Initialize looks for the YAML config.
const DefaultConfigPath = "configs/config.yaml"

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config       *infra.Config
	Logger       *slog.Logger
	CaptureStore *capture.Store
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration, installs the logger, warms the event
// pool, and opens the capture store when enabled.
func (b *Bootstrap) Initialize(configPath string) error {
	if configPath == "" {
		configPath = DefaultConfigPath
	}

	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	b.Logger = infra.NewLogger(cfg)
	slog.SetDefault(b.Logger)
	slog.Info("Bootstrapping order_watch",
		slog.String("feed", cfg.Feed.WSURL),
		slog.Int("batch_size", cfg.Ingest.BatchSize))

	event.Warmup()

	if cfg.Capture.Enabled {
		store, err := capture.OpenStore(cfg.Capture.DBPath)
		if err != nil {
			return err
		}
		b.CaptureStore = store
		slog.Info("Feed capture enabled", slog.String("db", cfg.Capture.DBPath))
	}

	return nil
}

// Close releases bootstrap-owned resources.
func (b *Bootstrap) Close() {
	if b.CaptureStore != nil {
		if err := b.CaptureStore.Close(); err != nil {
			slog.Warn("Capture store close failed", slog.Any("error", err))
		}
	}
}
