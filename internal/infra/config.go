package infra

import (
	"fmt"
	"os"
	"time"

	"order_watch/internal/domain"

	"gopkg.in/yaml.v3"
)

// Defaults for the externally tunable knobs. The batch size bounds how
// much work one drain tick may do; the idle timeout is how long the
// scheduler waits for a wakeup before forcing a tick anyway.
const (
	DefaultBatchSize       = 10
	DefaultIdleTimeoutMS   = 2000
	DefaultFilterCacheSize = 4096
	DefaultServerAddr      = ":8090"
)

// Config holds the full application configuration, loaded from YAML with
// environment-variable overrides applied on top.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Feed struct {
		WSURL string `yaml:"ws_url"`
	} `yaml:"feed"`

	Ingest struct {
		BatchSize       int `yaml:"batch_size"`
		IdleTimeoutMS   int `yaml:"idle_timeout_ms"`
		FilterCacheSize int `yaml:"filter_cache_size"`
	} `yaml:"ingest"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Capture struct {
		Enabled bool   `yaml:"enabled"`
		DBPath  string `yaml:"db_path"`
	} `yaml:"capture"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file, applies defaults
// and environment overrides, and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Ingest.BatchSize == 0 {
		c.Ingest.BatchSize = DefaultBatchSize
	}
	if c.Ingest.IdleTimeoutMS == 0 {
		c.Ingest.IdleTimeoutMS = DefaultIdleTimeoutMS
	}
	if c.Ingest.FilterCacheSize == 0 {
		c.Ingest.FilterCacheSize = DefaultFilterCacheSize
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Capture.Enabled && c.Capture.DBPath == "" {
		c.Capture.DBPath = "data/capture.db"
	}
}

// IdleTimeout returns the scheduler's maximum wait as a duration.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Ingest.IdleTimeoutMS) * time.Millisecond
}

// Validate checks configuration validity. A misconfigured pipeline is a
// construction-time failure, never a runtime-recoverable one.
func (c *Config) Validate() error {
	if c.Feed.WSURL == "" || (!hasPrefix(c.Feed.WSURL, "ws://") && !hasPrefix(c.Feed.WSURL, "wss://")) {
		return fmt.Errorf("invalid feed WS URL: %s", c.Feed.WSURL)
	}

	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("ingest batch size must be positive")
	}
	if c.Ingest.IdleTimeoutMS <= 0 {
		return fmt.Errorf("ingest idle timeout must be positive")
	}
	if c.Ingest.FilterCacheSize <= 0 {
		return fmt.Errorf("filter cache size must be positive")
	}

	return nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv applies environment-variable overrides when present.
func overrideWithEnv(cfg *Config) {
	if url := os.Getenv("ORDERWATCH_FEED_URL"); url != "" {
		cfg.Feed.WSURL = url
	}
	if addr := os.Getenv("ORDERWATCH_SERVER_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if level := os.Getenv("ORDERWATCH_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
