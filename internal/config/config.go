// Package config defines all configuration for the book maintainer.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via CB_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// APIConfig holds the exchange endpoints and the API key triplet used to
// sign REST requests and the stream subscription.
type APIConfig struct {
	RESTBaseURL string `mapstructure:"rest_base_url"`
	WSURL       string `mapstructure:"ws_url"`
	Key         string `mapstructure:"key"`
	Secret      string `mapstructure:"secret"` // base64-encoded
	Passphrase  string `mapstructure:"passphrase"`
}

// FeedConfig controls which products are mirrored and how the
// snapshot/stream reconciliation behaves.
//
//   - Products: product ids subscribed at startup.
//   - Strict: when true, events for unsubscribed products are dropped
//     instead of lazily creating a book.
//   - SnapshotTimeout: per-fetch deadline for the level-3 snapshot.
//   - MaxRetries: reconciliation attempts before a book is parked.
//   - ReplayBufferCap: events buffered while a snapshot is in flight.
//   - LargeNotional: order notional above which adds/removes log at info.
//   - HeartbeatTimeout: feed staleness alarm threshold.
type FeedConfig struct {
	Products         []string      `mapstructure:"products"`
	Strict           bool          `mapstructure:"strict"`
	SnapshotTimeout  time.Duration `mapstructure:"snapshot_timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
	ReplayBufferCap  int           `mapstructure:"replay_buffer_cap"`
	LargeNotional    float64       `mapstructure:"large_notional"`
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the HTTP server exposing book snapshots,
// health, and metrics.
type DashboardConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
	Depth   int  `mapstructure:"depth"` // levels per side in /api/book responses
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: CB_API_KEY, CB_API_SECRET, CB_PASSPHRASE.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("CB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("feed.snapshot_timeout", 10*time.Second)
	v.SetDefault("feed.max_retries", 5)
	v.SetDefault("feed.replay_buffer_cap", 4096)
	v.SetDefault("feed.heartbeat_timeout", 30*time.Second)
	v.SetDefault("dashboard.depth", 20)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Override sensitive fields from env
	if key := os.Getenv("CB_API_KEY"); key != "" {
		cfg.API.Key = key
	}
	if secret := os.Getenv("CB_API_SECRET"); secret != "" {
		cfg.API.Secret = secret
	}
	if pass := os.Getenv("CB_PASSPHRASE"); pass != "" {
		cfg.API.Passphrase = pass
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.API.RESTBaseURL == "" {
		return fmt.Errorf("api.rest_base_url is required")
	}
	if c.API.WSURL == "" {
		return fmt.Errorf("api.ws_url is required")
	}
	if c.API.Key == "" || c.API.Secret == "" || c.API.Passphrase == "" {
		return fmt.Errorf("api credentials are required (set CB_API_KEY, CB_API_SECRET, CB_PASSPHRASE)")
	}
	if len(c.Feed.Products) == 0 {
		return fmt.Errorf("feed.products must list at least one product")
	}
	if c.Feed.SnapshotTimeout <= 0 {
		return fmt.Errorf("feed.snapshot_timeout must be > 0")
	}
	if c.Feed.MaxRetries <= 0 {
		return fmt.Errorf("feed.max_retries must be > 0")
	}
	if c.Feed.ReplayBufferCap <= 0 {
		return fmt.Errorf("feed.replay_buffer_cap must be > 0")
	}
	if c.Dashboard.Enabled && c.Dashboard.Port == 0 {
		return fmt.Errorf("dashboard.port is required when dashboard.enabled")
	}
	return nil
}
