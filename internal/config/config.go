// Package config defines service configuration and its defaults.
package config

import (
	"fmt"
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// RulesFile replaces the embedded rule tables when set.
	RulesFile string `koanf:"rules_file"`

	// WatchRules reloads RulesFile whenever it changes.
	WatchRules bool `koanf:"watch_rules"`

	// QueueSize bounds the in-memory batch queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of batch workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many batch idempotency keys are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxBatchSize caps the candidates of one batch.
	MaxBatchSize int `koanf:"max_batch_size"`

	// MaxRankingLimit caps GET /tenders/{id}/ranking?limit.
	MaxRankingLimit int `koanf:"max_ranking_limit"`

	// ShareTolerance bounds |sum(shares) - 1| for strict-share requests.
	ShareTolerance float64 `koanf:"share_tolerance"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":9080",
		QueueSize:       10_000,
		WorkerCount:     runtime.NumCPU(),
		DedupeSize:      50_000,
		MaxBatchSize:    500,
		MaxRankingLimit: 1000,
		ShareTolerance:  1e-4,
		ShutdownTimeout: 15 * time.Second,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.WatchRules && c.RulesFile == "":
		return fmt.Errorf("%w: watch_rules needs rules_file", ErrInvalidConfig)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.DedupeSize < 1:
		return fmt.Errorf("%w: dedupe_size must be positive", ErrInvalidConfig)
	case c.MaxBatchSize < 1:
		return fmt.Errorf("%w: max_batch_size must be positive", ErrInvalidConfig)
	case c.MaxRankingLimit < 1:
		return fmt.Errorf("%w: max_ranking_limit must be positive", ErrInvalidConfig)
	case c.ShareTolerance <= 0:
		return fmt.Errorf("%w: share_tolerance must be positive", ErrInvalidConfig)
	case c.ShutdownTimeout <= 0:
		return fmt.Errorf("%w: shutdown_timeout must be positive", ErrInvalidConfig)
	}
	return nil
}
