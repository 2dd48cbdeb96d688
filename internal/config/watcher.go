package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvWatcherWorkers           = "RECEIPTD_WATCHER_WORKERS"
	EnvWatcherQueueSize         = "RECEIPTD_WATCHER_QUEUE_SIZE"
	EnvWatcherStabilityChecks   = "RECEIPTD_WATCHER_STABILITY_CHECKS"
	EnvWatcherStabilityInterval = "RECEIPTD_WATCHER_STABILITY_INTERVAL"
)

// WatcherConfig holds the worker pool and file-stability parameters.
// Workers defaults to 1: pipeline runs are serialized to avoid
// database contention and model rate limits.
type WatcherConfig struct {
	Workers           int    `toml:"workers"`
	QueueSize         int    `toml:"queue_size"`
	StabilityChecks   int    `toml:"stability_checks"`
	StabilityInterval string `toml:"stability_interval"`
}

// StabilityIntervalDuration returns StabilityInterval as a time.Duration.
func (c *WatcherConfig) StabilityIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.StabilityInterval)
	return d
}

// Finalize applies defaults, environment overrides, and validation.
func (c *WatcherConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *WatcherConfig) Merge(overlay *WatcherConfig) {
	if overlay.Workers != 0 {
		c.Workers = overlay.Workers
	}
	if overlay.QueueSize != 0 {
		c.QueueSize = overlay.QueueSize
	}
	if overlay.StabilityChecks != 0 {
		c.StabilityChecks = overlay.StabilityChecks
	}
	if overlay.StabilityInterval != "" {
		c.StabilityInterval = overlay.StabilityInterval
	}
}

func (c *WatcherConfig) loadDefaults() {
	if c.Workers == 0 {
		c.Workers = 1
	}
	if c.QueueSize == 0 {
		c.QueueSize = 64
	}
	if c.StabilityChecks == 0 {
		c.StabilityChecks = 3
	}
	if c.StabilityInterval == "" {
		c.StabilityInterval = "300ms"
	}
}

func (c *WatcherConfig) loadEnv() {
	if v := os.Getenv(EnvWatcherWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		}
	}
	if v := os.Getenv(EnvWatcherQueueSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.QueueSize = n
		}
	}
	if v := os.Getenv(EnvWatcherStabilityChecks); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.StabilityChecks = n
		}
	}
	if v := os.Getenv(EnvWatcherStabilityInterval); v != "" {
		c.StabilityInterval = v
	}
}

func (c *WatcherConfig) validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1: %d", c.Workers)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1: %d", c.QueueSize)
	}
	if c.StabilityChecks < 1 {
		return fmt.Errorf("stability_checks must be at least 1: %d", c.StabilityChecks)
	}
	if _, err := time.ParseDuration(c.StabilityInterval); err != nil {
		return fmt.Errorf("invalid stability_interval: %w", err)
	}
	return nil
}
