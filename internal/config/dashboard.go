package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mkurosawa/receiptd/pkg/middleware"
)

const (
	EnvDashboardBasePath     = "RECEIPTD_DASHBOARD_BASE_PATH"
	EnvDashboardPollInterval = "RECEIPTD_DASHBOARD_POLL_INTERVAL"
)

// DashboardConfig holds the dashboard API parameters.
type DashboardConfig struct {
	BasePath     string                `toml:"base_path"`
	PollInterval string                `toml:"poll_interval"`
	CORS         middleware.CORSConfig `toml:"cors"`
}

// PollIntervalDuration returns PollInterval as a time.Duration. This
// is how often /api/stream samples the database data version.
func (c *DashboardConfig) PollIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.PollInterval)
	return d
}

// Finalize applies defaults, environment overrides, and validation.
func (c *DashboardConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *DashboardConfig) Merge(overlay *DashboardConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.PollInterval != "" {
		c.PollInterval = overlay.PollInterval
	}
	if len(overlay.CORS.AllowedOrigins) > 0 {
		c.CORS.AllowedOrigins = overlay.CORS.AllowedOrigins
	}
	if len(overlay.CORS.AllowedMethods) > 0 {
		c.CORS.AllowedMethods = overlay.CORS.AllowedMethods
	}
	if len(overlay.CORS.AllowedHeaders) > 0 {
		c.CORS.AllowedHeaders = overlay.CORS.AllowedHeaders
	}
}

func (c *DashboardConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.PollInterval == "" {
		c.PollInterval = "2s"
	}
}

func (c *DashboardConfig) loadEnv() {
	if v := os.Getenv(EnvDashboardBasePath); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv(EnvDashboardPollInterval); v != "" {
		c.PollInterval = v
	}
}

func (c *DashboardConfig) validate() error {
	if c.BasePath == "" || c.BasePath[0] != '/' {
		return fmt.Errorf("base_path must start with /: %s", c.BasePath)
	}
	if _, err := time.ParseDuration(c.PollInterval); err != nil {
		return fmt.Errorf("invalid poll_interval: %w", err)
	}
	return nil
}
