package config

import (
	"fmt"
	"os"
	"time"
)

const (
	EnvGeminiProject         = "RECEIPTD_GEMINI_PROJECT"
	EnvGeminiRegion          = "RECEIPTD_GEMINI_REGION"
	EnvGeminiExtractionModel = "RECEIPTD_GEMINI_EXTRACTION_MODEL"
	EnvGeminiEvaluationModel = "RECEIPTD_GEMINI_EVALUATION_MODEL"
)

// GeminiConfig holds the Vertex AI parameters for the vision
// extraction and evaluation models. Credentials come from the
// standard GOOGLE_APPLICATION_CREDENTIALS chain; this struct is
// constructed once at startup and passed into the capability
// implementations.
type GeminiConfig struct {
	Project         string `toml:"project"`
	Region          string `toml:"region"`
	ExtractionModel string `toml:"extraction_model"`
	EvaluationModel string `toml:"evaluation_model"`
	CallTimeout     string `toml:"call_timeout"`
}

// CallTimeoutDuration returns CallTimeout as a time.Duration.
func (c *GeminiConfig) CallTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.CallTimeout)
	return d
}

// Finalize applies defaults, environment overrides, and validation.
func (c *GeminiConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *GeminiConfig) Merge(overlay *GeminiConfig) {
	if overlay.Project != "" {
		c.Project = overlay.Project
	}
	if overlay.Region != "" {
		c.Region = overlay.Region
	}
	if overlay.ExtractionModel != "" {
		c.ExtractionModel = overlay.ExtractionModel
	}
	if overlay.EvaluationModel != "" {
		c.EvaluationModel = overlay.EvaluationModel
	}
	if overlay.CallTimeout != "" {
		c.CallTimeout = overlay.CallTimeout
	}
}

func (c *GeminiConfig) loadDefaults() {
	if c.Region == "" {
		c.Region = "us-central1"
	}
	if c.ExtractionModel == "" {
		c.ExtractionModel = "gemini-2.0-flash"
	}
	if c.EvaluationModel == "" {
		c.EvaluationModel = "gemini-2.5-flash"
	}
	if c.CallTimeout == "" {
		c.CallTimeout = "2m"
	}
}

func (c *GeminiConfig) loadEnv() {
	if v := os.Getenv(EnvGeminiProject); v != "" {
		c.Project = v
	}
	if v := os.Getenv(EnvGeminiRegion); v != "" {
		c.Region = v
	}
	if v := os.Getenv(EnvGeminiExtractionModel); v != "" {
		c.ExtractionModel = v
	}
	if v := os.Getenv(EnvGeminiEvaluationModel); v != "" {
		c.EvaluationModel = v
	}
}

func (c *GeminiConfig) validate() error {
	if _, err := time.ParseDuration(c.CallTimeout); err != nil {
		return fmt.Errorf("invalid call_timeout: %w", err)
	}
	return nil
}
