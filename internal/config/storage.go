package config

import (
	"fmt"
	"os"
)

const (
	EnvStorageInputDir     = "RECEIPTD_STORAGE_INPUT_DIR"
	EnvStorageSuccessDir   = "RECEIPTD_STORAGE_SUCCESS_DIR"
	EnvStorageErrorDir     = "RECEIPTD_STORAGE_ERROR_DIR"
	EnvStorageImageDir     = "RECEIPTD_STORAGE_IMAGE_DIR"
	EnvStorageDatabasePath = "RECEIPTD_STORAGE_DATABASE_PATH"
)

// StorageConfig holds the filesystem layout: the watched input
// directory, the two terminal directories, the scratch image
// directory, and the SQLite database path.
type StorageConfig struct {
	InputDir     string `toml:"input_dir"`
	SuccessDir   string `toml:"success_dir"`
	ErrorDir     string `toml:"error_dir"`
	ImageDir     string `toml:"image_dir"`
	DatabasePath string `toml:"database_path"`
}

// EnsureDirs creates all configured directories if absent.
func (c *StorageConfig) EnsureDirs() error {
	for _, dir := range []string{c.InputDir, c.SuccessDir, c.ErrorDir, c.ImageDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Finalize applies defaults, environment overrides, and validation.
func (c *StorageConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *StorageConfig) Merge(overlay *StorageConfig) {
	if overlay.InputDir != "" {
		c.InputDir = overlay.InputDir
	}
	if overlay.SuccessDir != "" {
		c.SuccessDir = overlay.SuccessDir
	}
	if overlay.ErrorDir != "" {
		c.ErrorDir = overlay.ErrorDir
	}
	if overlay.ImageDir != "" {
		c.ImageDir = overlay.ImageDir
	}
	if overlay.DatabasePath != "" {
		c.DatabasePath = overlay.DatabasePath
	}
}

func (c *StorageConfig) loadDefaults() {
	if c.InputDir == "" {
		c.InputDir = "pdfs"
	}
	if c.SuccessDir == "" {
		c.SuccessDir = "success_pdfs"
	}
	if c.ErrorDir == "" {
		c.ErrorDir = "error_pdfs"
	}
	if c.ImageDir == "" {
		c.ImageDir = "images"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "receipts.db"
	}
}

func (c *StorageConfig) loadEnv() {
	if v := os.Getenv(EnvStorageInputDir); v != "" {
		c.InputDir = v
	}
	if v := os.Getenv(EnvStorageSuccessDir); v != "" {
		c.SuccessDir = v
	}
	if v := os.Getenv(EnvStorageErrorDir); v != "" {
		c.ErrorDir = v
	}
	if v := os.Getenv(EnvStorageImageDir); v != "" {
		c.ImageDir = v
	}
	if v := os.Getenv(EnvStorageDatabasePath); v != "" {
		c.DatabasePath = v
	}
}

func (c *StorageConfig) validate() error {
	dirs := map[string]string{
		"input_dir":   c.InputDir,
		"success_dir": c.SuccessDir,
		"error_dir":   c.ErrorDir,
		"image_dir":   c.ImageDir,
	}
	seen := make(map[string]string, len(dirs))
	for name, dir := range dirs {
		if prev, ok := seen[dir]; ok {
			return fmt.Errorf("%s and %s must differ (both %q)", prev, name, dir)
		}
		seen[dir] = name
	}
	return nil
}
