package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// API configuration for the transformation service
	API APIConfig `json:"api"`

	// Storage paths and quota
	Storage StorageConfig `json:"storage"`

	// Image processing behavior
	Images ImageConfig `json:"images"`

	// Logging
	Log LogConfig `json:"log"`
}

// APIConfig for the transformation service endpoint.
type APIConfig struct {
	BaseURL    string        `json:"base_url"`
	Model      string        `json:"model"`
	Timeout    time.Duration `json:"timeout"`
	UserAgent  string        `json:"user_agent"`
	MaxRetries int           `json:"max_retries"`
}

// StorageConfig for local persistence.
type StorageConfig struct {
	DataDir       string `json:"data_dir"`       // Base directory for all data
	MaxTotalSize  int64  `json:"max_total_size"`  // Quota ceiling in bytes
	WarnThreshold int64  `json:"warn_threshold"` // Warn when usage passes this
	AutoCleanup   bool   `json:"auto_cleanup"`   // Evict oldest non-favorites when full
}

// ImageConfig for compression and thumbnailing.
type ImageConfig struct {
	MaxDimension     int     `json:"max_dimension"`     // Bound for stored images
	Quality          float64 `json:"quality"`           // 0-1 fidelity knob
	ThumbnailSize    int     `json:"thumbnail_size"`    // Square thumbnail edge in px
	ThumbnailQuality float64 `json:"thumbnail_quality"` // 0-1
	Workers          int     `json:"workers"`           // Concurrent image operations
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // text, json
	File   string `json:"file"`   // Log file path (empty = stdout)
}

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() *Config {
	dataDir := ".artvault"

	return &Config{
		API: APIConfig{
			BaseURL:    "https://generativelanguage.googleapis.com/v1beta",
			Model:      "gemini-2.0-flash",
			Timeout:    30 * time.Second,
			UserAgent:  "artvault/1.0",
			MaxRetries: 3,
		},
		Storage: StorageConfig{
			DataDir:       dataDir,
			MaxTotalSize:  500 * 1024 * 1024, // 500MB
			WarnThreshold: 400 * 1024 * 1024, // 400MB
			AutoCleanup:   true,
		},
		Images: ImageConfig{
			MaxDimension:     1600,
			Quality:          0.8,
			ThumbnailSize:    200,
			ThumbnailQuality: 0.7,
			Workers:          2,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			File:   "",
		},
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}

	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be positive")
	}

	if c.Storage.MaxTotalSize <= 0 {
		return errors.New("storage.max_total_size must be positive")
	}

	if c.Storage.WarnThreshold > c.Storage.MaxTotalSize {
		return errors.New("storage.warn_threshold must not exceed max_total_size")
	}

	if c.Images.MaxDimension <= 0 {
		return errors.New("images.max_dimension must be positive")
	}

	if c.Images.Quality <= 0 || c.Images.Quality > 1 {
		return errors.New("images.quality must be in (0, 1]")
	}

	if c.Images.ThumbnailSize <= 0 {
		return errors.New("images.thumbnail_size must be positive")
	}

	if c.Images.Workers <= 0 {
		return errors.New("images.workers must be positive")
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Storage.DataDir}

	if c.Log.File != "" {
		dirs = append(dirs, filepath.Dir(c.Log.File))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// DatabasePath returns the path of the project database file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Storage.DataDir, "artvault.db")
}

// KeystorePath returns the path of the encrypted key database file.
func (c *Config) KeystorePath() string {
	return filepath.Join(c.Storage.DataDir, "keystore.db")
}

// FallbackKeystorePath returns the degraded-tier key record file.
func (c *Config) FallbackKeystorePath() string {
	return filepath.Join(c.Storage.DataDir, "keystore.json")
}
