// Package config loads application configuration from environment variables.
// All variables use the STUDIO_ prefix.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	API      APIConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Log      LogConfig
}

// APIConfig holds settings for the course content API.
type APIConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// DatabaseConfig holds PostgreSQL connection settings for the authoring journal.
// An empty URL disables the journal.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Dragonfly/Redis settings for tree snapshots.
// An empty URL keeps snapshots in memory.
type CacheConfig struct {
	URL         string
	SnapshotTTL time.Duration
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level     string
	Format    string
	AddSource bool
}

// Load reads configuration from environment variables with STUDIO_ prefix.
func Load() (*Config, error) {
	cfg := &Config{
		API: APIConfig{
			BaseURL: envStr("STUDIO_API_BASE_URL", "http://localhost:8000/api"),
			Token:   envStr("STUDIO_API_TOKEN", ""),
			Timeout: time.Duration(envInt("STUDIO_API_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Database: DatabaseConfig{
			URL:      envStr("STUDIO_DATABASE_URL", ""),
			MaxConns: envInt("STUDIO_DATABASE_MAX_CONNS", 10),
			MinConns: envInt("STUDIO_DATABASE_MIN_CONNS", 1),
		},
		Cache: CacheConfig{
			URL:         envStr("STUDIO_CACHE_URL", ""),
			SnapshotTTL: time.Duration(envInt("STUDIO_CACHE_SNAPSHOT_TTL_HOURS", 72)) * time.Hour,
		},
		Log: LogConfig{
			Level:     envStr("STUDIO_LOG_LEVEL", "info"),
			Format:    envStr("STUDIO_LOG_FORMAT", "text"),
			AddSource: envBool("STUDIO_LOG_SOURCE", false),
		},
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("STUDIO_API_BASE_URL is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("STUDIO_API_BASE_URL must be an http(s) URL, got %q", c.API.BaseURL)
	}

	if c.API.Timeout <= 0 {
		return fmt.Errorf("STUDIO_API_TIMEOUT_SECONDS must be positive")
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("STUDIO_LOG_FORMAT must be 'json' or 'text', got %q", c.Log.Format)
	}

	return nil
}

// HasJournal reports whether a database is configured for the authoring journal.
func (c *Config) HasJournal() bool {
	return c.Database.URL != ""
}

// HasCache reports whether snapshots go to Redis instead of memory.
func (c *Config) HasCache() bool {
	return c.Cache.URL != ""
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}
