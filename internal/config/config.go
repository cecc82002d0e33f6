// Ludex - Personalized Game Catalog and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludex

// Package config loads and validates the Ludex server configuration.
//
// Configuration is layered with koanf v2: built-in defaults, then an
// optional YAML config file, then environment variables. Later layers
// override earlier ones.
package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config is the root configuration for the Ludex server.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Catalog     CatalogConfig     `koanf:"catalog"`
	Cache       CacheConfig       `koanf:"cache"`
	Preferences PreferencesConfig `koanf:"preferences"`
	API         APIConfig         `koanf:"api"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// CatalogConfig holds settings for the remote catalog client.
type CatalogConfig struct {
	// BaseURL is the remote catalog API root.
	BaseURL string `koanf:"base_url"`

	// Timeout bounds every remote call; exceeding it surfaces as an
	// unavailable condition, never an indefinite hang.
	Timeout time.Duration `koanf:"timeout"`

	// RateLimit is the maximum outbound requests per second toward the
	// remote store. Zero disables client-side rate limiting.
	RateLimit float64 `koanf:"rate_limit"`

	// RetryAttempts is how many times a rate-limited (429) request is
	// retried with exponential backoff before giving up.
	RetryAttempts int `koanf:"retry_attempts"`

	// Circuit breaker settings for the wrapped client.
	BreakerMaxRequests uint32        `koanf:"breaker_max_requests"`
	BreakerInterval    time.Duration `koanf:"breaker_interval"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout"`
	BreakerMaxFailures uint32        `koanf:"breaker_max_failures"`
}

// CacheConfig holds settings for the local read-through cache.
type CacheConfig struct {
	// Path is the badger directory for the cache store.
	Path string `koanf:"path"`

	// TTL is the duration after which a cached snapshot is no longer
	// considered fresh.
	TTL time.Duration `koanf:"ttl"`

	// GraceMultiple bounds both the eviction sweep and degraded-mode
	// serving: entries older than TTL*GraceMultiple are removed by the
	// sweeper and refused even when the remote store is unreachable.
	GraceMultiple int `koanf:"grace_multiple"`

	// SweepInterval is how often the background sweep runs.
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// PreferencesConfig holds settings for the preference learning engine.
type PreferencesConfig struct {
	// Path is the badger directory for the preference store.
	Path string `koanf:"path"`

	// MaxWeight clamps every learned category weight to [-MaxWeight, MaxWeight].
	MaxWeight int `koanf:"max_weight"`

	// HistorySize bounds the per-user clicked-items sequence.
	HistorySize int `koanf:"history_size"`

	// ClickIncrement and WishlistIncrement are the per-interaction weight
	// deltas applied to each category tag of the interacted item.
	ClickIncrement    int `koanf:"click_increment"`
	WishlistIncrement int `koanf:"wishlist_increment"`
}

// APIConfig holds settings for the HTTP API surface.
type APIConfig struct {
	DefaultLimit    int           `koanf:"default_limit"`
	MaxLimit        int           `koanf:"max_limit"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// GraceWindow returns the absolute age beyond which a cache entry is
// neither kept by the sweeper nor served under degraded mode.
func (c *CacheConfig) GraceWindow() time.Duration {
	return c.TTL * time.Duration(c.GraceMultiple)
}

// Validate checks the configuration for invalid or inconsistent values.
// It is called by LoadWithKoanf after all layers have been applied.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %v", c.Server.Timeout)
	}

	if c.Catalog.BaseURL == "" {
		return fmt.Errorf("catalog.base_url is required")
	}
	if _, err := url.ParseRequestURI(c.Catalog.BaseURL); err != nil {
		return fmt.Errorf("catalog.base_url is not a valid URL: %w", err)
	}
	if c.Catalog.Timeout <= 0 {
		return fmt.Errorf("catalog.timeout must be positive, got %v", c.Catalog.Timeout)
	}
	if c.Catalog.RateLimit < 0 {
		return fmt.Errorf("catalog.rate_limit must not be negative, got %v", c.Catalog.RateLimit)
	}
	if c.Catalog.RetryAttempts < 0 {
		return fmt.Errorf("catalog.retry_attempts must not be negative, got %d", c.Catalog.RetryAttempts)
	}

	if c.Cache.Path == "" {
		return fmt.Errorf("cache.path is required")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %v", c.Cache.TTL)
	}
	if c.Cache.GraceMultiple < 1 {
		return fmt.Errorf("cache.grace_multiple must be at least 1, got %d", c.Cache.GraceMultiple)
	}
	if c.Cache.SweepInterval <= 0 {
		return fmt.Errorf("cache.sweep_interval must be positive, got %v", c.Cache.SweepInterval)
	}

	if c.Preferences.Path == "" {
		return fmt.Errorf("preferences.path is required")
	}
	if c.Preferences.Path == c.Cache.Path {
		return fmt.Errorf("preferences.path and cache.path must be distinct badger directories")
	}
	if c.Preferences.MaxWeight < 1 {
		return fmt.Errorf("preferences.max_weight must be at least 1, got %d", c.Preferences.MaxWeight)
	}
	if c.Preferences.HistorySize < 1 {
		return fmt.Errorf("preferences.history_size must be at least 1, got %d", c.Preferences.HistorySize)
	}
	if c.Preferences.ClickIncrement < 1 {
		return fmt.Errorf("preferences.click_increment must be at least 1, got %d", c.Preferences.ClickIncrement)
	}
	if c.Preferences.WishlistIncrement < 1 {
		return fmt.Errorf("preferences.wishlist_increment must be at least 1, got %d", c.Preferences.WishlistIncrement)
	}

	if c.API.DefaultLimit < 1 {
		return fmt.Errorf("api.default_limit must be at least 1, got %d", c.API.DefaultLimit)
	}
	if c.API.MaxLimit < c.API.DefaultLimit {
		return fmt.Errorf("api.max_limit (%d) must not be below api.default_limit (%d)",
			c.API.MaxLimit, c.API.DefaultLimit)
	}
	if c.API.RateLimitReqs < 0 {
		return fmt.Errorf("api.rate_limit_reqs must not be negative, got %d", c.API.RateLimitReqs)
	}

	switch c.Logging.Level {
	case "", "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("logging.level %q is not a valid level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}

	return nil
}
