// Ludex - Personalized Game Catalog and Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ludex

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/ludex/config.yaml",
	"/etc/ludex/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "LUDEX_CONFIG_PATH"

// envPrefix namespaces all configuration environment variables.
const envPrefix = "LUDEX_"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    3858,
			Timeout: 30 * time.Second,
		},
		Catalog: CatalogConfig{
			BaseURL:       "https://steamspy.com/api.php",
			Timeout:       10 * time.Second,
			RateLimit:     4, // SteamSpy allows ~1 req/s sustained; burst headroom
			RetryAttempts: 5,

			BreakerMaxRequests: 3,
			BreakerInterval:    60 * time.Second,
			BreakerTimeout:     30 * time.Second,
			BreakerMaxFailures: 5,
		},
		Cache: CacheConfig{
			Path:          "/data/cache",
			TTL:           time.Hour,
			GraceMultiple: 24,
			SweepInterval: 10 * time.Minute,
		},
		Preferences: PreferencesConfig{
			Path:              "/data/preferences",
			MaxWeight:         100,
			HistorySize:       50,
			ClickIncrement:    1,
			WishlistIncrement: 5,
		},
		API: APIConfig{
			DefaultLimit:    20,
			MaxLimit:        100,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config File: optional YAML config file (if exists)
//  3. Environment Variables: override any setting
//
// Precedence: ENV > File > Defaults.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	// LUDEX_HTTP_PORT -> server.port, LUDEX_CACHE_TTL -> cache.ttl, etc.
	if err := k.Load(env.Provider(envPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Comma-separated env values for known slice fields
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices.
var sliceConfigPaths = []string{
	"api.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known
// slice fields. Env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML file or defaults)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc transforms LUDEX_-prefixed environment variable names
// to koanf config paths.
//
// Examples:
//   - LUDEX_HTTP_PORT -> server.port
//   - LUDEX_CATALOG_BASE_URL -> catalog.base_url
//   - LUDEX_CACHE_TTL -> cache.ttl
//   - LUDEX_PREFS_MAX_WEIGHT -> preferences.max_weight
func envTransformFunc(key string) string {
	key = strings.ToLower(key)
	key = strings.TrimPrefix(key, strings.ToLower(envPrefix))

	envMappings := map[string]string{
		// Server mappings
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",

		// Catalog client mappings
		"catalog_base_url":             "catalog.base_url",
		"catalog_timeout":              "catalog.timeout",
		"catalog_rate_limit":           "catalog.rate_limit",
		"catalog_retry_attempts":       "catalog.retry_attempts",
		"catalog_breaker_max_requests": "catalog.breaker_max_requests",
		"catalog_breaker_interval":     "catalog.breaker_interval",
		"catalog_breaker_timeout":      "catalog.breaker_timeout",
		"catalog_breaker_max_failures": "catalog.breaker_max_failures",

		// Cache mappings
		"cache_path":           "cache.path",
		"cache_ttl":            "cache.ttl",
		"cache_grace_multiple": "cache.grace_multiple",
		"cache_sweep_interval": "cache.sweep_interval",

		// Preference engine mappings
		"prefs_path":               "preferences.path",
		"prefs_max_weight":         "preferences.max_weight",
		"prefs_history_size":       "preferences.history_size",
		"prefs_click_increment":    "preferences.click_increment",
		"prefs_wishlist_increment": "preferences.wishlist_increment",

		// API mappings
		"api_default_limit":   "api.default_limit",
		"api_max_limit":       "api.max_limit",
		"rate_limit_requests": "api.rate_limit_reqs",
		"rate_limit_window":   "api.rate_limit_window",
		"cors_origins":        "api.cors_origins",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unmapped keys are skipped so random environment variables do not
	// pollute the config.
	return ""
}
