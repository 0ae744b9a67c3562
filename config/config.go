// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Schemas  SchemasConfig  `yaml:"schemas"`
	Client   ClientConfig   `yaml:"client"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig configures the entry store backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite", "bolt", or "memory"
	DSN    string `yaml:"dsn"`
}

// SchemasConfig configures where schema definitions are loaded from.
type SchemasConfig struct {
	Dir string `yaml:"dir"`
}

// ClientConfig configures outbound CRUD clients built from this config.
type ClientConfig struct {
	Retries    int           `yaml:"retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	Timeout    time.Duration `yaml:"timeout"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable /metrics endpoint
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(&cfg)

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
// This is useful for Docker deployments where no config file is needed.
//
// Environment variables:
//
//	SCHEMAREST_SERVER_HOST     - Server host (default: 0.0.0.0)
//	SCHEMAREST_SERVER_PORT     - Server port (default: 8080)
//	SCHEMAREST_DATABASE_DRIVER - Store driver: sqlite, bolt, memory (default: sqlite)
//	SCHEMAREST_DATABASE_DSN    - Store path (default: schemarest.db)
//	SCHEMAREST_SCHEMAS_DIR     - Schema definitions directory (default: schemas)
//	SCHEMAREST_LOG_LEVEL       - Log level: debug, info, warn, error (default: info)
//	SCHEMAREST_LOG_FORMAT      - Log format: json or console (default: json)
//	SCHEMAREST_METRICS_ENABLED - Enable /metrics endpoint (default: true)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment variables.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies SCHEMAREST_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Server configuration
	if v := os.Getenv("SCHEMAREST_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SCHEMAREST_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SCHEMAREST_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("SCHEMAREST_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// Database configuration
	if v := os.Getenv("SCHEMAREST_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("SCHEMAREST_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	// Schema configuration
	if v := os.Getenv("SCHEMAREST_SCHEMAS_DIR"); v != "" {
		cfg.Schemas.Dir = v
	}

	// Client configuration
	if v := os.Getenv("SCHEMAREST_CLIENT_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Client.Retries = n
		}
	}
	if v := os.Getenv("SCHEMAREST_CLIENT_RETRY_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Client.RetryDelay = d
		}
	}
	if v := os.Getenv("SCHEMAREST_CLIENT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Client.Timeout = d
		}
	}

	// Logging configuration
	if v := os.Getenv("SCHEMAREST_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SCHEMAREST_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("SCHEMAREST_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("SCHEMAREST_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver != "memory" {
		cfg.Database.DSN = "schemarest.db"
	}

	if cfg.Schemas.Dir == "" {
		cfg.Schemas.Dir = "schemas"
	}

	if cfg.Client.Retries == 0 {
		cfg.Client.Retries = 3
	}
	if cfg.Client.RetryDelay == 0 {
		cfg.Client.RetryDelay = 500 * time.Millisecond
	}
	if cfg.Client.Timeout == 0 {
		cfg.Client.Timeout = 10 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	validDrivers := map[string]bool{"sqlite": true, "bolt": true, "memory": true}
	if !validDrivers[cfg.Database.Driver] {
		return fmt.Errorf("database.driver must be 'sqlite', 'bolt', or 'memory', got %q", cfg.Database.Driver)
	}
	if cfg.Database.Driver != "memory" && cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for driver %q", cfg.Database.Driver)
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [0, 65535], got %d", cfg.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	if cfg.Client.Retries < 0 {
		return fmt.Errorf("client.retries must not be negative")
	}

	return nil
}
