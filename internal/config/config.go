// Package config holds the tracker's runtime configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds configuration for the suggestion lifecycle tracker
type Config struct {
	// StoreCapacity is the number of in-flight request records kept
	// resident; the least-recently-used record is evicted beyond this.
	// Default: 20, Range: 1-10000
	StoreCapacity int `yaml:"store_capacity"`

	// ErrorWindow is the suppression window for repeated identical
	// errors: one immediate event plus one trailing summary per window.
	// Default: 10m
	ErrorWindow time.Duration `yaml:"error_window"`

	// MaxLoggedPredictionLength is the longest prediction text that may
	// be copied into an analytics payload. Longer predictions stay on
	// the record but are dropped from the payload.
	// Default: 300, Range: 0-10000 (0 disables payload predictions)
	MaxLoggedPredictionLength int `yaml:"max_logged_prediction_length"`

	// InternalUser gates prediction text in payloads: prediction text is
	// only telemetry-safe for internal authentication contexts.
	// Default: false
	InternalUser bool `yaml:"internal_user"`

	// PanelUpdatesPerSecond bounds debug panel updates; excess updates
	// are dropped. 0 disables throttling.
	// Default: 5, Range: 0-1000
	PanelUpdatesPerSecond float64 `yaml:"panel_updates_per_second"`

	// SinkQueueSize is the emit buffer of the asynchronous SQLite sink.
	// Default: 256, Range: 16-65536
	SinkQueueSize int `yaml:"sink_queue_size"`
}

// DefaultConfig returns the default tracker configuration
//
// These defaults are chosen to:
// - Keep hot requests resident for late terminal events (20 records)
// - Bound error event volume (10 minute suppression window)
// - Avoid leaking large or sensitive code into payloads (300 chars,
//   external users excluded)
// - Keep introspection and persistence off the hot path
func DefaultConfig() Config {
	return Config{
		StoreCapacity:             20,
		ErrorWindow:               10 * time.Minute,
		MaxLoggedPredictionLength: 300,
		InternalUser:              false,
		PanelUpdatesPerSecond:     5,
		SinkQueueSize:             256,
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.StoreCapacity < 1 {
		return fmt.Errorf("store_capacity must be at least 1 (got %d)", c.StoreCapacity)
	}
	if c.StoreCapacity > 10000 {
		return fmt.Errorf("store_capacity too large (got %d, max 10000)", c.StoreCapacity)
	}
	if c.ErrorWindow <= 0 {
		return fmt.Errorf("error_window must be positive (got %v)", c.ErrorWindow)
	}
	if c.ErrorWindow > 24*time.Hour {
		return fmt.Errorf("error_window too large (got %v, max 24h)", c.ErrorWindow)
	}
	if c.MaxLoggedPredictionLength < 0 {
		return fmt.Errorf("max_logged_prediction_length cannot be negative (got %d)",
			c.MaxLoggedPredictionLength)
	}
	if c.MaxLoggedPredictionLength > 10000 {
		return fmt.Errorf("max_logged_prediction_length too large (got %d, max 10000)",
			c.MaxLoggedPredictionLength)
	}
	if c.PanelUpdatesPerSecond < 0 {
		return fmt.Errorf("panel_updates_per_second cannot be negative (got %g)",
			c.PanelUpdatesPerSecond)
	}
	if c.PanelUpdatesPerSecond > 1000 {
		return fmt.Errorf("panel_updates_per_second too large (got %g, max 1000)",
			c.PanelUpdatesPerSecond)
	}
	if c.SinkQueueSize < 16 {
		return fmt.Errorf("sink_queue_size must be at least 16 (got %d)", c.SinkQueueSize)
	}
	if c.SinkQueueSize > 65536 {
		return fmt.Errorf("sink_queue_size too large (got %d, max 65536)", c.SinkQueueSize)
	}
	return nil
}

// String returns a human-readable representation of the config
func (c Config) String() string {
	return fmt.Sprintf(
		"Config{StoreCapacity: %d, ErrorWindow: %v, MaxLoggedPredictionLength: %d, "+
			"InternalUser: %t, PanelUpdatesPerSecond: %g, SinkQueueSize: %d}",
		c.StoreCapacity, c.ErrorWindow, c.MaxLoggedPredictionLength,
		c.InternalUser, c.PanelUpdatesPerSecond, c.SinkQueueSize,
	)
}

// FromEnv creates a Config from environment variables, falling back to
// defaults
//
// Environment variables:
//   - AUTOEDIT_STORE_CAPACITY: Resident request records (default: 20)
//   - AUTOEDIT_ERROR_WINDOW: Error suppression window, Go duration (default: 10m)
//   - AUTOEDIT_MAX_LOGGED_PREDICTION_LENGTH: Payload prediction cap (default: 300)
//   - AUTOEDIT_INTERNAL_USER: Internal auth context (default: false)
//   - AUTOEDIT_PANEL_UPDATES_PER_SECOND: Debug panel rate (default: 5)
//   - AUTOEDIT_SINK_QUEUE_SIZE: SQLite sink buffer (default: 256)
//
// Returns an error if any environment variable has an invalid value.
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	if err := parseEnvInt("AUTOEDIT_STORE_CAPACITY", &cfg.StoreCapacity); err != nil {
		return cfg, err
	}
	if err := parseEnvDuration("AUTOEDIT_ERROR_WINDOW", &cfg.ErrorWindow); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("AUTOEDIT_MAX_LOGGED_PREDICTION_LENGTH", &cfg.MaxLoggedPredictionLength); err != nil {
		return cfg, err
	}
	if err := parseEnvBool("AUTOEDIT_INTERNAL_USER", &cfg.InternalUser); err != nil {
		return cfg, err
	}
	if err := parseEnvFloat("AUTOEDIT_PANEL_UPDATES_PER_SECOND", &cfg.PanelUpdatesPerSecond); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("AUTOEDIT_SINK_QUEUE_SIZE", &cfg.SinkQueueSize); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid tracker configuration from environment: %w", err)
	}
	return cfg, nil
}

// fileConfig is the YAML shape of a config file. Durations are written
// as Go duration strings ("10m"), which yaml cannot decode directly
// into time.Duration.
type fileConfig struct {
	StoreCapacity             *int     `yaml:"store_capacity"`
	ErrorWindow               *string  `yaml:"error_window"`
	MaxLoggedPredictionLength *int     `yaml:"max_logged_prediction_length"`
	InternalUser              *bool    `yaml:"internal_user"`
	PanelUpdatesPerSecond     *float64 `yaml:"panel_updates_per_second"`
	SinkQueueSize             *int     `yaml:"sink_queue_size"`
}

// LoadFile reads a YAML config file over the defaults. Keys absent from
// the file keep their default values.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	if file.StoreCapacity != nil {
		cfg.StoreCapacity = *file.StoreCapacity
	}
	if file.ErrorWindow != nil {
		window, err := time.ParseDuration(*file.ErrorWindow)
		if err != nil {
			return cfg, fmt.Errorf("invalid error_window in %s: %w", path, err)
		}
		cfg.ErrorWindow = window
	}
	if file.MaxLoggedPredictionLength != nil {
		cfg.MaxLoggedPredictionLength = *file.MaxLoggedPredictionLength
	}
	if file.InternalUser != nil {
		cfg.InternalUser = *file.InternalUser
	}
	if file.PanelUpdatesPerSecond != nil {
		cfg.PanelUpdatesPerSecond = *file.PanelUpdatesPerSecond
	}
	if file.SinkQueueSize != nil {
		cfg.SinkQueueSize = *file.SinkQueueSize
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid tracker configuration in %s: %w", path, err)
	}
	return cfg, nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvBool parses a bool from an environment variable
func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvFloat parses a float64 from an environment variable
func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvDuration parses a time.Duration from an environment variable
func parseEnvDuration(key string, dest *time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}
