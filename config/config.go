// Package config loads runtime configuration from the environment using the
// QUORUM_ prefix. Functional options on the façade override individual
// values per instance; the environment sets process-wide defaults.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// Config holds the tunable runtime parameters of a Quorum instance.
type Config struct {
	// DefaultDeadline bounds a round when the caller does not pass one.
	DefaultDeadline time.Duration `envconfig:"DEFAULT_DEADLINE" default:"30s"`

	// AuditMaxRetries is the redelivery budget of the audit relay.
	AuditMaxRetries int `envconfig:"AUDIT_MAX_RETRIES" default:"5" validate:"gte=0"`

	// AuditBaseBackoff is the audit relay's first retry delay.
	AuditBaseBackoff time.Duration `envconfig:"AUDIT_BASE_BACKOFF" default:"50ms"`

	// AuditMaxBackoff caps the audit relay's retry delay.
	AuditMaxBackoff time.Duration `envconfig:"AUDIT_MAX_BACKOFF" default:"2s"`

	// MemoryMaxRetries is the memory relay's writeback retry budget.
	MemoryMaxRetries int `envconfig:"MEMORY_MAX_RETRIES" default:"3" validate:"gte=0"`

	// CheckpointInterval is the default every-N-turns writeback cadence for
	// new sessions. Zero disables interval checkpoints.
	CheckpointInterval int `envconfig:"CHECKPOINT_INTERVAL" default:"5" validate:"gte=0"`

	// InsightThreshold is the default regeneration threshold for new
	// sessions.
	InsightThreshold float64 `envconfig:"INSIGHT_THRESHOLD" default:"40" validate:"gte=0,lte=100"`

	// FeedVerbosity is the default feed verbosity for new sessions.
	FeedVerbosity string `envconfig:"FEED_VERBOSITY" default:"default" validate:"oneof=minimal default verbose"`
}

// Default returns the built-in configuration without consulting the
// environment.
func Default() Config {
	return Config{
		DefaultDeadline:    30 * time.Second,
		AuditMaxRetries:    5,
		AuditBaseBackoff:   50 * time.Millisecond,
		AuditMaxBackoff:    2 * time.Second,
		MemoryMaxRetries:   3,
		CheckpointInterval: 5,
		InsightThreshold:   40,
		FeedVerbosity:      "default",
	}
}

// Load reads QUORUM_* environment variables over the built-in defaults and
// validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("quorum", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process environment: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
