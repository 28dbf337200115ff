// Fieldport - Field Service Customer Portal Sync Engine
// Copyright 2026 Fieldport Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldport/fieldport

// Package config loads and validates Fieldport configuration using Koanf v2
// with layered sources: built-in defaults, an optional YAML config file, and
// environment variables (highest priority).
package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config is the root configuration for the Fieldport server.
type Config struct {
	Upstream UpstreamConfig `koanf:"upstream"`
	Database DatabaseConfig `koanf:"database"`
	Sync     SyncConfig     `koanf:"sync"`
	Server   ServerConfig   `koanf:"server"`
	Webhook  WebhookConfig  `koanf:"webhook"`
	Cache    CacheConfig    `koanf:"cache"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// UpstreamConfig configures the field-service API client.
type UpstreamConfig struct {
	// BaseURL is the single upstream API base URL, e.g. https://api.example.com/api_1.0
	BaseURL string `koanf:"base_url"`

	// APIKey is sent on every request in the X-API-Key header.
	APIKey string `koanf:"api_key"`

	// CredentialID identifies the credential for daily-quota accounting.
	// Defaults to a fingerprint of the API key when empty.
	CredentialID string `koanf:"credential_id"`

	// Timeout bounds each individual attempt, not the whole retry budget.
	Timeout time.Duration `koanf:"timeout"`

	// MaxAttempts is the total attempt budget for retryable errors.
	MaxAttempts int `koanf:"max_attempts"`

	// RetryBaseDelay is the exponential backoff base delay.
	RetryBaseDelay time.Duration `koanf:"retry_base_delay"`

	// RetryMaxDelay caps any single backoff wait.
	RetryMaxDelay time.Duration `koanf:"retry_max_delay"`

	// PaceRPS limits the client-side request rate within a sync run.
	PaceRPS float64 `koanf:"pace_rps"`

	// DailyQuota is the upstream's fixed daily request ceiling per credential.
	DailyQuota int `koanf:"daily_quota"`
}

// DatabaseConfig configures the DuckDB cache store.
type DatabaseConfig struct {
	Path                   string `koanf:"path"`
	MaxMemory              string `koanf:"max_memory"`
	Threads                int    `koanf:"threads"`
	PreserveInsertionOrder bool   `koanf:"preserve_insertion_order"`
}

// SyncConfig configures the sync orchestrator and staleness policy.
type SyncConfig struct {
	// MaxAge is the default staleness threshold for read-through refresh.
	MaxAge time.Duration `koanf:"max_age"`

	// JobConcurrency bounds in-flight per-job child fetches within one run.
	JobConcurrency int `koanf:"job_concurrency"`

	// PollEnabled turns on the background refresh poller.
	PollEnabled bool `koanf:"poll_enabled"`

	// PollInterval is how often the poller scans for stale customers.
	PollInterval time.Duration `koanf:"poll_interval"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// WebhookConfig configures the upstream webhook receiver.
type WebhookConfig struct {
	// Secret enables HMAC-SHA256 signature verification when non-empty.
	Secret string `koanf:"secret"`

	// TriggerSync starts an immediate background sync instead of only
	// marking the customer stale.
	TriggerSync bool `koanf:"trigger_sync"`

	// DedupeWindow is how long delivered webhook IDs are remembered.
	DedupeWindow time.Duration `koanf:"dedupe_window"`
}

// CacheConfig configures the upstream client's short-TTL response cache.
type CacheConfig struct {
	Enabled    bool          `koanf:"enabled"`
	JobTTL     time.Duration `koanf:"job_ttl"`
	CompanyTTL time.Duration `koanf:"company_ttl"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Addr returns the host:port listen address.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Validate checks the configuration for values that cannot work at runtime.
func (c *Config) Validate() error {
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	if u, err := url.Parse(c.Upstream.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("upstream.base_url %q is not a valid URL", c.Upstream.BaseURL)
	}
	if c.Upstream.APIKey == "" {
		return fmt.Errorf("upstream.api_key is required")
	}
	if c.Upstream.MaxAttempts < 1 {
		return fmt.Errorf("upstream.max_attempts must be at least 1, got %d", c.Upstream.MaxAttempts)
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream.timeout must be positive")
	}
	if c.Upstream.DailyQuota <= 0 {
		return fmt.Errorf("upstream.daily_quota must be positive, got %d", c.Upstream.DailyQuota)
	}
	if c.Sync.JobConcurrency < 1 {
		return fmt.Errorf("sync.job_concurrency must be at least 1, got %d", c.Sync.JobConcurrency)
	}
	if c.Sync.MaxAge <= 0 {
		return fmt.Errorf("sync.max_age must be positive")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	return nil
}
