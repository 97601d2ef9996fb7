// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

// Package config holds all application configuration loaded from environment
// variables and an optional YAML config file.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in sensible defaults for every optional setting
//  2. Config File: optional YAML config file for persistent settings
//  3. Environment Variables: override any setting, double-underscore
//     separated for nesting (MERAKI__API_KEY, UPDATE_INTERVALS__FAST)
//
// Configuration Categories:
//
//  1. Upstream: Meraki dashboard API key, organization scope, base URL
//  2. API: HTTP client tuning (timeout, retries, concurrency, batching)
//  3. UpdateIntervals: the three collection tier cadences
//  4. Collectors: enable/disable list and per-collector timeout
//  5. Monitoring: metric TTL multiplier and histogram bucket tuning
//  6. Clients: optional client-inventory collection and DNS resolution
//  7. Server: HTTP listener for /metrics and /health
//  8. Logging: log level and output format
//
// Config is immutable after Load() and safe for concurrent read access.
package config

import "time"

// Config is the root configuration object.
type Config struct {
	Meraki          MerakiConfig          `koanf:"meraki"`
	API             APIConfig             `koanf:"api"`
	UpdateIntervals UpdateIntervalsConfig `koanf:"update_intervals"`
	Collectors      CollectorsConfig      `koanf:"collectors"`
	Monitoring      MonitoringConfig      `koanf:"monitoring"`
	Clients         ClientsConfig         `koanf:"clients"`
	Server          ServerConfig          `koanf:"server"`
	Logging         LoggingConfig         `koanf:"logging"`
}

// MerakiConfig holds credentials and scope for the upstream dashboard API.
//
// Environment Variables:
//   - MERAKI__API_KEY: dashboard API key (required)
//   - MERAKI__ORG_ID: restrict collection to a single organization (optional;
//     empty means "all organizations visible to the API key")
//   - MERAKI__API_BASE_URL: dashboard API base URL, for regional shards or
//     mock servers in tests (default: https://api.meraki.com/api/v1)
type MerakiConfig struct {
	APIKey     string `koanf:"api_key"`
	OrgID      string `koanf:"org_id"`
	APIBaseURL string `koanf:"api_base_url"`
}

// APIConfig tunes the Upstream Client's HTTP behavior.
type APIConfig struct {
	Timeout            time.Duration `koanf:"timeout"`
	MaxRetries         int           `koanf:"max_retries"`
	ConcurrencyLimit   int           `koanf:"concurrency_limit"`
	BatchSize          int           `koanf:"batch_size"`
	BatchDelay         time.Duration `koanf:"batch_delay"`
	RateLimitRetryWait time.Duration `koanf:"rate_limit_retry_wait"`
}

// UpdateIntervalsConfig sets the cadence of each collection tier.
type UpdateIntervalsConfig struct {
	Fast   time.Duration `koanf:"fast"`
	Medium time.Duration `koanf:"medium"`
	Slow   time.Duration `koanf:"slow"`
}

// CollectorsConfig controls which collectors run and how long each is
// allowed to take before the manager cancels it.
//
// EnabledCollectors and DisableCollectors are mutually exclusive filters:
// if EnabledCollectors is non-empty, only those names run; otherwise every
// discovered collector runs except those named in DisableCollectors.
type CollectorsConfig struct {
	EnabledCollectors []string      `koanf:"enabled_collectors"`
	DisableCollectors []string      `koanf:"disable_collectors"`
	CollectorTimeout  time.Duration `koanf:"collector_timeout"`
}

// MonitoringConfig tunes metric lifecycle and histogram resolution.
type MonitoringConfig struct {
	MetricTTLMultiplier          float64   `koanf:"metric_ttl_multiplier"`
	HistogramBuckets             []float64 `koanf:"histogram_buckets"`
	LicenseExpirationWarningDays int       `koanf:"license_expiration_warning_days"`
}

// ClientsConfig controls the optional per-network client inventory
// collector, which is comparatively expensive and off by default.
type ClientsConfig struct {
	Enabled              bool          `koanf:"enabled"`
	CacheTTL             time.Duration `koanf:"cache_ttl"`
	DNSResolutionEnabled bool          `koanf:"dns_resolution_enabled"`
	DNSResolutionTimeout time.Duration `koanf:"dns_resolution_timeout"`
	MaxClientsPerNetwork int           `koanf:"max_clients_per_network"`
}

// ServerConfig configures the HTTP listener exposing /metrics and /health.
type ServerConfig struct {
	Host              string `koanf:"host"`
	Port              int    `koanf:"port"`
	PathPrefix        string `koanf:"path_prefix"`
	EnableHealthCheck bool   `koanf:"enable_health_check"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
