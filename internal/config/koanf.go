// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

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

// DefaultConfigPaths lists the paths where a config file is searched for,
// in priority order. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/meraki-exporter/config.yaml",
	"/etc/meraki-exporter/config.yml",
}

// ConfigPathEnvVar overrides the config file search with an explicit path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with every optional field at its
// production-sane default. Defaults load first; file and env layers
// override them.
func defaultConfig() *Config {
	return &Config{
		Meraki: MerakiConfig{
			APIBaseURL: "https://api.meraki.com/api/v1",
		},
		API: APIConfig{
			Timeout:            30 * time.Second,
			MaxRetries:         5,
			ConcurrencyLimit:   5,
			BatchSize:          10,
			BatchDelay:         200 * time.Millisecond,
			RateLimitRetryWait: time.Second,
		},
		UpdateIntervals: UpdateIntervalsConfig{
			Fast:   60 * time.Second,
			Medium: 300 * time.Second,
			Slow:   900 * time.Second,
		},
		Collectors: CollectorsConfig{
			CollectorTimeout: 2 * time.Minute,
		},
		Monitoring: MonitoringConfig{
			MetricTTLMultiplier:          2.5,
			HistogramBuckets:             []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			LicenseExpirationWarningDays: 30,
		},
		Clients: ClientsConfig{
			Enabled:              false,
			CacheTTL:             5 * time.Minute,
			DNSResolutionEnabled: false,
			DNSResolutionTimeout: 2 * time.Second,
			MaxClientsPerNetwork: 500,
		},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              9458,
			PathPrefix:        "",
			EnableHealthCheck: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// sliceConfigPaths names the koanf paths that accept a comma-separated
// string from the environment and must be split into a slice.
var sliceConfigPaths = []string{
	"collectors.enabled_collectors",
	"collectors.disable_collectors",
	"monitoring.histogram_buckets",
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config File: optional YAML file, if present
//  3. Environment Variables: highest priority, "__" delimited for nesting
//
// Env var names map directly onto the nested struct tags by lower-casing
// and replacing "__" with ".": MERAKI__API_KEY becomes meraki.api_key,
// UPDATE_INTERVALS__FAST becomes update_intervals.fast.
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

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

// findConfigFile searches for a config file in the default paths, honoring
// CONFIG_PATH as an override.
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

// processSliceFields converts comma-separated string values (as they
// arrive from the environment) into slices for the known slice fields.
// Values already loaded as slices from a YAML file pass through untouched.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		if _, ok := val.([]float64); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
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
	return nil
}

// envTransformFunc maps an environment variable name to its koanf path by
// lower-casing it and replacing the "__" section delimiter with ".".
// A bare "_" is left as a word separator within a section name, so
// MERAKI__API_KEY -> meraki.api_key and UPDATE_INTERVALS__FAST ->
// update_intervals.fast.
func envTransformFunc(key string) string {
	return strings.ReplaceAll(strings.ToLower(key), "__", ".")
}

// GetKoanfInstance returns a fresh Koanf instance for advanced or test use.
func GetKoanfInstance() *koanf.Koanf {
	return koanf.New(".")
}
