// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

package config

import "fmt"

// Validate checks that required configuration is present and that declared
// values are internally consistent. It is called by Load after every layer
// (defaults, file, env) has been merged, and returns a descriptive error
// for the first problem found; main treats a non-nil error as fatal and
// exits non-zero before starting any collection.
func (c *Config) Validate() error {
	if err := c.validateMeraki(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateUpdateIntervals(); err != nil {
		return err
	}
	if err := c.validateCollectors(); err != nil {
		return err
	}
	if err := c.validateMonitoring(); err != nil {
		return err
	}
	if err := c.validateClients(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateMeraki() error {
	if c.Meraki.APIKey == "" {
		return fmt.Errorf("MERAKI__API_KEY is required")
	}
	if c.Meraki.APIBaseURL == "" {
		return fmt.Errorf("MERAKI__API_BASE_URL must not be empty")
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.Timeout <= 0 {
		return fmt.Errorf("API__TIMEOUT must be positive")
	}
	if c.API.MaxRetries < 0 {
		return fmt.Errorf("API__MAX_RETRIES must be non-negative")
	}
	if c.API.ConcurrencyLimit <= 0 {
		return fmt.Errorf("API__CONCURRENCY_LIMIT must be positive")
	}
	if c.API.BatchSize <= 0 {
		return fmt.Errorf("API__BATCH_SIZE must be positive")
	}
	if c.API.BatchDelay < 0 {
		return fmt.Errorf("API__BATCH_DELAY must be non-negative")
	}
	if c.API.RateLimitRetryWait <= 0 {
		return fmt.Errorf("API__RATE_LIMIT_RETRY_WAIT must be positive")
	}
	return nil
}

// validateUpdateIntervals enforces FAST <= MEDIUM <= SLOW. The scheduler
// assumes each tier is no faster than the one before it; a SLOW collector
// ticking faster than a MEDIUM one would defeat the whole point of tiering.
func (c *Config) validateUpdateIntervals() error {
	ui := c.UpdateIntervals
	if ui.Fast <= 0 || ui.Medium <= 0 || ui.Slow <= 0 {
		return fmt.Errorf("UPDATE_INTERVALS__FAST, __MEDIUM, and __SLOW must all be positive")
	}
	if ui.Fast > ui.Medium {
		return fmt.Errorf("UPDATE_INTERVALS__FAST (%s) must not exceed __MEDIUM (%s)", ui.Fast, ui.Medium)
	}
	if ui.Medium > ui.Slow {
		return fmt.Errorf("UPDATE_INTERVALS__MEDIUM (%s) must not exceed __SLOW (%s)", ui.Medium, ui.Slow)
	}
	return nil
}

func (c *Config) validateCollectors() error {
	if len(c.Collectors.EnabledCollectors) > 0 && len(c.Collectors.DisableCollectors) > 0 {
		return fmt.Errorf("COLLECTORS__ENABLED_COLLECTORS and __DISABLE_COLLECTORS are mutually exclusive")
	}
	if c.Collectors.CollectorTimeout <= 0 {
		return fmt.Errorf("COLLECTORS__COLLECTOR_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateMonitoring() error {
	if c.Monitoring.MetricTTLMultiplier <= 1.0 {
		return fmt.Errorf("MONITORING__METRIC_TTL_MULTIPLIER must be greater than 1.0 (it scales the collection interval into a metric expiration window)")
	}
	if len(c.Monitoring.HistogramBuckets) == 0 {
		return fmt.Errorf("MONITORING__HISTOGRAM_BUCKETS must not be empty")
	}
	prev := 0.0
	for i, b := range c.Monitoring.HistogramBuckets {
		if b <= 0 {
			return fmt.Errorf("MONITORING__HISTOGRAM_BUCKETS values must be positive")
		}
		if i > 0 && b <= prev {
			return fmt.Errorf("MONITORING__HISTOGRAM_BUCKETS must be strictly increasing")
		}
		prev = b
	}
	if c.Monitoring.LicenseExpirationWarningDays < 0 {
		return fmt.Errorf("MONITORING__LICENSE_EXPIRATION_WARNING_DAYS must be non-negative")
	}
	return nil
}

func (c *Config) validateClients() error {
	if !c.Clients.Enabled {
		return nil
	}
	if c.Clients.CacheTTL <= 0 {
		return fmt.Errorf("CLIENTS__CACHE_TTL must be positive when CLIENTS__ENABLED=true")
	}
	if c.Clients.MaxClientsPerNetwork <= 0 {
		return fmt.Errorf("CLIENTS__MAX_CLIENTS_PER_NETWORK must be positive when CLIENTS__ENABLED=true")
	}
	if c.Clients.DNSResolutionEnabled && c.Clients.DNSResolutionTimeout <= 0 {
		return fmt.Errorf("CLIENTS__DNS_RESOLUTION_TIMEOUT must be positive when DNS resolution is enabled")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER__PORT must be between 1 and 65535")
	}
	if c.Server.Host == "" {
		return fmt.Errorf("SERVER__HOST must not be empty")
	}
	return nil
}

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOGGING__LEVEL must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("LOGGING__FORMAT must be json or console (got %q)", c.Logging.Format)
	}
}
