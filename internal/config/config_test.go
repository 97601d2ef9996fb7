// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"testing"
	"time"
)

func setupTestEnv(t *testing.T, envVars map[string]string) func() {
	t.Helper()
	os.Clearenv()
	for k, v := range envVars {
		if err := os.Setenv(k, v); err != nil {
			t.Fatalf("failed to set env var %s: %v", k, err)
		}
	}
	return func() { os.Clearenv() }
}

func TestLoad_RequiresAPIKey(t *testing.T) {
	cleanup := setupTestEnv(t, map[string]string{})
	defer cleanup()

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when MERAKI__API_KEY is unset, got nil")
	}
}

func TestLoad_Defaults(t *testing.T) {
	cleanup := setupTestEnv(t, map[string]string{
		"MERAKI__API_KEY": "test-key-123",
	})
	defer cleanup()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Meraki.APIBaseURL != "https://api.meraki.com/api/v1" {
		t.Errorf("APIBaseURL = %q, want default", cfg.Meraki.APIBaseURL)
	}
	if cfg.UpdateIntervals.Fast != 60*time.Second {
		t.Errorf("UpdateIntervals.Fast = %s, want 60s", cfg.UpdateIntervals.Fast)
	}
	if cfg.UpdateIntervals.Medium != 300*time.Second {
		t.Errorf("UpdateIntervals.Medium = %s, want 300s", cfg.UpdateIntervals.Medium)
	}
	if cfg.UpdateIntervals.Slow != 900*time.Second {
		t.Errorf("UpdateIntervals.Slow = %s, want 900s", cfg.UpdateIntervals.Slow)
	}
	if cfg.Monitoring.MetricTTLMultiplier != 2.5 {
		t.Errorf("MetricTTLMultiplier = %v, want 2.5", cfg.Monitoring.MetricTTLMultiplier)
	}
	if cfg.Clients.Enabled {
		t.Error("Clients.Enabled should default to false")
	}
	if cfg.Server.Port != 9458 {
		t.Errorf("Server.Port = %d, want 9458", cfg.Server.Port)
	}
}

func TestLoad_EnvOverridesAndNesting(t *testing.T) {
	cleanup := setupTestEnv(t, map[string]string{
		"MERAKI__API_KEY":            "test-key-123",
		"MERAKI__ORG_ID":             "123456",
		"UPDATE_INTERVALS__FAST":     "30s",
		"COLLECTORS__ENABLED_COLLECTORS": "organization,device",
		"SERVER__PORT":               "9999",
	})
	defer cleanup()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Meraki.OrgID != "123456" {
		t.Errorf("Meraki.OrgID = %q, want 123456", cfg.Meraki.OrgID)
	}
	if cfg.UpdateIntervals.Fast != 30*time.Second {
		t.Errorf("UpdateIntervals.Fast = %s, want 30s", cfg.UpdateIntervals.Fast)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	want := []string{"organization", "device"}
	if len(cfg.Collectors.EnabledCollectors) != len(want) {
		t.Fatalf("EnabledCollectors = %v, want %v", cfg.Collectors.EnabledCollectors, want)
	}
	for i, v := range want {
		if cfg.Collectors.EnabledCollectors[i] != v {
			t.Errorf("EnabledCollectors[%d] = %q, want %q", i, cfg.Collectors.EnabledCollectors[i], v)
		}
	}
}

func TestValidate_IntervalOrdering(t *testing.T) {
	cfg := defaultConfig()
	cfg.Meraki.APIKey = "k"
	cfg.UpdateIntervals.Fast = 10 * time.Minute
	cfg.UpdateIntervals.Medium = time.Minute

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when FAST exceeds MEDIUM, got nil")
	}
}

func TestValidate_MutuallyExclusiveCollectorFilters(t *testing.T) {
	cfg := defaultConfig()
	cfg.Meraki.APIKey = "k"
	cfg.Collectors.EnabledCollectors = []string{"organization"}
	cfg.Collectors.DisableCollectors = []string{"clients"}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when both enabled and disable collector lists are set")
	}
}

func TestValidate_HistogramBucketsMustBeIncreasing(t *testing.T) {
	cfg := defaultConfig()
	cfg.Meraki.APIKey = "k"
	cfg.Monitoring.HistogramBuckets = []float64{1, 5, 2}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-increasing histogram buckets")
	}
}

func TestValidate_ClientsRequiresCacheTTLWhenEnabled(t *testing.T) {
	cfg := defaultConfig()
	cfg.Meraki.APIKey = "k"
	cfg.Clients.Enabled = true
	cfg.Clients.CacheTTL = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when Clients.Enabled with zero CacheTTL")
	}
}
