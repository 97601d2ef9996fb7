// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/meraki-dashboard-exporter/internal/merakitypes"
)

func TestWrite_GaugeVisibleInGatherer(t *testing.T) {
	r := New()
	h := r.NewGauge("device_up", "whether a device is reachable", "serial")

	if err := r.Write(h, []string{"Q2XX-0001"}, 1, merakitypes.TierFast); err != nil {
		t.Fatalf("Write: %v", err)
	}

	count, err := testutil.GatherAndCount(r.Gatherer(), "device_up")
	if err != nil {
		t.Fatalf("GatherAndCount: %v", err)
	}
	if count != 1 {
		t.Errorf("device_up series count = %d, want 1", count)
	}
}

func TestWrite_WrongLabelCount(t *testing.T) {
	r := New()
	h := r.NewGauge("device_up", "whether a device is reachable", "serial")

	if err := r.Write(h, []string{}, 1, merakitypes.TierFast); err == nil {
		t.Fatal("expected error for missing label values, got nil")
	}
}

func TestNewGauge_RejectsBadNames(t *testing.T) {
	r := New()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for invalid metric name")
		}
	}()
	r.NewGauge("Device_Up", "bad name")
}

func TestWriteInfo_RejectsNonInfoHandle(t *testing.T) {
	r := New()
	h := r.NewGauge("device_up", "whether a device is reachable", "serial")

	if err := r.WriteInfo(h, []string{"Q2XX-0001"}, merakitypes.TierFast); err == nil {
		t.Fatal("expected error writing info to a non-info handle")
	}
}

func TestReap_RemovesStaleSeriesButKeepsFresh(t *testing.T) {
	r := New()
	h := r.NewGauge("device_up", "whether a device is reachable", "serial")

	base := time.Now()
	if err := r.Write(h, []string{"stale"}, 1, merakitypes.TierFast); err != nil {
		t.Fatalf("Write: %v", err)
	}

	tiers := TierIntervals{merakitypes.TierFast: time.Minute}

	// Fresh write should survive a reap evaluated at the moment of write.
	reaped := r.Reap(base, 2.5, tiers)
	if reaped != 0 {
		t.Fatalf("expected 0 reaped immediately after write, got %d", reaped)
	}

	// Evaluate reap as though a long time has passed: ttl window is
	// 2.5 * 1m = 150s: 10 minutes later must reap it.
	later := base.Add(10 * time.Minute)
	reaped = r.Reap(later, 2.5, tiers)
	if reaped != 1 {
		t.Fatalf("expected 1 reaped after ttl window elapsed, got %d", reaped)
	}
	if r.SeriesCount() != 0 {
		t.Errorf("SeriesCount = %d, want 0 after reap", r.SeriesCount())
	}

	count, err := testutil.GatherAndCount(r.Gatherer(), "device_up")
	if err != nil {
		t.Fatalf("GatherAndCount: %v", err)
	}
	if count != 0 {
		t.Errorf("device_up series count after reap = %d, want 0", count)
	}
}

func TestReap_UnknownTierIsSkipped(t *testing.T) {
	r := New()
	h := r.NewGauge("device_up", "whether a device is reachable", "serial")

	if err := r.Write(h, []string{"serial"}, 1, merakitypes.TierSlow); err != nil {
		t.Fatalf("Write: %v", err)
	}

	reaped := r.Reap(time.Now().Add(24*time.Hour), 2.5, TierIntervals{merakitypes.TierFast: time.Minute})
	if reaped != 0 {
		t.Fatalf("expected entries with no matching tier interval to be skipped, got %d reaped", reaped)
	}
}

func TestValidateNames_RejectsUppercaseLabel(t *testing.T) {
	if err := validateNames("ok_name", []string{"Bad_Label"}); err == nil {
		t.Fatal("expected error for uppercase label name")
	}
	if err := validateNames("ok_name", []string{"ok_label"}); err != nil {
		t.Fatalf("unexpected error for valid label: %v", err)
	}
}

func TestLabelKey_JoinsWithUnitSeparator(t *testing.T) {
	got := labelKey([]string{"a", "b"})
	if got != "a\x1fb" || !strings.Contains(got, "\x1f") {
		t.Fatalf("labelKey(%v) = %q, want %q", []string{"a", "b"}, got, "a\x1fb")
	}
}
