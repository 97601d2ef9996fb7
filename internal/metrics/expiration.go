// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"context"
	"time"

	"github.com/tomtom215/meraki-dashboard-exporter/internal/merakitypes"
)

// TierIntervals maps each collection tier to its configured interval, so
// the reaper can compute "ttl_multiplier x owning_tier.interval" per
// entry without importing internal/config (which would create an import
// cycle with the scheduler package that wires both together).
type TierIntervals map[merakitypes.Tier]time.Duration

// Reap removes every (metric, label tuple) entry whose age exceeds
// ttlMultiplier times its owning tier's interval, deleting the
// corresponding series from the underlying vector so /metrics stops
// reporting it. Returns the number of entries reaped. Safe to call
// concurrently with Write and with itself, though only one reap loop is
// ever started in practice.
func (r *Registry) Reap(now time.Time, ttlMultiplier float64, tiers TierIntervals) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	reaped := 0
	for key, entry := range r.entries {
		interval, ok := tiers[entry.tier]
		if !ok {
			continue
		}
		maxAge := time.Duration(float64(interval) * ttlMultiplier)
		if now.Sub(entry.lastWritten) <= maxAge {
			continue
		}

		deleteSeries(entry.handle, entry.labelValues)
		delete(r.entries, key)
		reaped++
	}
	return reaped
}

func deleteSeries(h *Handle, labelValues []string) {
	switch h.kind {
	case TypeGauge, TypeInfo:
		h.gauge.DeleteLabelValues(labelValues...)
	case TypeCounter:
		h.counter.DeleteLabelValues(labelValues...)
	case TypeHistogram:
		h.histogram.DeleteLabelValues(labelValues...)
	}
}

// StartReaper runs Reap on a ticker at reapInterval (the FAST tier
// interval, per spec.md §4.3) until ctx is canceled. Grounded on
// internal/cache's cleanupLoop background-goroutine pattern, generalized
// from a flat TTL map into the tiered (metric, label tuple) side table.
func (r *Registry) StartReaper(ctx context.Context, reapInterval time.Duration, ttlMultiplier float64, tiers TierIntervals) {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Reap(now, ttlMultiplier, tiers)
		}
	}
}
