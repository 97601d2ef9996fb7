// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/meraki-dashboard-exporter/internal/collector"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/config"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/logging"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/merakitypes"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/metrics"
)

// Manager owns every registered collector, grouped by tier, and the
// per-tier tickers that drive them. It implements suture.Service so it
// can be supervised the same way the teacher's other long-running
// components are (internal/supervisor).
type Manager struct {
	cfg  config.UpdateIntervalsConfig
	coll config.CollectorsConfig
	inst *collector.Instrumentation
	reg  *metrics.Registry

	byTier map[merakitypes.Tier][]collector.Collector
	health sync.Map // name -> *merakitypes.CollectorHealth

	overrunErrors *metrics.Handle

	inFlight map[merakitypes.Tier]*atomic.Bool
}

// New builds a Manager from every collector discovered via
// catalog.All, filtered by CollectorsConfig and grouped by declared
// tier. Metric handles are initialized against reg before any collector
// runs, per spec.md §4.4.
func New(reg *metrics.Registry, inst *collector.Instrumentation, intervals config.UpdateIntervalsConfig, coll config.CollectorsConfig, all []collector.Collector) *Manager {
	m := &Manager{
		cfg:      intervals,
		coll:     coll,
		inst:     inst,
		reg:      reg,
		byTier:   make(map[merakitypes.Tier][]collector.Collector),
		inFlight: map[merakitypes.Tier]*atomic.Bool{merakitypes.TierFast: {}, merakitypes.TierMedium: {}, merakitypes.TierSlow: {}},
	}

	m.overrunErrors = reg.NewCounter("collection_errors_total", "Collection-loop level errors", "collector", "tier", "error_type")

	for _, c := range all {
		if !m.enabled(c.Name()) {
			continue
		}
		c.InitializeMetrics(reg)
		m.byTier[c.Tier()] = append(m.byTier[c.Tier()], c)
		m.health.Store(c.Name(), &merakitypes.CollectorHealth{Name: c.Name(), Tier: c.Tier()})
	}

	return m
}

func (m *Manager) enabled(name string) bool {
	if len(m.coll.EnabledCollectors) > 0 {
		for _, n := range m.coll.EnabledCollectors {
			if n == name {
				return true
			}
		}
		return false
	}
	for _, n := range m.coll.DisableCollectors {
		if n == name {
			return false
		}
	}
	return true
}

// Health returns a snapshot of every registered collector's health
// record. Used by the health endpoint.
func (m *Manager) Health() []merakitypes.CollectorHealth {
	var out []merakitypes.CollectorHealth
	m.health.Range(func(_, v interface{}) bool {
		h := v.(*merakitypes.CollectorHealth)
		out = append(out, *h)
		return true
	})
	return out
}

// Healthy reports whether at least one registered collector has
// succeeded within the last `within` duration, satisfying
// api.HealthSource.
func (m *Manager) Healthy(within time.Duration) bool {
	healthy := false
	cutoff := time.Now().Add(-within).Unix()
	m.health.Range(func(_, v interface{}) bool {
		h := v.(*merakitypes.CollectorHealth)
		if h.LastSuccessUnix >= cutoff {
			healthy = true
			return false
		}
		return true
	})
	return healthy
}

// Serve implements suture.Service: it starts one loop for each tier that
// has registered collectors and a positive interval, and blocks until ctx
// is canceled (it returns at once when no tier has both).
func (m *Manager) Serve(ctx context.Context) error {
	var wg sync.WaitGroup
	for tier, interval := range map[merakitypes.Tier]time.Duration{
		merakitypes.TierFast:   m.cfg.Fast,
		merakitypes.TierMedium: m.cfg.Medium,
		merakitypes.TierSlow:   m.cfg.Slow,
	} {
		if interval <= 0 || len(m.byTier[tier]) == 0 {
			continue
		}
		wg.Add(1)
		go func(tier merakitypes.Tier, interval time.Duration) {
			defer wg.Done()
			m.runTierLoop(ctx, tier, interval)
		}(tier, interval)
	}
	wg.Wait()
	return ctx.Err()
}

func (m *Manager) String() string { return "collector-manager" }

// runTierLoop drives one tier's ticker. The first tick waits for the next
// wall-clock multiple of interval; later ticks follow every interval from
// there. Each tick starts runTierOnce in its own goroutine, so per
// invariant 1 a tick that lands while the prior run is still in flight is
// skipped and logged by runTierOnce rather than allowed to overlap.
func (m *Manager) runTierLoop(ctx context.Context, tier merakitypes.Tier, interval time.Duration) {
	now := time.Now()
	first := time.NewTimer(now.Truncate(interval).Add(interval).Sub(now))
	defer first.Stop()
	select {
	case <-ctx.Done():
		return
	case <-first.C:
		go m.runTierOnce(ctx, tier)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go m.runTierOnce(ctx, tier)
		}
	}
}

// runTierOnce launches every enabled collector of tier as its own task in
// a task group, per spec.md §4.6: collectors never wait on one another,
// so one slow endpoint can't delay the rest of the tier's collection.
// Actual outbound concurrency is still bounded, by the Upstream Client's
// own admission semaphore rather than a count here.
func (m *Manager) runTierOnce(ctx context.Context, tier merakitypes.Tier) {
	flag := m.inFlight[tier]
	if !flag.CompareAndSwap(false, true) {
		logging.Warn().Str("tier", string(tier)).Msg("tier run overran its interval, skipping this tick")
		_ = m.reg.Write(m.overrunErrors, []string{"_manager_", string(tier), "overrun"}, 1, tier)
		return
	}
	defer flag.Store(false)

	var wg sync.WaitGroup
	for _, c := range m.byTier[tier] {
		wg.Add(1)
		go func(c collector.Collector) {
			defer wg.Done()
			m.runOne(ctx, c)
		}(c)
	}
	wg.Wait()
}

func (m *Manager) runOne(ctx context.Context, c collector.Collector) {
	timeout := m.coll.CollectorTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	v, _ := m.health.Load(c.Name())
	health := v.(*merakitypes.CollectorHealth)

	if err := m.inst.Run(runCtx, c, health); err != nil {
		logging.Warn().Err(err).Str("collector", c.Name()).Str("tier", string(c.Tier())).Msg("collector run failed")
	}
}
