// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/meraki-dashboard-exporter/internal/logging"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/meraki"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/merakitypes"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/metrics"
)

// Instrumentation holds the metric handles every collector shares,
// declared once at Manager startup and reused across all registered
// collectors. Individual collectors declare their own domain metrics
// separately in InitializeMetrics.
type Instrumentation struct {
	reg *metrics.Registry

	collectionDuration *metrics.Handle
	collectionErrors   *metrics.Handle
	apiCalls           *metrics.Handle
	lastSuccess        *metrics.Handle
	failureStreak      *metrics.Handle
	orgWaitTime        *metrics.Handle
}

// NewInstrumentation declares the shared collector metrics against reg.
func NewInstrumentation(reg *metrics.Registry) *Instrumentation {
	return &Instrumentation{
		reg:                reg,
		collectionDuration: reg.NewHistogram("collector_duration_seconds", "Collector run duration", defaultDurationBuckets(), "collector", "tier"),
		collectionErrors:   reg.NewCounter("collector_errors_total", "Collector errors by classified type", "collector", "tier", "error_type"),
		apiCalls:           reg.NewCounter("collector_api_calls_total", "Upstream API calls made by a collector", "collector", "tier", "endpoint"),
		lastSuccess:        reg.NewGauge("collector_last_success_timestamp_seconds", "Unix timestamp of the collector's last successful run", "collector", "tier"),
		failureStreak:      reg.NewGauge("collector_failure_streak", "Consecutive failed runs for a collector", "collector", "tier"),
		orgWaitTime:        reg.NewHistogram("org_collection_wait_time_seconds", "Time a per-organization collection task spent queued on the concurrency-limit semaphore before running", defaultWaitBuckets(), "tier"),
	}
}

// Run wraps a single Collect invocation with timing, error
// classification, and the failure-streak/last-success bookkeeping
// described in spec.md §4.4. health is updated in place so the Manager can
// expose CollectorHealth without a second lookup.
func (inst *Instrumentation) Run(ctx context.Context, c Collector, health *merakitypes.CollectorHealth) error {
	name := c.Name()
	tier := string(c.Tier())
	start := time.Now()

	err := c.Collect(ctx)

	duration := time.Since(start)
	_ = inst.reg.Write(inst.collectionDuration, []string{name, tier}, duration.Seconds(), c.Tier())
	health.LastDurationSeconds = duration.Seconds()

	if err != nil {
		category := classify(err)
		_ = inst.reg.Write(inst.collectionErrors, []string{name, tier, string(category)}, 1, c.Tier())
		health.ConsecutiveFailures++
		_ = inst.reg.Write(inst.failureStreak, []string{name, tier}, float64(health.ConsecutiveFailures), c.Tier())
		return err
	}

	health.ConsecutiveFailures = 0
	health.LastSuccessUnix = time.Now().Unix()
	_ = inst.reg.Write(inst.failureStreak, []string{name, tier}, 0, c.Tier())
	_ = inst.reg.Write(inst.lastSuccess, []string{name, tier}, float64(health.LastSuccessUnix), c.Tier())
	return nil
}

// TrackAPICall logs and counts a call to endpoint on behalf of collector
// name/tier. Collectors call this around each Upstream Client operation
// they invoke directly, per spec.md §4.4's _track_api_call.
func (inst *Instrumentation) TrackAPICall(name, tier, endpoint string) {
	logging.Debug().Str("collector", name).Str("endpoint", endpoint).Msg("calling upstream API")
	_ = inst.reg.Write(inst.apiCalls, []string{name, tier, endpoint}, 1, merakitypes.Tier(tier))
}

// TrackError records a classified sub-step failure against the same
// collector_errors_total series Run writes on a whole-Collect failure, so
// a coordinator that swallows a sub-step error via WithErrorHandling
// still surfaces it on collector_errors_total rather than losing it
// entirely.
func (inst *Instrumentation) TrackError(name string, tier merakitypes.Tier, category merakitypes.ErrorCategory) {
	_ = inst.reg.Write(inst.collectionErrors, []string{name, string(tier), string(category)}, 1, tier)
}

// TrackOrgWait records how long a per-organization fan-out task waited on
// its coordinator's concurrency-limit semaphore before it started running.
func (inst *Instrumentation) TrackOrgWait(tier merakitypes.Tier, wait time.Duration) {
	_ = inst.reg.Write(inst.orgWaitTime, []string{string(tier)}, wait.Seconds(), tier)
}

// WriteGauge/WriteCounter/WriteHistogram/WriteInfo let domain collectors
// write through the same Registry the base uses for self-instrumentation,
// so every metric write in the process — collector-owned or base-owned —
// goes through Instrumentation rather than collectors holding their own
// *metrics.Registry reference.
func (inst *Instrumentation) WriteGauge(h *metrics.Handle, labelValues []string, value float64, tier merakitypes.Tier) error {
	return inst.reg.Write(h, labelValues, value, tier)
}

func (inst *Instrumentation) WriteCounter(h *metrics.Handle, labelValues []string, value float64, tier merakitypes.Tier) error {
	return inst.reg.Write(h, labelValues, value, tier)
}

func (inst *Instrumentation) WriteHistogram(h *metrics.Handle, labelValues []string, value float64, tier merakitypes.Tier) error {
	return inst.reg.Write(h, labelValues, value, tier)
}

func (inst *Instrumentation) WriteInfo(h *metrics.Handle, labelValues []string, tier merakitypes.Tier) error {
	return inst.reg.WriteInfo(h, labelValues, tier)
}

func defaultDurationBuckets() []float64 {
	return []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}
}

func defaultWaitBuckets() []float64 {
	return []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30}
}

// classify maps a collector error to an ErrorCategory. Upstream Client
// errors already carry a category; anything else (a panic recovered into
// an error, a programmer bug) classifies as unknown.
func classify(err error) merakitypes.ErrorCategory {
	var apiErr *meraki.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Category
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return merakitypes.ErrorTimeout
	}
	return merakitypes.ErrorUnknown
}

// WithErrorHandling runs fn and classifies any error it returns. When
// continueOnError is true (the default for sub-steps per spec.md §4.4),
// the error is recorded via trackErr and swallowed so the caller's
// fan-out continues; when false, the error is returned to the caller.
func WithErrorHandling(ctx context.Context, continueOnError bool, trackErr func(merakitypes.ErrorCategory), fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if err == nil {
		return nil
	}

	category := classify(err)
	trackErr(category)

	if meraki.IsNotAvailable(err) {
		logging.Debug().Err(err).Msg("endpoint not available, continuing")
		return nil
	}

	if continueOnError {
		logging.Warn().Err(err).Str("error_type", string(category)).Msg("collector sub-step failed, continuing")
		return nil
	}
	return err
}
