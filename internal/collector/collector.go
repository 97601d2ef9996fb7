// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

// Package collector provides the Collector Base: the lifecycle contract
// every domain collector implements, and the self-instrumentation wrapper
// the Manager uses to run them uniformly regardless of tier or what they
// actually collect.
package collector

import (
	"context"

	"github.com/tomtom215/meraki-dashboard-exporter/internal/merakitypes"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/metrics"
)

// Collector is the lifecycle contract every main collector implements.
// Sub-collectors owned by a coordinator do not implement this interface
// directly; the coordinator's Collect fans out to them internally.
type Collector interface {
	// Name is stable and used as the "collector" metric label.
	Name() string
	// Tier declares the cadence this collector runs on.
	Tier() merakitypes.Tier
	// InitializeMetrics declares every metric handle this collector (and
	// its sub-collectors) writes. Called once, before any Collect.
	InitializeMetrics(reg *metrics.Registry)
	// Collect performs one collection pass. Errors should be classified
	// merakitypes.ErrorCategory values (wrap with WithErrorHandling at
	// call sites that fan out to sub-units) so the base can record
	// error_type correctly.
	Collect(ctx context.Context) error
}
