// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

// Package scheduler runs the Collector Manager: one independent,
// wall-clock-aligned ticker loop per tier, each driving every collector
// registered at that tier through internal/collector's instrumentation
// wrapper. A tier's loop skips (and logs) a tick if the previous run at
// that tier is still in flight, so a slow collector never causes
// overlapping runs of the same tier.
package scheduler
