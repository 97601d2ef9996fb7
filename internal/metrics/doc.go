// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

/*
Package metrics owns the exporter's Prometheus registry and the single write
path every collector uses to publish a value.

A dedicated, non-global prometheus.Registry backs the Registry type; nothing
in this module touches prometheus.DefaultRegisterer. Metric handles
(gauge/counter/histogram/info) are declared once, in each collector's
InitializeMetrics, through the Registry's NewGauge/NewCounter/NewHistogram/
NewInfo methods, which build the vectors via promauto.With(registry);
collectors keep the returned *Handle values and never hold a raw
*prometheus.GaugeVec, only the Registry's Write method.

# Write path

Every write goes through:

	registry.Write(handle, labelValues, value, tier)

which records the value on the underlying Prometheus collector and also
timestamps the (metric, label tuple) pair in a side table alongside the
tier that produced it. A background reaper, ticking at the FAST interval,
deletes any tuple whose age exceeds ttl_multiplier times its owning tier's
interval — from both the side table and the underlying series — so entities
that disappear from the Meraki dashboard (a decommissioned device, a
deleted network) don't leave stale series behind forever.

# Naming

Metric and label names are passed as string literals by the collectors and
must match ^[a-z][a-z0-9_]*$ — enforced at handle registration time (the
NewX methods panic on a mismatch) so a typo fails fast at startup rather
than silently producing an unscraped metric.
*/
package metrics
