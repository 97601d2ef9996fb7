// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

// Package catalog holds the domain collector taxonomy described in
// spec.md §4.5: one main collector per product area, registered with the
// Manager at its declared tier. Coordinators fan out to sub-collector
// logic they own directly; only main collectors implement
// collector.Collector.
package catalog

import (
	"time"

	"github.com/tomtom215/meraki-dashboard-exporter/internal/collector"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/config"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/inventory"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/meraki"
)

// Deps bundles everything a catalog collector needs: the Upstream Client
// for calls the Inventory Cache doesn't cover, the Inventory Cache itself,
// the shared instrumentation wrapper, and the batching knobs collectors
// apply to their own fan-out.
type Deps struct {
	Client  *meraki.Client
	Inv     *inventory.Cache
	Inst    *collector.Instrumentation
	Batch   BatchConfig
	Clients config.ClientsConfig
}

// BatchConfig carries the operator-configured fan-out knobs every
// coordinator applies when iterating networks/devices within an org.
type BatchConfig struct {
	Size             int
	ConcurrencyLimit int
	Delay            time.Duration
}

// NewBatchConfig derives a BatchConfig from the API section of the
// exporter configuration, since spec.md §4.5.4 reuses the same
// batch_size/concurrency_limit/batch_delay knobs the Upstream Client uses
// for admission shaping.
func NewBatchConfig(apiCfg config.APIConfig) BatchConfig {
	return BatchConfig{
		Size:             apiCfg.BatchSize,
		ConcurrencyLimit: apiCfg.ConcurrencyLimit,
		Delay:            apiCfg.BatchDelay,
	}
}

// All returns every main collector in the catalog, tagged with its
// declared tier. The Manager discovers collectors by calling this once at
// startup; it never hand-maintains a list itself.
func All(d Deps) []collector.Collector {
	return []collector.Collector{
		NewSensorCollector(d),
		NewOrganizationCollector(d),
		NewDeviceCollector(d),
		NewNetworkHealthCollector(d),
		NewAlertsCollector(d),
		NewClientsCollector(d),
		NewConfigCollector(d),
	}
}
