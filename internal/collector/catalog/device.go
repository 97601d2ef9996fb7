// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"fmt"
	"time"

	goccyjson "github.com/goccy/go-json"

	"github.com/tomtom215/meraki-dashboard-exporter/internal/collector"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/meraki"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/merakitypes"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/metrics"
)

// DeviceCollector is the coordinator over every per-product-type device
// collector (MS/MR/MX/MV/MG/MT). It resolves the org device listing once
// per org from the Inventory Cache and the device availabilities once per
// org from the Upstream Client, then dispatches each device to the handler for its resolved product
// type. device_up/device_status_info and the memory-usage histogram are
// common to every product type and live here rather than being duplicated
// per child.
type DeviceCollector struct {
	d Deps

	deviceUp          *metrics.Handle
	deviceStatusInfo  *metrics.Handle
	deviceMemoryUsage *metrics.Handle

	ms *MSCollector
	mr *MRCollector
	mx *MXCollector
	mv *MVCollector
	mg *MGCollector
	mt *MTCollector
}

// NewDeviceCollector constructs the MEDIUM-tier device coordinator and its
// product-type children.
func NewDeviceCollector(d Deps) *DeviceCollector {
	return &DeviceCollector{
		d:  d,
		ms: newMSCollector(d),
		mr: newMRCollector(d),
		mx: newMXCollector(d),
		mv: newMVCollector(d),
		mg: newMGCollector(d),
		mt: newMTCollector(d),
	}
}

func (c *DeviceCollector) Name() string           { return "device" }
func (c *DeviceCollector) Tier() merakitypes.Tier { return merakitypes.TierMedium }

func (c *DeviceCollector) InitializeMetrics(reg *metrics.Registry) {
	c.deviceUp = reg.NewGauge("meraki_device_up", "Whether a device is currently reachable (1) or not (0)", "serial", "org_id", "network_id")
	c.deviceStatusInfo = reg.NewInfo("meraki_device_status_info", "Device identity and status", "serial", "org_id", "network_id", "model", "status")
	c.deviceMemoryUsage = reg.NewHistogram("meraki_device_memory_usage_ratio", "Device memory usage as a fraction of total", defaultRatioBuckets(), "serial", "org_id")

	c.ms.initializeMetrics(reg)
	c.mr.initializeMetrics(reg)
	c.mx.initializeMetrics(reg)
	c.mv.initializeMetrics(reg)
	c.mg.initializeMetrics(reg)
	c.mt.initializeMetrics(reg)
}

func (c *DeviceCollector) Collect(ctx context.Context) error {
	orgs, err := c.d.Inv.GetOrganizations(ctx)
	if err != nil {
		return err
	}

	collector.RunBatchedWithWait(ctx, orgs, c.d.Batch.Size, c.d.Batch.ConcurrencyLimit, c.d.Batch.Delay,
		func(wait time.Duration) { c.d.Inst.TrackOrgWait(c.Tier(), wait) },
		func(ctx context.Context, org merakitypes.Organization) {
			c.collectOrg(ctx, org)
	})
	return nil
}

func (c *DeviceCollector) collectOrg(ctx context.Context, org merakitypes.Organization) {
	track := func(cat merakitypes.ErrorCategory) { c.d.Inst.TrackError(c.Name(), c.Tier(), cat) }

	var devices []merakitypes.Device
	var availability map[string]string

	_ = collector.WithErrorHandling(ctx, true, track, func(ctx context.Context) error {
		var err error
		devices, err = c.d.Inv.GetDevices(ctx, org.ID, "")
		return err
	})
	_ = collector.WithErrorHandling(ctx, true, track, func(ctx context.Context) error {
		availabilities, err := c.d.Client.ListOrgDeviceAvailabilities(ctx, org.ID, c.Tier())
		if err != nil {
			return err
		}
		availability = make(map[string]string, len(availabilities))
		for _, a := range availabilities {
			availability[a.Serial] = a.Status
		}
		return nil
	})

	collector.RunBatched(ctx, devices, c.d.Batch.Size, c.d.Batch.ConcurrencyLimit, c.d.Batch.Delay, func(ctx context.Context, dev merakitypes.Device) {
		c.collectDevice(ctx, org, dev, availability[dev.Serial])
	})
}

func (c *DeviceCollector) collectDevice(ctx context.Context, org merakitypes.Organization, dev merakitypes.Device, status string) {
	track := func(cat merakitypes.ErrorCategory) { c.d.Inst.TrackError(c.Name(), c.Tier(), cat) }

	up := 0.0
	if status == "online" {
		up = 1.0
	}
	_ = c.d.Inst.WriteGauge(c.deviceUp, []string{dev.Serial, org.ID, dev.NetworkID}, up, merakitypes.TierMedium)
	_ = c.d.Inst.WriteInfo(c.deviceStatusInfo, []string{dev.Serial, org.ID, dev.NetworkID, dev.Model, status}, merakitypes.TierMedium)

	_ = collector.WithErrorHandling(ctx, true, track, func(ctx context.Context) error {
		return c.emitMemoryUsage(ctx, org, dev)
	})

	switch dev.ProductType {
	case merakitypes.ProductSwitch:
		c.ms.collect(ctx, org, dev)
	case merakitypes.ProductWireless:
		c.mr.collect(ctx, org, dev)
	case merakitypes.ProductAppliance:
		c.mx.collect(ctx, org, dev)
	case merakitypes.ProductCamera:
		c.mv.collect(ctx, org, dev)
	case merakitypes.ProductCellularGateway:
		c.mg.collect(ctx, org, dev)
	case merakitypes.ProductSensor:
		c.mt.collect(ctx, org, dev)
	}
}

func (c *DeviceCollector) emitMemoryUsage(ctx context.Context, org merakitypes.Organization, dev merakitypes.Device) error {
	endpoint := fmt.Sprintf("/devices/%s/memory/history", dev.Serial)
	body, err := c.d.Client.GetTimeWindow(ctx, endpoint, meraki.TimeWindowParams{OrgID: org.ID, Optional: true, Tier: c.Tier()}, 3600)
	if err != nil {
		if meraki.IsNotAvailable(err) {
			return nil
		}
		return err
	}

	ratio, ok := parseMemoryRatio(body)
	if !ok {
		return nil
	}
	return c.d.Inst.WriteHistogram(c.deviceMemoryUsage, []string{dev.Serial, org.ID}, ratio, merakitypes.TierMedium)
}

func defaultRatioBuckets() []float64 {
	return []float64{0.1, 0.25, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1}
}

// memoryHistoryInterval is one entry of GET /devices/{serial}/memory/history:
// free/used memory in KB sampled over an interval, most recent last.
type memoryHistoryInterval struct {
	Used struct {
		Maximum float64 `json:"maximum"`
	} `json:"used"`
	Free struct {
		Maximum float64 `json:"maximum"`
	} `json:"free"`
}

// parseMemoryRatio computes used/(used+free) from the most recent
// interval in the memory history response.
func parseMemoryRatio(body []byte) (float64, bool) {
	var intervals []memoryHistoryInterval
	if err := goccyjson.Unmarshal(body, &intervals); err != nil || len(intervals) == 0 {
		return 0, false
	}
	latest := intervals[len(intervals)-1]
	total := latest.Used.Maximum + latest.Free.Maximum
	if total <= 0 {
		return 0, false
	}
	return latest.Used.Maximum / total, true
}
