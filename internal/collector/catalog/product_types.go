// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"fmt"

	goccyjson "github.com/goccy/go-json"

	"github.com/tomtom215/meraki-dashboard-exporter/internal/collector"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/meraki"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/merakitypes"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/metrics"
)

// MSCollector emits switch-specific port and PoE metrics. It is a
// sub-collector owned by DeviceCollector, not registered with the Manager
// directly.
type MSCollector struct {
	d Deps

	portStatus *metrics.Handle
	poeWatts   *metrics.Handle
}

func newMSCollector(d Deps) *MSCollector { return &MSCollector{d: d} }

func (c *MSCollector) initializeMetrics(reg *metrics.Registry) {
	c.portStatus = reg.NewGauge("meraki_ms_port_up", "Switch port link status", "serial", "port_id")
	c.poeWatts = reg.NewGauge("meraki_ms_poe_usage_watts", "Switch PoE power draw", "serial")
}

func (c *MSCollector) collect(ctx context.Context, org merakitypes.Organization, dev merakitypes.Device) {
	// Attributed to "device"/TierMedium: product-type sub-collectors have
	// no Name()/Tier() of their own, only the DeviceCollector that owns them.
	track := func(cat merakitypes.ErrorCategory) { c.d.Inst.TrackError("device", merakitypes.TierMedium, cat) }
	_ = collector.WithErrorHandling(ctx, true, track, func(ctx context.Context) error {
		endpoint := fmt.Sprintf("/devices/%s/switch/ports/statuses", dev.Serial)
		body, err := c.d.Client.GetPaginated(ctx, endpoint, meraki.PaginatedParams{OrgID: org.ID, Optional: true, Tier: merakitypes.TierMedium}, false)
		if err != nil {
			if meraki.IsNotAvailable(err) {
				return nil
			}
			return err
		}
		var ports []struct {
			PortID         string  `json:"portId"`
			Status         string  `json:"status"`
			PowerUsageInWh float64 `json:"powerUsageInWh"`
		}
		if err := goccyjson.Unmarshal(body, &ports); err != nil {
			return nil
		}
		var totalWatts float64
		for _, p := range ports {
			up := 0.0
			if p.Status == "Connected" {
				up = 1.0
			}
			if err := c.d.Inst.WriteGauge(c.portStatus, []string{dev.Serial, p.PortID}, up, merakitypes.TierMedium); err != nil {
				return err
			}
			totalWatts += p.PowerUsageInWh
		}
		return c.d.Inst.WriteGauge(c.poeWatts, []string{dev.Serial}, totalWatts, merakitypes.TierMedium)
	})
}

// MRCollector is the wireless product-type coordinator over its three
// children (MRClientsCollector, MRPerformanceCollector, MRWirelessCollector).
type MRCollector struct {
	d Deps

	clientCount     *metrics.Handle
	connectionSucc  *metrics.Handle
	channelUtilPct  *metrics.Handle
}

func newMRCollector(d Deps) *MRCollector { return &MRCollector{d: d} }

func (c *MRCollector) initializeMetrics(reg *metrics.Registry) {
	c.clientCount = reg.NewGauge("meraki_mr_clients_total", "Wireless clients currently associated", "serial")
	c.connectionSucc = reg.NewGauge("meraki_mr_connection_success_ratio", "Wireless connection step success ratio", "serial")
	c.channelUtilPct = reg.NewGauge("meraki_mr_channel_utilization_ratio", "Radio channel utilization", "serial", "band")
}

func (c *MRCollector) collect(ctx context.Context, org merakitypes.Organization, dev merakitypes.Device) {
	track := func(cat merakitypes.ErrorCategory) { c.d.Inst.TrackError("device", merakitypes.TierMedium, cat) }
	_ = collector.WithErrorHandling(ctx, true, track, func(ctx context.Context) error {
		return c.clientsSub(ctx, org, dev)
	})
	_ = collector.WithErrorHandling(ctx, true, track, func(ctx context.Context) error {
		return c.performanceSub(ctx, org, dev)
	})
	_ = collector.WithErrorHandling(ctx, true, track, func(ctx context.Context) error {
		return c.wirelessSub(ctx, org, dev)
	})
}

// clientsSub is MRClientsCollector's logic.
func (c *MRCollector) clientsSub(ctx context.Context, org merakitypes.Organization, dev merakitypes.Device) error {
	endpoint := fmt.Sprintf("/devices/%s/wireless/connectionStats", dev.Serial)
	body, err := c.d.Client.GetTimeWindow(ctx, endpoint, meraki.TimeWindowParams{OrgID: org.ID, Optional: true, Tier: merakitypes.TierMedium}, 3600)
	if err != nil {
		if meraki.IsNotAvailable(err) {
			return nil
		}
		return err
	}
	var stats struct {
		AssocCount int `json:"assoc"`
	}
	if err := goccyjson.Unmarshal(body, &stats); err != nil {
		return nil
	}
	return c.d.Inst.WriteGauge(c.clientCount, []string{dev.Serial}, float64(stats.AssocCount), merakitypes.TierMedium)
}

// performanceSub is MRPerformanceCollector's logic: connection funnel
// success (assoc/auth/dhcp/dns steps) reduced to a single success ratio.
func (c *MRCollector) performanceSub(ctx context.Context, org merakitypes.Organization, dev merakitypes.Device) error {
	endpoint := fmt.Sprintf("/devices/%s/wireless/connectionStats", dev.Serial)
	body, err := c.d.Client.GetTimeWindow(ctx, endpoint, meraki.TimeWindowParams{OrgID: org.ID, Optional: true, Tier: merakitypes.TierMedium}, 3600)
	if err != nil {
		if meraki.IsNotAvailable(err) {
			return nil
		}
		return err
	}
	var stats struct {
		Assoc    int `json:"assoc"`
		Auth     int `json:"auth"`
		Dhcp     int `json:"dhcp"`
		Dns      int `json:"dns"`
		Success  int `json:"success"`
	}
	if err := goccyjson.Unmarshal(body, &stats); err != nil {
		return nil
	}
	attempts := stats.Assoc + stats.Auth + stats.Dhcp + stats.Dns
	if attempts == 0 {
		return nil
	}
	ratio := float64(stats.Success) / float64(attempts)
	return c.d.Inst.WriteGauge(c.connectionSucc, []string{dev.Serial}, ratio, merakitypes.TierMedium)
}

// wirelessSub is MRWirelessCollector's logic: per-band channel utilization.
func (c *MRCollector) wirelessSub(ctx context.Context, org merakitypes.Organization, dev merakitypes.Device) error {
	endpoint := fmt.Sprintf("/devices/%s/wireless/channelUtilization", dev.Serial)
	body, err := c.d.Client.GetTimeWindow(ctx, endpoint, meraki.TimeWindowParams{OrgID: org.ID, Optional: true, Tier: merakitypes.TierMedium}, 3600)
	if err != nil {
		if meraki.IsNotAvailable(err) {
			return nil
		}
		return err
	}
	var bands []struct {
		Band    string  `json:"band"`
		Percent float64 `json:"utilizationPercent"`
	}
	if err := goccyjson.Unmarshal(body, &bands); err != nil {
		return nil
	}
	for _, b := range bands {
		if err := c.d.Inst.WriteGauge(c.channelUtilPct, []string{dev.Serial, b.Band}, b.Percent/100, merakitypes.TierMedium); err != nil {
			return err
		}
	}
	return nil
}

// MXCollector emits security-appliance uplink status.
type MXCollector struct {
	d Deps

	uplinkStatus *metrics.Handle
}

func newMXCollector(d Deps) *MXCollector { return &MXCollector{d: d} }

func (c *MXCollector) initializeMetrics(reg *metrics.Registry) {
	c.uplinkStatus = reg.NewGauge("meraki_mx_uplink_active", "MX WAN uplink active status", "serial", "interface")
}

func (c *MXCollector) collect(ctx context.Context, org merakitypes.Organization, dev merakitypes.Device) {
	track := func(cat merakitypes.ErrorCategory) { c.d.Inst.TrackError("device", merakitypes.TierMedium, cat) }
	_ = collector.WithErrorHandling(ctx, true, track, func(ctx context.Context) error {
		endpoint := "/organizations/%s/appliance/uplinks/statuses"
		body, err := c.d.Client.GetPaginated(ctx, endpoint, meraki.PaginatedParams{OrgID: org.ID, PathArg: org.ID, Optional: true, Tier: merakitypes.TierMedium}, false)
		if err != nil {
			if meraki.IsNotAvailable(err) {
				return nil
			}
			return err
		}
		var statuses []struct {
			Serial  string `json:"serial"`
			Uplinks []struct {
				Interface string `json:"interface"`
				Status    string `json:"status"`
			} `json:"uplinks"`
		}
		if err := goccyjson.Unmarshal(body, &statuses); err != nil {
			return nil
		}
		for _, s := range statuses {
			if s.Serial != dev.Serial {
				continue
			}
			for _, u := range s.Uplinks {
				active := 0.0
				if u.Status == "active" {
					active = 1.0
				}
				if err := c.d.Inst.WriteGauge(c.uplinkStatus, []string{dev.Serial, u.Interface}, active, merakitypes.TierMedium); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// MVCollector emits camera recording status.
type MVCollector struct {
	d Deps

	recordingActive *metrics.Handle
}

func newMVCollector(d Deps) *MVCollector { return &MVCollector{d: d} }

func (c *MVCollector) initializeMetrics(reg *metrics.Registry) {
	c.recordingActive = reg.NewGauge("meraki_mv_recording_active", "Camera recording active status", "serial")
}

func (c *MVCollector) collect(ctx context.Context, org merakitypes.Organization, dev merakitypes.Device) {
	track := func(cat merakitypes.ErrorCategory) { c.d.Inst.TrackError("device", merakitypes.TierMedium, cat) }
	_ = collector.WithErrorHandling(ctx, true, track, func(ctx context.Context) error {
		endpoint := fmt.Sprintf("/devices/%s/camera/videoSettings", dev.Serial)
		body, err := c.d.Client.GetPaginated(ctx, endpoint, meraki.PaginatedParams{OrgID: org.ID, Optional: true, Tier: merakitypes.TierMedium}, false)
		if err != nil {
			if meraki.IsNotAvailable(err) {
				return nil
			}
			return err
		}
		var settings struct {
			ExternalRtspEnabled bool `json:"externalRtspEnabled"`
		}
		if err := goccyjson.Unmarshal(body, &settings); err != nil {
			return nil
		}
		value := 0.0
		if settings.ExternalRtspEnabled {
			value = 1.0
		}
		return c.d.Inst.WriteGauge(c.recordingActive, []string{dev.Serial}, value, merakitypes.TierMedium)
	})
}

// MGCollector emits cellular gateway signal quality.
type MGCollector struct {
	d Deps

	signalQuality *metrics.Handle
}

func newMGCollector(d Deps) *MGCollector { return &MGCollector{d: d} }

func (c *MGCollector) initializeMetrics(reg *metrics.Registry) {
	c.signalQuality = reg.NewGauge("meraki_mg_signal_quality_percent", "Cellular signal quality", "serial")
}

func (c *MGCollector) collect(ctx context.Context, org merakitypes.Organization, dev merakitypes.Device) {
	track := func(cat merakitypes.ErrorCategory) { c.d.Inst.TrackError("device", merakitypes.TierMedium, cat) }
	_ = collector.WithErrorHandling(ctx, true, track, func(ctx context.Context) error {
		endpoint := fmt.Sprintf("/devices/%s/cellularGateway/lan", dev.Serial)
		body, err := c.d.Client.GetPaginated(ctx, endpoint, meraki.PaginatedParams{OrgID: org.ID, Optional: true, Tier: merakitypes.TierMedium}, false)
		if err != nil {
			if meraki.IsNotAvailable(err) {
				return nil
			}
			return err
		}
		var lan struct {
			SignalQuality float64 `json:"signalQuality"`
		}
		if err := goccyjson.Unmarshal(body, &lan); err != nil {
			return nil
		}
		return c.d.Inst.WriteGauge(c.signalQuality, []string{dev.Serial}, lan.SignalQuality, merakitypes.TierMedium)
	})
}

// MTCollector is the device-coordinator's hook for sensor gateway devices.
// It intentionally writes nothing itself: every sensor metric (including
// battery) comes from the org-wide latest-readings call SensorCollector
// makes on the FAST tier, not from a per-device MEDIUM-tier fetch. It
// exists so DeviceCollector's product-type switch has a case for
// ProductSensor without special-casing it as a no-op inline.
type MTCollector struct{}

func newMTCollector(_ Deps) *MTCollector { return &MTCollector{} }

func (c *MTCollector) initializeMetrics(_ *metrics.Registry) {}

func (c *MTCollector) collect(_ context.Context, _ merakitypes.Organization, _ merakitypes.Device) {}
