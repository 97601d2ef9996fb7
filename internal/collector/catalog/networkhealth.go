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

// NetworkHealthCollector is a coordinator: for each network it checks
// product_types and skips wireless-only endpoints on non-wireless
// networks, per spec.md §4.5.2, then fans out to its four sub-collectors
// (RF health, connection stats, data rates, Bluetooth).
type NetworkHealthCollector struct {
	d Deps

	channelUtilization *metrics.Handle
	connectionSuccess  *metrics.Handle
	dataRateMbps       *metrics.Handle
	bluetoothClients   *metrics.Handle
}

// NewNetworkHealthCollector constructs the MEDIUM-tier network health
// coordinator.
func NewNetworkHealthCollector(d Deps) *NetworkHealthCollector {
	return &NetworkHealthCollector{d: d}
}

func (c *NetworkHealthCollector) Name() string           { return "network_health" }
func (c *NetworkHealthCollector) Tier() merakitypes.Tier { return merakitypes.TierMedium }

func (c *NetworkHealthCollector) InitializeMetrics(reg *metrics.Registry) {
	c.channelUtilization = reg.NewGauge("meraki_network_channel_utilization_ratio", "Network-wide RF channel utilization", "network_id", "band")
	c.connectionSuccess = reg.NewGauge("meraki_network_connection_success_ratio", "Network-wide wireless connection success ratio", "network_id")
	c.dataRateMbps = reg.NewGauge("meraki_network_data_rate_mbps", "Network-wide average data rate", "network_id", "direction")
	c.bluetoothClients = reg.NewGauge("meraki_network_bluetooth_clients_total", "Bluetooth clients seen by the network's access points", "network_id")
}

func (c *NetworkHealthCollector) Collect(ctx context.Context) error {
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

func (c *NetworkHealthCollector) collectOrg(ctx context.Context, org merakitypes.Organization) {
	track := func(cat merakitypes.ErrorCategory) { c.d.Inst.TrackError(c.Name(), c.Tier(), cat) }
	var networks []merakitypes.Network
	_ = collector.WithErrorHandling(ctx, true, track, func(ctx context.Context) error {
		var err error
		networks, err = c.d.Inv.GetNetworks(ctx, org.ID)
		return err
	})

	collector.RunBatched(ctx, networks, c.d.Batch.Size, c.d.Batch.ConcurrencyLimit, c.d.Batch.Delay, func(ctx context.Context, net merakitypes.Network) {
		c.collectNetwork(ctx, org, net)
	})
}

func (c *NetworkHealthCollector) collectNetwork(ctx context.Context, org merakitypes.Organization, net merakitypes.Network) {
	track := func(cat merakitypes.ErrorCategory) { c.d.Inst.TrackError(c.Name(), c.Tier(), cat) }

	if net.HasProductType(merakitypes.NetworkWireless) {
		_ = collector.WithErrorHandling(ctx, true, track, func(ctx context.Context) error {
			return c.rfHealthSub(ctx, org, net)
		})
		_ = collector.WithErrorHandling(ctx, true, track, func(ctx context.Context) error {
			return c.connectionStatsSub(ctx, org, net)
		})
		_ = collector.WithErrorHandling(ctx, true, track, func(ctx context.Context) error {
			return c.bluetoothSub(ctx, org, net)
		})
	}
	_ = collector.WithErrorHandling(ctx, true, track, func(ctx context.Context) error {
		return c.dataRatesSub(ctx, org, net)
	})
}

// rfHealthSub is RFHealthCollector's logic.
func (c *NetworkHealthCollector) rfHealthSub(ctx context.Context, org merakitypes.Organization, net merakitypes.Network) error {
	endpoint := fmt.Sprintf("/networks/%s/wireless/channelUtilizationHistory", net.ID)
	body, err := c.d.Client.GetTimeWindow(ctx, endpoint, meraki.TimeWindowParams{OrgID: org.ID, Optional: true, Tier: c.Tier()}, 3600)
	if err != nil {
		if meraki.IsNotAvailable(err) {
			return nil
		}
		return err
	}
	var samples []struct {
		Band    string  `json:"band"`
		Percent float64 `json:"utilization"`
	}
	if err := goccyjson.Unmarshal(body, &samples); err != nil {
		return nil
	}
	for _, s := range samples {
		if err := c.d.Inst.WriteGauge(c.channelUtilization, []string{net.ID, s.Band}, s.Percent/100, merakitypes.TierMedium); err != nil {
			return err
		}
	}
	return nil
}

// connectionStatsSub is ConnectionStatsCollector's logic.
func (c *NetworkHealthCollector) connectionStatsSub(ctx context.Context, org merakitypes.Organization, net merakitypes.Network) error {
	endpoint := fmt.Sprintf("/networks/%s/wireless/connectionStats", net.ID)
	body, err := c.d.Client.GetTimeWindow(ctx, endpoint, meraki.TimeWindowParams{OrgID: org.ID, Optional: true, Tier: c.Tier()}, 3600)
	if err != nil {
		if meraki.IsNotAvailable(err) {
			return nil
		}
		return err
	}
	var stats struct {
		Assoc, Auth, Dhcp, Dns, Success int
	}
	if err := goccyjson.Unmarshal(body, &stats); err != nil {
		return nil
	}
	attempts := stats.Assoc + stats.Auth + stats.Dhcp + stats.Dns
	if attempts == 0 {
		return nil
	}
	return c.d.Inst.WriteGauge(c.connectionSuccess, []string{net.ID}, float64(stats.Success)/float64(attempts), merakitypes.TierMedium)
}

// dataRatesSub is DataRatesCollector's logic.
func (c *NetworkHealthCollector) dataRatesSub(ctx context.Context, org merakitypes.Organization, net merakitypes.Network) error {
	endpoint := fmt.Sprintf("/networks/%s/clients/overview", net.ID)
	body, err := c.d.Client.GetTimeWindow(ctx, endpoint, meraki.TimeWindowParams{OrgID: org.ID, Optional: true, Tier: c.Tier()}, 3600)
	if err != nil {
		if meraki.IsNotAvailable(err) {
			return nil
		}
		return err
	}
	var overview struct {
		Usage struct {
			Downstream float64 `json:"downstream"`
			Upstream   float64 `json:"upstream"`
		} `json:"usage"`
	}
	if err := goccyjson.Unmarshal(body, &overview); err != nil {
		return nil
	}
	if err := c.d.Inst.WriteGauge(c.dataRateMbps, []string{net.ID, "downstream"}, overview.Usage.Downstream, merakitypes.TierMedium); err != nil {
		return err
	}
	return c.d.Inst.WriteGauge(c.dataRateMbps, []string{net.ID, "upstream"}, overview.Usage.Upstream, merakitypes.TierMedium)
}

// bluetoothSub is BluetoothCollector's logic.
func (c *NetworkHealthCollector) bluetoothSub(ctx context.Context, org merakitypes.Organization, net merakitypes.Network) error {
	endpoint := fmt.Sprintf("/networks/%s/bluetoothClients", net.ID)
	body, err := c.d.Client.GetPaginated(ctx, endpoint, meraki.PaginatedParams{OrgID: org.ID, Optional: true, Tier: c.Tier()}, false)
	if err != nil {
		if meraki.IsNotAvailable(err) {
			return nil
		}
		return err
	}
	var clients []struct {
		ID string `json:"id"`
	}
	if err := goccyjson.Unmarshal(body, &clients); err != nil {
		return nil
	}
	return c.d.Inst.WriteGauge(c.bluetoothClients, []string{net.ID}, float64(len(clients)), merakitypes.TierMedium)
}
