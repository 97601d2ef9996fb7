// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"time"

	goccyjson "github.com/goccy/go-json"

	"github.com/tomtom215/meraki-dashboard-exporter/internal/collector"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/meraki"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/merakitypes"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/metrics"
)

// AlertsCollector reports active assurance alerts per organization,
// grouped by alert type/category/severity/device type/network, plus a
// per-network count of sensor alerts. It emits no separate network-health
// alert summary.
type AlertsCollector struct {
	d Deps

	activeAlerts  *metrics.Handle
	sensorAlerts  *metrics.Handle
}

// NewAlertsCollector constructs the MEDIUM-tier alerts collector.
func NewAlertsCollector(d Deps) *AlertsCollector {
	return &AlertsCollector{d: d}
}

func (c *AlertsCollector) Name() string           { return "alerts" }
func (c *AlertsCollector) Tier() merakitypes.Tier { return merakitypes.TierMedium }

func (c *AlertsCollector) InitializeMetrics(reg *metrics.Registry) {
	c.activeAlerts = reg.NewGauge("meraki_org_active_alerts_total", "Active assurance alerts", "org_id", "alert_type", "category", "severity", "device_type", "network_id")
	c.sensorAlerts = reg.NewGauge("meraki_org_sensor_alerts_total", "Active sensor alerts", "org_id", "network_id")
}

func (c *AlertsCollector) Collect(ctx context.Context) error {
	orgs, err := c.d.Inv.GetOrganizations(ctx)
	if err != nil {
		return err
	}

	collector.RunBatchedWithWait(ctx, orgs, c.d.Batch.Size, c.d.Batch.ConcurrencyLimit, c.d.Batch.Delay,
		func(wait time.Duration) { c.d.Inst.TrackOrgWait(c.Tier(), wait) },
		func(ctx context.Context, org merakitypes.Organization) {
			track := func(cat merakitypes.ErrorCategory) { c.d.Inst.TrackError(c.Name(), c.Tier(), cat) }
			_ = collector.WithErrorHandling(ctx, true, track, func(ctx context.Context) error {
				return c.collectOrg(ctx, org)
			})
	})
	return nil
}

type assuranceAlert struct {
	AlertType  string `json:"type"`
	Category   string `json:"category"`
	Severity   string `json:"severity"`
	DeviceType string `json:"deviceType"`
	Network    struct {
		ID string `json:"id"`
	} `json:"network"`
}

func (c *AlertsCollector) collectOrg(ctx context.Context, org merakitypes.Organization) error {
	endpoint := "/organizations/%s/assurance/alerts"
	body, err := c.d.Client.GetPaginated(ctx, endpoint, meraki.PaginatedParams{OrgID: org.ID, PathArg: org.ID, Optional: true, Tier: c.Tier()}, true)
	if err != nil {
		if meraki.IsNotAvailable(err) {
			return nil
		}
		return err
	}

	var alerts []assuranceAlert
	if err := goccyjson.Unmarshal(body, &alerts); err != nil {
		return nil
	}

	type key struct{ alertType, category, severity, deviceType, network string }
	counts := make(map[key]int)
	sensorByNetwork := make(map[string]int)

	for _, a := range alerts {
		counts[key{a.AlertType, a.Category, a.Severity, a.DeviceType, a.Network.ID}]++
		if a.DeviceType == "sensor" {
			sensorByNetwork[a.Network.ID]++
		}
	}

	for k, n := range counts {
		labels := []string{org.ID, k.alertType, k.category, k.severity, k.deviceType, k.network}
		if err := c.d.Inst.WriteGauge(c.activeAlerts, labels, float64(n), merakitypes.TierMedium); err != nil {
			return err
		}
	}
	for networkID, n := range sensorByNetwork {
		if err := c.d.Inst.WriteGauge(c.sensorAlerts, []string{org.ID, networkID}, float64(n), merakitypes.TierMedium); err != nil {
			return err
		}
	}
	return nil
}
