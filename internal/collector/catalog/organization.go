// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"fmt"
	"time"

	goccyjson "github.com/goccy/go-json"

	"github.com/tomtom215/meraki-dashboard-exporter/internal/collector"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/merakitypes"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/meraki"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/metrics"
)

// OrganizationCollector is a coordinator: it resolves the organization
// list once per run and fans out to the leaf emissions named in
// spec.md §4.5.2 (API usage, licensing, client overview, plus
// networks/devices counts and application usage by category). Coordinators
// own no metrics their children could own; every Handle below belongs to a
// specific leaf concern even though they're declared in one collector.
type OrganizationCollector struct {
	d Deps

	orgInfo             *metrics.Handle
	networksTotal       *metrics.Handle
	devicesByModel      *metrics.Handle
	devicesAvailability *metrics.Handle
	appUsageBytes       *metrics.Handle
	apiRequestsByStatus *metrics.Handle
	licenseInfo         *metrics.Handle
	clientsTotal        *metrics.Handle
}

// NewOrganizationCollector constructs the MEDIUM-tier organization
// coordinator.
func NewOrganizationCollector(d Deps) *OrganizationCollector {
	return &OrganizationCollector{d: d}
}

func (c *OrganizationCollector) Name() string           { return "organization" }
func (c *OrganizationCollector) Tier() merakitypes.Tier { return merakitypes.TierMedium }

func (c *OrganizationCollector) InitializeMetrics(reg *metrics.Registry) {
	c.orgInfo = reg.NewInfo("meraki_organization_info", "Organization identity", "org_id", "org_name")
	c.networksTotal = reg.NewGauge("meraki_org_networks_total", "Networks in the organization", "org_id")
	c.devicesByModel = reg.NewGauge("meraki_org_devices_by_model_total", "Devices in the organization by model", "org_id", "model")
	c.devicesAvailability = reg.NewGauge("meraki_org_devices_availability_total", "Devices in the organization by availability status", "org_id", "status")
	c.appUsageBytes = reg.NewGauge("meraki_org_application_usage_bytes", "Bytes transferred by application category", "org_id", "category")
	c.apiRequestsByStatus = reg.NewGauge("meraki_org_api_requests_total", "Dashboard API requests made against the organization by response code, over the collection window", "org_id", "response_code")
	c.licenseInfo = reg.NewInfo("meraki_org_license_info", "License model and state", "org_id", "license_model", "status")
	c.clientsTotal = reg.NewGauge("meraki_org_clients_total", "Total clients seen in the organization's overview window", "org_id")
}

func (c *OrganizationCollector) Collect(ctx context.Context) error {
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

func (c *OrganizationCollector) collectOrg(ctx context.Context, org merakitypes.Organization) {
	track := func(cat merakitypes.ErrorCategory) { c.d.Inst.TrackError(c.Name(), c.Tier(), cat) }

	_ = collector.WithErrorHandling(ctx, true, track, func(ctx context.Context) error {
		return c.emitIdentityAndNetworks(ctx, org)
	})
	_ = collector.WithErrorHandling(ctx, true, track, func(ctx context.Context) error {
		return c.emitDevicesAndAvailability(ctx, org)
	})
	_ = collector.WithErrorHandling(ctx, true, track, func(ctx context.Context) error {
		return c.emitAPIUsage(ctx, org)
	})
	_ = collector.WithErrorHandling(ctx, true, track, func(ctx context.Context) error {
		return c.emitLicense(ctx, org)
	})
	_ = collector.WithErrorHandling(ctx, true, track, func(ctx context.Context) error {
		return c.emitAppUsage(ctx, org)
	})
	_ = collector.WithErrorHandling(ctx, true, track, func(ctx context.Context) error {
		return c.emitClientsOverview(ctx, org)
	})
}

// emitIdentityAndNetworks is the leaf logic spec.md assigns to the
// coordinator directly ("leaf emissions for networks ... counts").
func (c *OrganizationCollector) emitIdentityAndNetworks(ctx context.Context, org merakitypes.Organization) error {
	if err := c.writeInfo(c.orgInfo, []string{org.ID, org.Name}); err != nil {
		return err
	}

	networks, err := c.d.Inv.GetNetworks(ctx, org.ID)
	if err != nil {
		return err
	}
	return c.writeGauge(c.networksTotal, []string{org.ID}, float64(len(networks)))
}

func (c *OrganizationCollector) emitDevicesAndAvailability(ctx context.Context, org merakitypes.Organization) error {
	devices, err := c.d.Inv.GetDevices(ctx, org.ID, "")
	if err != nil {
		return err
	}

	byModel := make(map[string]int)
	for _, dev := range devices {
		byModel[dev.Model]++
	}
	for model, count := range byModel {
		if err := c.writeGauge(c.devicesByModel, []string{org.ID, model}, float64(count)); err != nil {
			return err
		}
	}

	availabilities, err := c.d.Client.ListOrgDeviceAvailabilities(ctx, org.ID, c.Tier())
	if err != nil {
		return err
	}
	byStatus := make(map[string]int)
	for _, a := range availabilities {
		byStatus[a.Status]++
	}
	for status, count := range byStatus {
		if err := c.writeGauge(c.devicesAvailability, []string{org.ID, status}, float64(count)); err != nil {
			return err
		}
	}
	return nil
}

// apiRequestsOverview is the wire shape of
// GET /organizations/{organizationId}/apiRequests/overview: a map of HTTP
// status code (as a string) to request count over the query window.
type apiRequestsOverview struct {
	ResponseCodeCounts map[string]int64 `json:"responseCodeCounts"`
}

// emitAPIUsage fetches the organization's Dashboard API request counts by
// response code over the last 24 hours, the APIUsageCollector sub-collector
// named in spec.md §4.5.2.
func (c *OrganizationCollector) emitAPIUsage(ctx context.Context, org merakitypes.Organization) error {
	body, err := c.d.Client.GetTimeWindow(ctx, "/organizations/%s/apiRequests/overview", meraki.TimeWindowParams{OrgID: org.ID, PathArg: org.ID, Optional: true, Tier: c.Tier()}, 24*60*60)
	if err != nil {
		if meraki.IsNotAvailable(err) {
			return nil
		}
		return err
	}

	var overview apiRequestsOverview
	if err := goccyjson.Unmarshal(body, &overview); err != nil {
		return fmt.Errorf("organization %s: decode api requests overview: %w", org.ID, err)
	}

	for code, count := range overview.ResponseCodeCounts {
		if err := c.writeGauge(c.apiRequestsByStatus, []string{org.ID, code}, float64(count)); err != nil {
			return err
		}
	}
	return nil
}

// emitLicense fetches the organization's license overview and detects
// which of the two upstream licensing models (per-device vs
// co-termination) is in effect, per spec.md §4.5.2, emitting the same
// metric shape either way.
func (c *OrganizationCollector) emitLicense(ctx context.Context, org merakitypes.Organization) error {
	body, err := c.d.Client.GetPaginated(ctx, "/organizations/%s/licenses/overview", meraki.PaginatedParams{OrgID: org.ID, PathArg: org.ID, Optional: true, Tier: c.Tier()}, false)
	if err != nil {
		if meraki.IsNotAvailable(err) {
			return nil
		}
		return err
	}

	model, status, ok := detectLicenseShape(body)
	if !ok {
		return fmt.Errorf("organization %s: unrecognized license response shape", org.ID)
	}
	return c.writeInfo(c.licenseInfo, []string{org.ID, model, status})
}

type appUsageCategory struct {
	Application string `json:"application"`
	Total       int64  `json:"total"`
}

// emitAppUsage fetches the organization's application-usage-by-category
// breakdown over the last 24 hours, per spec.md §4.5.2. The endpoint
// returns a bare array of categories, not a wrapped object.
func (c *OrganizationCollector) emitAppUsage(ctx context.Context, org merakitypes.Organization) error {
	body, err := c.d.Client.GetTimeWindow(ctx, "/organizations/%s/summary/top/appCategories/byUsage", meraki.TimeWindowParams{OrgID: org.ID, PathArg: org.ID, Optional: true, Tier: c.Tier()}, 24*60*60)
	if err != nil {
		if meraki.IsNotAvailable(err) {
			return nil
		}
		return err
	}

	var categories []appUsageCategory
	if err := goccyjson.Unmarshal(body, &categories); err != nil {
		return fmt.Errorf("organization %s: decode app usage: %w", org.ID, err)
	}

	for _, cat := range categories {
		if err := c.writeGauge(c.appUsageBytes, []string{org.ID, cat.Application}, float64(cat.Total)); err != nil {
			return err
		}
	}
	return nil
}

type clientOverviewCounts struct {
	Counts struct {
		Total int `json:"total"`
	} `json:"counts"`
}

// emitClientsOverview fetches the organization-wide client overview over
// the last 24 hours, per spec.md §4.5.2.
func (c *OrganizationCollector) emitClientsOverview(ctx context.Context, org merakitypes.Organization) error {
	body, err := c.d.Client.GetTimeWindow(ctx, "/organizations/%s/clients/overview", meraki.TimeWindowParams{OrgID: org.ID, PathArg: org.ID, Optional: true, Tier: c.Tier()}, 24*60*60)
	if err != nil {
		if meraki.IsNotAvailable(err) {
			return nil
		}
		return err
	}

	var overview clientOverviewCounts
	if err := goccyjson.Unmarshal(body, &overview); err != nil {
		return fmt.Errorf("organization %s: decode client overview: %w", org.ID, err)
	}
	return c.writeGauge(c.clientsTotal, []string{org.ID}, float64(overview.Counts.Total))
}

func (c *OrganizationCollector) writeGauge(h *metrics.Handle, labels []string, value float64) error {
	return c.d.Inst.WriteGauge(h, labels, value, c.Tier())
}

func (c *OrganizationCollector) writeInfo(h *metrics.Handle, labels []string) error {
	return c.d.Inst.WriteInfo(h, labels, c.Tier())
}
