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

// ConfigCollector is the SLOW-tier collector for organization-wide
// security posture: the login security policy and the count of
// configuration changes over the trailing 24 hours.
type ConfigCollector struct {
	d Deps

	enforcePasswordExpiry *metrics.Handle
	minimumPasswordLength *metrics.Handle
	idleTimeoutMinutes    *metrics.Handle
	lockoutAttempts       *metrics.Handle
	twoFactorEnforced     *metrics.Handle
	configChanges24h      *metrics.Handle
}

// NewConfigCollector constructs the SLOW-tier configuration collector.
func NewConfigCollector(d Deps) *ConfigCollector {
	return &ConfigCollector{d: d}
}

func (c *ConfigCollector) Name() string           { return "config" }
func (c *ConfigCollector) Tier() merakitypes.Tier { return merakitypes.TierSlow }

func (c *ConfigCollector) InitializeMetrics(reg *metrics.Registry) {
	c.enforcePasswordExpiry = reg.NewGauge("meraki_org_login_security_password_expiry_enforced", "Whether password expiration is enforced", "org_id")
	c.minimumPasswordLength = reg.NewGauge("meraki_org_login_security_minimum_password_length", "Configured minimum password length", "org_id")
	c.idleTimeoutMinutes = reg.NewGauge("meraki_org_login_security_idle_timeout_minutes", "Configured idle timeout in minutes", "org_id")
	c.lockoutAttempts = reg.NewGauge("meraki_org_login_security_lockout_attempts", "Configured failed-login lockout threshold", "org_id")
	c.twoFactorEnforced = reg.NewGauge("meraki_org_login_security_two_factor_enforced", "Whether two-factor authentication is enforced", "org_id")
	c.configChanges24h = reg.NewGauge("meraki_org_configuration_changes_24h_total", "Configuration changes recorded in the trailing 24 hours", "org_id")
}

func (c *ConfigCollector) Collect(ctx context.Context) error {
	orgs, err := c.d.Inv.GetOrganizations(ctx)
	if err != nil {
		return err
	}

	collector.RunBatchedWithWait(ctx, orgs, c.d.Batch.Size, c.d.Batch.ConcurrencyLimit, c.d.Batch.Delay,
		func(wait time.Duration) { c.d.Inst.TrackOrgWait(c.Tier(), wait) },
		func(ctx context.Context, org merakitypes.Organization) {
			track := func(cat merakitypes.ErrorCategory) { c.d.Inst.TrackError(c.Name(), c.Tier(), cat) }
			_ = collector.WithErrorHandling(ctx, true, track, func(ctx context.Context) error {
				return c.emitLoginSecurity(ctx, org)
			})
			_ = collector.WithErrorHandling(ctx, true, track, func(ctx context.Context) error {
				return c.emitConfigChanges(ctx, org)
			})
	})
	return nil
}

type loginSecurityPolicy struct {
	EnforcePasswordExpiration  bool `json:"enforcePasswordExpiration"`
	MinimumPasswordLength      int  `json:"minimumPasswordLength"`
	IdleTimeoutMinutes         int  `json:"idleTimeoutMinutes"`
	AccountLockoutAttempts     int  `json:"accountLockoutAttempts"`
	EnforceTwoFactorAuth       bool `json:"enforceTwoFactorAuth"`
}

func (c *ConfigCollector) emitLoginSecurity(ctx context.Context, org merakitypes.Organization) error {
	endpoint := "/organizations/%s/loginSecurity"
	body, err := c.d.Client.GetPaginated(ctx, endpoint, meraki.PaginatedParams{OrgID: org.ID, PathArg: org.ID, Optional: true, Tier: c.Tier()}, false)
	if err != nil {
		if meraki.IsNotAvailable(err) {
			return nil
		}
		return err
	}

	var policy loginSecurityPolicy
	if err := goccyjson.Unmarshal(body, &policy); err != nil {
		return nil
	}

	if err := c.d.Inst.WriteGauge(c.enforcePasswordExpiry, []string{org.ID}, boolToFloat(policy.EnforcePasswordExpiration), merakitypes.TierSlow); err != nil {
		return err
	}
	if err := c.d.Inst.WriteGauge(c.minimumPasswordLength, []string{org.ID}, float64(policy.MinimumPasswordLength), merakitypes.TierSlow); err != nil {
		return err
	}
	if err := c.d.Inst.WriteGauge(c.idleTimeoutMinutes, []string{org.ID}, float64(policy.IdleTimeoutMinutes), merakitypes.TierSlow); err != nil {
		return err
	}
	if err := c.d.Inst.WriteGauge(c.lockoutAttempts, []string{org.ID}, float64(policy.AccountLockoutAttempts), merakitypes.TierSlow); err != nil {
		return err
	}
	return c.d.Inst.WriteGauge(c.twoFactorEnforced, []string{org.ID}, boolToFloat(policy.EnforceTwoFactorAuth), merakitypes.TierSlow)
}

func (c *ConfigCollector) emitConfigChanges(ctx context.Context, org merakitypes.Organization) error {
	endpoint := "/organizations/%s/configurationChanges"
	body, err := c.d.Client.GetTimeWindow(ctx, endpoint, meraki.TimeWindowParams{OrgID: org.ID, PathArg: org.ID, Optional: true, Tier: c.Tier()}, 24*60*60)
	if err != nil {
		if meraki.IsNotAvailable(err) {
			return nil
		}
		return err
	}

	var changes []struct {
		Ts string `json:"ts"`
	}
	if err := goccyjson.Unmarshal(body, &changes); err != nil {
		return nil
	}
	return c.d.Inst.WriteGauge(c.configChanges24h, []string{org.ID}, float64(len(changes)), merakitypes.TierSlow)
}
