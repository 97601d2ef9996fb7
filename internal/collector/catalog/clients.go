// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"fmt"
	"net"
	"time"

	goccyjson "github.com/goccy/go-json"

	"github.com/tomtom215/meraki-dashboard-exporter/internal/cache"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/collector"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/meraki"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/merakitypes"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/metrics"
)

// ClientsCollector is the per-network client inventory collector. It is
// disabled by default (ClientsConfig.Enabled) because enumerating every
// client on every network is comparatively expensive; when enabled it
// caps enumeration at MaxClientsPerNetwork per network.
type ClientsCollector struct {
	d Deps

	clientUsageBytes *metrics.Handle
	clientRSSI       *metrics.Handle
	clientStatusInfo *metrics.Handle
	ssidClients      *metrics.Handle
	vlanClients      *metrics.Handle
	dnsCacheHits     *metrics.Handle
	dnsCacheMisses   *metrics.Handle
	dnsCacheExpired  *metrics.Handle

	dnsCache *cache.Cache
}

// NewClientsCollector constructs the MEDIUM-tier client inventory
// collector. The DNS reverse-lookup cache is built even when the
// collector is disabled; it is simply never populated in that case.
func NewClientsCollector(d Deps) *ClientsCollector {
	ttl := d.Clients.DNSResolutionTimeout
	if ttl <= 0 {
		ttl = d.Clients.CacheTTL
	}
	return &ClientsCollector{d: d, dnsCache: cache.New(ttl)}
}

func (c *ClientsCollector) Name() string           { return "clients" }
func (c *ClientsCollector) Tier() merakitypes.Tier { return merakitypes.TierMedium }

func (c *ClientsCollector) InitializeMetrics(reg *metrics.Registry) {
	c.clientUsageBytes = reg.NewGauge("meraki_client_usage_bytes", "Client traffic usage over the collection window", "network_id", "client_id", "direction")
	c.clientRSSI = reg.NewGauge("meraki_client_rssi_dbm", "Client wireless signal strength", "network_id", "client_id")
	c.clientStatusInfo = reg.NewInfo("meraki_client_status_info", "Client identity and connection status", "network_id", "client_id", "description", "hostname", "status", "ssid")
	c.ssidClients = reg.NewGauge("meraki_network_ssid_clients_total", "Clients associated per SSID", "network_id", "ssid")
	c.vlanClients = reg.NewGauge("meraki_network_vlan_clients_total", "Clients associated per VLAN", "network_id", "vlan")
	c.dnsCacheHits = reg.NewGauge("meraki_client_dns_cache_hits_total", "Client hostname reverse-lookup cache hits")
	c.dnsCacheMisses = reg.NewGauge("meraki_client_dns_cache_misses_total", "Client hostname reverse-lookup cache misses")
	c.dnsCacheExpired = reg.NewGauge("meraki_client_dns_cache_expired_total", "Client hostname reverse-lookup cache entries evicted for age")
}

func (c *ClientsCollector) Collect(ctx context.Context) error {
	if !c.d.Clients.Enabled {
		return nil
	}

	orgs, err := c.d.Inv.GetOrganizations(ctx)
	if err != nil {
		return err
	}

	collector.RunBatchedWithWait(ctx, orgs, c.d.Batch.Size, c.d.Batch.ConcurrencyLimit, c.d.Batch.Delay,
		func(wait time.Duration) { c.d.Inst.TrackOrgWait(c.Tier(), wait) },
		func(ctx context.Context, org merakitypes.Organization) {
			c.collectOrg(ctx, org)
	})

	c.emitDNSCacheStats()
	return nil
}

func (c *ClientsCollector) emitDNSCacheStats() {
	stats := c.dnsCache.GetStats()
	_ = c.d.Inst.WriteGauge(c.dnsCacheHits, nil, float64(stats.Hits), merakitypes.TierMedium)
	_ = c.d.Inst.WriteGauge(c.dnsCacheMisses, nil, float64(stats.Misses), merakitypes.TierMedium)
	_ = c.d.Inst.WriteGauge(c.dnsCacheExpired, nil, float64(stats.Evictions), merakitypes.TierMedium)
}

func (c *ClientsCollector) collectOrg(ctx context.Context, org merakitypes.Organization) {
	track := func(cat merakitypes.ErrorCategory) { c.d.Inst.TrackError(c.Name(), c.Tier(), cat) }
	var networks []merakitypes.Network
	_ = collector.WithErrorHandling(ctx, true, track, func(ctx context.Context) error {
		var err error
		networks, err = c.d.Inv.GetNetworks(ctx, org.ID)
		return err
	})

	collector.RunBatched(ctx, networks, c.d.Batch.Size, c.d.Batch.ConcurrencyLimit, c.d.Batch.Delay, func(ctx context.Context, net merakitypes.Network) {
		track := func(cat merakitypes.ErrorCategory) { c.d.Inst.TrackError(c.Name(), c.Tier(), cat) }
		_ = collector.WithErrorHandling(ctx, true, track, func(ctx context.Context) error {
			return c.collectNetwork(ctx, org, net)
		})
	})
}

type client struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	IP          string `json:"ip"`
	SSID        string `json:"ssid"`
	Vlan        string `json:"vlan"`
	Status      string `json:"status"`
	Usage       struct {
		Sent int64 `json:"sent"`
		Recv int64 `json:"recv"`
	} `json:"usage"`
	// Rssi is only present for wireless clients; wired clients omit it.
	Rssi *int `json:"rssi"`
}

func (c *ClientsCollector) collectNetwork(ctx context.Context, org merakitypes.Organization, net merakitypes.Network) error {
	endpoint := fmt.Sprintf("/networks/%s/clients", net.ID)
	body, err := c.d.Client.GetPaginated(ctx, endpoint, meraki.PaginatedParams{
		OrgID:    org.ID,
		Optional: true,
		PerPage:  c.d.Clients.MaxClientsPerNetwork,
		Tier:     c.Tier(),
	}, false)
	if err != nil {
		if meraki.IsNotAvailable(err) {
			return nil
		}
		return err
	}

	var clients []client
	if err := goccyjson.Unmarshal(body, &clients); err != nil {
		return nil
	}

	if c.d.Clients.MaxClientsPerNetwork > 0 && len(clients) > c.d.Clients.MaxClientsPerNetwork {
		clients = clients[:c.d.Clients.MaxClientsPerNetwork]
	}

	ssidCounts := make(map[string]int)
	vlanCounts := make(map[string]int)

	for _, cl := range clients {
		ssidCounts[cl.SSID]++
		vlanCounts[cl.Vlan]++

		hostname := c.resolveHostname(cl.IP)

		if err := c.d.Inst.WriteInfo(c.clientStatusInfo, []string{net.ID, cl.ID, cl.Description, hostname, cl.Status, cl.SSID}, merakitypes.TierMedium); err != nil {
			return err
		}
		if err := c.d.Inst.WriteGauge(c.clientUsageBytes, []string{net.ID, cl.ID, "sent"}, float64(cl.Usage.Sent), merakitypes.TierMedium); err != nil {
			return err
		}
		if err := c.d.Inst.WriteGauge(c.clientUsageBytes, []string{net.ID, cl.ID, "recv"}, float64(cl.Usage.Recv), merakitypes.TierMedium); err != nil {
			return err
		}
		if cl.Rssi != nil {
			if err := c.d.Inst.WriteGauge(c.clientRSSI, []string{net.ID, cl.ID}, float64(*cl.Rssi), merakitypes.TierMedium); err != nil {
				return err
			}
		}
	}

	for ssid, n := range ssidCounts {
		if err := c.d.Inst.WriteGauge(c.ssidClients, []string{net.ID, ssid}, float64(n), merakitypes.TierMedium); err != nil {
			return err
		}
	}
	for vlan, n := range vlanCounts {
		if err := c.d.Inst.WriteGauge(c.vlanClients, []string{net.ID, vlan}, float64(n), merakitypes.TierMedium); err != nil {
			return err
		}
	}
	return nil
}

// resolveHostname performs a cached PTR lookup, honoring
// ClientsConfig.DNSResolutionEnabled. Lookup failures resolve to the
// empty string rather than propagating as collector errors.
func (c *ClientsCollector) resolveHostname(ip string) string {
	if !c.d.Clients.DNSResolutionEnabled || ip == "" {
		return ""
	}

	if v, ok := c.dnsCache.Get(ip); ok {
		if hostname, ok := v.(string); ok {
			return hostname
		}
		return ""
	}

	names, err := net.LookupAddr(ip)
	if err != nil || len(names) == 0 {
		c.dnsCache.Set(ip, "")
		return ""
	}
	c.dnsCache.Set(ip, names[0])
	return names[0]
}
