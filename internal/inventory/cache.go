// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

package inventory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/meraki-dashboard-exporter/internal/merakitypes"
)

// UpstreamClient is the subset of the Upstream Client the Inventory Cache
// depends on. Defined here, rather than imported from package meraki, so
// tests can supply a fake without standing up an httptest server.
type UpstreamClient interface {
	ListOrganizations(ctx context.Context) ([]merakitypes.Organization, error)
	ListOrgNetworks(ctx context.Context, orgID string, productType merakitypes.NetworkProductType) ([]merakitypes.Network, error)
	ListOrgDevices(ctx context.Context, orgID string, productTypes []merakitypes.ProductType, modelPrefix string) ([]merakitypes.Device, error)
}

// Cache serves get_organizations/get_networks/get_devices with a shared
// TTL and single-flight fetch, per invariant 2: at most one in-flight
// fetch per (organization_id, resource) key at any instant.
type Cache struct {
	client UpstreamClient
	ttl    time.Duration
	group  singleflight.Group

	mu    sync.RWMutex
	orgs  merakitypes.InventoryEntry[[]merakitypes.Organization]
	nets  map[string]merakitypes.InventoryEntry[[]merakitypes.Network]
	devs  map[string]merakitypes.InventoryEntry[[]merakitypes.Device]
}

// New builds an Inventory Cache with the given ttl; New applies no default.
// main.go passes the MEDIUM tier interval.
func New(client UpstreamClient, ttl time.Duration) *Cache {
	return &Cache{
		client: client,
		ttl:    ttl,
		nets:   make(map[string]merakitypes.InventoryEntry[[]merakitypes.Network]),
		devs:   make(map[string]merakitypes.InventoryEntry[[]merakitypes.Device]),
	}
}

// GetOrganizations returns the cached organization list, refreshing it if
// absent or expired.
func (c *Cache) GetOrganizations(ctx context.Context) ([]merakitypes.Organization, error) {
	c.mu.RLock()
	entry := c.orgs
	c.mu.RUnlock()

	if c.fresh(entry.FetchedAt) {
		return entry.Value, nil
	}

	v, err, _ := c.group.Do("organizations", func() (interface{}, error) {
		fresh, fetchErr := c.client.ListOrganizations(ctx)
		if fetchErr != nil {
			return nil, fetchErr
		}
		c.mu.Lock()
		c.orgs = merakitypes.InventoryEntry[[]merakitypes.Organization]{Value: fresh, FetchedAt: time.Now()}
		c.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]merakitypes.Organization), nil
}

// GetNetworks returns the cached network list for orgID, refreshing it if
// absent or expired.
func (c *Cache) GetNetworks(ctx context.Context, orgID string) ([]merakitypes.Network, error) {
	c.mu.RLock()
	entry, ok := c.nets[orgID]
	c.mu.RUnlock()

	if ok && c.fresh(entry.FetchedAt) {
		return entry.Value, nil
	}

	v, err, _ := c.group.Do("networks:"+orgID, func() (interface{}, error) {
		fresh, fetchErr := c.client.ListOrgNetworks(ctx, orgID, "")
		if fetchErr != nil {
			return nil, fetchErr
		}
		c.mu.Lock()
		c.nets[orgID] = merakitypes.InventoryEntry[[]merakitypes.Network]{Value: fresh, FetchedAt: time.Now()}
		c.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]merakitypes.Network), nil
}

// GetDevices returns the cached device list for orgID, filtered
// client-side to networkID when non-empty, refreshing the underlying
// org-wide list if absent or expired.
func (c *Cache) GetDevices(ctx context.Context, orgID, networkID string) ([]merakitypes.Device, error) {
	c.mu.RLock()
	entry, ok := c.devs[orgID]
	c.mu.RUnlock()

	if !ok || !c.fresh(entry.FetchedAt) {
		v, err, _ := c.group.Do("devices:"+orgID, func() (interface{}, error) {
			fresh, fetchErr := c.client.ListOrgDevices(ctx, orgID, nil, "")
			if fetchErr != nil {
				return nil, fetchErr
			}
			c.mu.Lock()
			c.devs[orgID] = merakitypes.InventoryEntry[[]merakitypes.Device]{Value: fresh, FetchedAt: time.Now()}
			c.mu.Unlock()
			return fresh, nil
		})
		if err != nil {
			return nil, err
		}
		entry = merakitypes.InventoryEntry[[]merakitypes.Device]{Value: v.([]merakitypes.Device), FetchedAt: time.Now()}
	}

	if networkID == "" {
		return entry.Value, nil
	}

	filtered := make([]merakitypes.Device, 0, len(entry.Value))
	for _, d := range entry.Value {
		if d.NetworkID == networkID {
			filtered = append(filtered, d)
		}
	}
	return filtered, nil
}

func (c *Cache) fresh(fetchedAt time.Time) bool {
	return !fetchedAt.IsZero() && time.Since(fetchedAt) < c.ttl
}
