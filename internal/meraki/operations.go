// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

package meraki

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tomtom215/meraki-dashboard-exporter/internal/merakitypes"
)

// orgListing is the wire shape of an entry in GET /organizations.
type orgListing struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// networkListing is the wire shape of an entry in
// GET /organizations/{orgId}/networks.
type networkListing struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	OrganizationID string   `json:"organizationId"`
	ProductTypes   []string `json:"productTypes"`
}

// deviceListing is the wire shape of an entry in
// GET /organizations/{orgId}/devices.
type deviceListing struct {
	Serial         string `json:"serial"`
	Name           string `json:"name"`
	Model          string `json:"model"`
	ProductType    string `json:"productType"`
	OrganizationID string `json:"organizationId"`
	NetworkID      string `json:"networkId"`
}

// DeviceAvailability is one entry of ListOrgDeviceAvailabilities.
type DeviceAvailability struct {
	Serial      string `json:"serial"`
	ProductType string `json:"productType"`
	Status      string `json:"status"`
}

// inventoryCacheTier is the tier attributed to client-level metrics for
// calls the Inventory Cache makes on its own refresh cadence rather than a
// single collector's tick (main.go builds the Inventory Cache with the
// MEDIUM tier interval as its TTL).
const inventoryCacheTier = merakitypes.TierMedium

// ListOrganizations lists every organization visible to the configured API
// key. Not organization-scoped, so it uses the global circuit breaker key.
func (c *Client) ListOrganizations(ctx context.Context) ([]merakitypes.Organization, error) {
	body, _, err := c.doRequest(ctx, "GET", "/organizations", nil, requestOptions{tier: inventoryCacheTier})
	if err != nil {
		return nil, err
	}
	raw, err := decodeList[orgListing]("/organizations", body)
	if err != nil {
		return nil, err
	}

	out := make([]merakitypes.Organization, 0, len(raw))
	for _, o := range raw {
		out = append(out, merakitypes.Organization{ID: o.ID, Name: o.Name})
	}
	return out, nil
}

// ListOrgNetworks lists the networks belonging to org_id, optionally
// filtered server-side to a single product type.
func (c *Client) ListOrgNetworks(ctx context.Context, orgID string, productType merakitypes.NetworkProductType) ([]merakitypes.Network, error) {
	if err := validateNonEmpty("org_id", orgID); err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("/organizations/%s/networks", orgID)

	query := url.Values{}
	if productType != "" {
		query.Set("productTypes[]", string(productType))
	}

	body, _, err := c.doRequest(ctx, "GET", endpoint, query, requestOptions{orgID: orgID, tier: inventoryCacheTier})
	if err != nil {
		return nil, err
	}
	raw, err := decodeList[networkListing](endpoint, body)
	if err != nil {
		return nil, err
	}

	out := make([]merakitypes.Network, 0, len(raw))
	for _, n := range raw {
		pts := make(map[merakitypes.NetworkProductType]struct{}, len(n.ProductTypes))
		for _, p := range n.ProductTypes {
			pts[merakitypes.NetworkProductType(p)] = struct{}{}
		}
		out = append(out, merakitypes.Network{
			ID:             n.ID,
			Name:           n.Name,
			OrganizationID: n.OrganizationID,
			ProductTypes:   pts,
		})
	}
	return out, nil
}

// ListOrgDevices lists the devices belonging to org_id, optionally filtered
// server-side by productTypes and a model prefix.
func (c *Client) ListOrgDevices(ctx context.Context, orgID string, productTypes []merakitypes.ProductType, modelPrefix string) ([]merakitypes.Device, error) {
	if err := validateNonEmpty("org_id", orgID); err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("/organizations/%s/devices", orgID)

	query := url.Values{}
	for _, pt := range productTypes {
		query.Add("productTypes[]", string(pt))
	}
	if modelPrefix != "" {
		query.Set("models[]", modelPrefix)
	}

	body, _, err := c.doRequest(ctx, "GET", endpoint, query, requestOptions{orgID: orgID, tier: inventoryCacheTier})
	if err != nil {
		return nil, err
	}
	raw, err := decodeList[deviceListing](endpoint, body)
	if err != nil {
		return nil, err
	}

	out := make([]merakitypes.Device, 0, len(raw))
	for _, d := range raw {
		out = append(out, merakitypes.Device{
			Serial:         d.Serial,
			Name:           d.Name,
			Model:          d.Model,
			ProductType:    merakitypes.ResolveProductType(d.Model, d.ProductType),
			OrganizationID: d.OrganizationID,
			NetworkID:      d.NetworkID,
		})
	}
	return out, nil
}

// ListOrgDeviceAvailabilities reports the connectivity status of every
// device in org_id. tier attributes this call's client-level metrics to
// the collector tier that issued it.
func (c *Client) ListOrgDeviceAvailabilities(ctx context.Context, orgID string, tier merakitypes.Tier) ([]DeviceAvailability, error) {
	if err := validateNonEmpty("org_id", orgID); err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("/organizations/%s/devices/availabilities", orgID)

	body, _, err := c.doRequest(ctx, "GET", endpoint, nil, requestOptions{orgID: orgID, tier: tier})
	if err != nil {
		return nil, err
	}
	return decodeList[DeviceAvailability](endpoint, body)
}

// TimeWindowParams parameterizes GetTimeWindow: the organization or network
// scoping the call (whichever the endpoint expects is encoded in path),
// plus any extra query parameters.
type TimeWindowParams struct {
	// OrgID scopes the per-organization circuit breaker; always set when
	// the call is organization-attributable, whether or not it also
	// appears in the path.
	OrgID string
	// PathArg substitutes into endpointID's single %s verb, when present.
	// Leave empty for an already-complete path (e.g. one keyed by device
	// serial rather than organization ID).
	PathArg  string
	Query    url.Values
	Optional bool
	// Tier attributes this call's client-level metrics to the collector
	// tier that issued it, rather than a fixed tier that may reap the
	// series faster than the endpoint is actually used.
	Tier merakitypes.Tier
}

// GetTimeWindow issues a parameterized time-windowed fetch against
// endpointID (a path such as "/organizations/%s/wireless/channelUtilization"
// already containing a single %s for the path argument, or a fully-formed
// path with no substitution needed). timespanSeconds is validated positive
// and added to the query as "timespan".
func (c *Client) GetTimeWindow(ctx context.Context, endpointID string, params TimeWindowParams, timespanSeconds int) ([]byte, error) {
	if err := validatePositive("timespan_seconds", timespanSeconds); err != nil {
		return nil, err
	}

	endpoint := endpointID
	if params.PathArg != "" {
		endpoint = fmt.Sprintf(endpointID, params.PathArg)
	}

	query := params.Query
	if query == nil {
		query = url.Values{}
	}
	query.Set("timespan", strconv.Itoa(timespanSeconds))

	body, _, err := c.doRequest(ctx, "GET", endpoint, query, requestOptions{orgID: params.OrgID, optional: params.Optional, tier: params.Tier})
	return body, err
}

// PaginatedParams parameterizes GetPaginated.
type PaginatedParams struct {
	OrgID    string
	PathArg  string
	Query    url.Values
	Optional bool
	PerPage  int
	// Tier attributes this call's client-level metrics to the collector
	// tier that issued it, rather than a fixed tier that may reap the
	// series faster than the endpoint is actually used.
	Tier merakitypes.Tier
}

// GetPaginated issues a request against endpointID, following Link-header
// pagination when allPages is true. Per invariant 6, a failure on any page
// after the first discards every page already fetched and returns an
// error: callers never observe a partial list.
func (c *Client) GetPaginated(ctx context.Context, endpointID string, params PaginatedParams, allPages bool) ([]byte, error) {
	endpoint := endpointID
	if params.PathArg != "" {
		endpoint = fmt.Sprintf(endpointID, params.PathArg)
	}

	query := params.Query
	if query == nil {
		query = url.Values{}
	}
	if params.PerPage > 0 {
		query.Set("perPage", strconv.Itoa(params.PerPage))
	}

	opts := requestOptions{orgID: params.OrgID, optional: params.Optional, tier: params.Tier}

	if !allPages {
		body, _, err := c.doRequest(ctx, "GET", endpoint, query, opts)
		return body, err
	}

	var pages [][]byte
	next := endpoint
	nextQuery := query
	for {
		body, header, err := c.doRequest(ctx, "GET", next, nextQuery, opts)
		if err != nil {
			// Discard everything accumulated so far; no partial result
			// ever reaches the caller.
			return nil, err
		}
		pages = append(pages, body)

		more, linkEndpoint, linkQuery := c.parseNextLink(header)
		if !more {
			break
		}
		next, nextQuery = linkEndpoint, linkQuery
	}

	return mergePages(pages)
}

// parseNextLink resolves the next page from the RFC 5988 Link response
// header the Meraki Dashboard API uses for pagination, e.g.
// `Link: <https://api.meraki.com/api/v1/organizations/123/devices?perPage=50&startingAfter=abc>; rel=next`.
// Only rel="next" is followed; absent or unparseable Link headers end
// pagination rather than erroring, since a malformed header on a later
// page shouldn't discard the pages already fetched.
func (c *Client) parseNextLink(header http.Header) (more bool, endpoint string, query url.Values) {
	if header == nil {
		return false, "", nil
	}
	for _, link := range header.Values("Link") {
		for _, part := range strings.Split(link, ",") {
			segs := strings.Split(part, ";")
			if len(segs) < 2 {
				continue
			}
			urlPart := strings.TrimSpace(segs[0])
			if !strings.HasPrefix(urlPart, "<") || !strings.HasSuffix(urlPart, ">") {
				continue
			}
			isNext := false
			for _, param := range segs[1:] {
				if strings.TrimSpace(param) == `rel="next"` || strings.TrimSpace(param) == "rel=next" {
					isNext = true
					break
				}
			}
			if !isNext {
				continue
			}
			rawURL := strings.TrimSuffix(strings.TrimPrefix(urlPart, "<"), ">")
			parsed, err := url.Parse(rawURL)
			if err != nil {
				return false, "", nil
			}
			basePath := ""
			if base, err := url.Parse(c.baseURL); err == nil {
				basePath = base.Path
			}
			return true, strings.TrimPrefix(parsed.Path, basePath), parsed.Query()
		}
	}
	return false, "", nil
}

// mergePages concatenates bare-array JSON pages into a single array. A
// single page is returned unchanged.
func mergePages(pages [][]byte) ([]byte, error) {
	if len(pages) == 1 {
		return pages[0], nil
	}
	merged := make([]byte, 0, 2)
	merged = append(merged, '[')
	for i, p := range pages {
		inner := trimArrayBrackets(p)
		if i > 0 && len(inner) > 0 {
			merged = append(merged, ',')
		}
		merged = append(merged, inner...)
	}
	merged = append(merged, ']')
	return merged, nil
}

func trimArrayBrackets(body []byte) []byte {
	b := body
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\n' || b[0] == '\t') {
		b = b[1:]
	}
	if len(b) >= 2 && b[0] == '[' && b[len(b)-1] == ']' {
		return b[1 : len(b)-1]
	}
	return b
}
