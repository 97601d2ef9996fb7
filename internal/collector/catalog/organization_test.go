// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/meraki-dashboard-exporter/internal/collector"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/config"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/inventory"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/meraki"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/metrics"
)

// newTestDeps stands up a fake Meraki Dashboard API with fixed responses
// for every endpoint OrganizationCollector touches, and wires a real
// Upstream Client and Inventory Cache against it, exactly as main.go does.
func newTestDeps(t *testing.T, handler http.Handler) (Deps, *metrics.Registry) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	reg := metrics.New()
	client := meraki.New(
		config.MerakiConfig{APIKey: "test-key", APIBaseURL: srv.URL},
		config.APIConfig{MaxRetries: 0, ConcurrencyLimit: 4, BatchSize: 4, RateLimitRetryWait: time.Millisecond},
		reg,
	)
	inv := inventory.New(client, time.Minute)

	return Deps{
		Client: client,
		Inv:    inv,
		Inst:   collector.NewInstrumentation(reg),
		Batch:  BatchConfig{Size: 10, ConcurrencyLimit: 2, Delay: 0},
	}, reg
}

func organizationFixtureHandler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/organizations", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"111","name":"Acme"}]`))
	})
	mux.HandleFunc("/organizations/111/networks", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"N1","name":"HQ","organizationId":"111","productTypes":["switch"]}]`))
	})
	mux.HandleFunc("/organizations/111/devices", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"serial":"Q2XX-0001","name":"sw1","model":"MS120-8","productType":"switch","organizationId":"111","networkId":"N1"}]`))
	})
	mux.HandleFunc("/organizations/111/devices/availabilities", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"serial":"Q2XX-0001","productType":"switch","status":"online"}]`))
	})
	mux.HandleFunc("/organizations/111/licenses/overview", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"OK","expirationDate":"2027-01-01","licensedDeviceCounts":{"MS":1}}`))
	})
	mux.HandleFunc("/organizations/111/apiRequests/overview", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"responseCodeCounts":{"200":100,"404":3}}`))
	})
	mux.HandleFunc("/organizations/111/summary/top/appCategories/byUsage", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"application":"Web","total":1024}]`))
	})
	mux.HandleFunc("/organizations/111/clients/overview", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"counts":{"total":42}}`))
	})
	return mux
}

func TestOrganizationCollector_Collect_EmitsAllLeaves(t *testing.T) {
	deps, reg := newTestDeps(t, organizationFixtureHandler(t))
	c := NewOrganizationCollector(deps)
	c.InitializeMetrics(reg)

	if err := c.Collect(t.Context()); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	for _, name := range []string{
		"meraki_organization_info",
		"meraki_org_networks_total",
		"meraki_org_devices_by_model_total",
		"meraki_org_devices_availability_total",
		"meraki_org_license_info",
		"meraki_org_application_usage_bytes",
		"meraki_org_clients_total",
	} {
		count, err := testutil.GatherAndCount(reg.Gatherer(), name)
		if err != nil {
			t.Fatalf("GatherAndCount(%s): %v", name, err)
		}
		if count != 1 {
			t.Errorf("%s series count = %d, want 1", name, count)
		}
	}

	// meraki_org_api_requests_total carries one series per response code;
	// the fixture serves two (200, 404).
	apiUsageCount, err := testutil.GatherAndCount(reg.Gatherer(), "meraki_org_api_requests_total")
	if err != nil {
		t.Fatalf("GatherAndCount(meraki_org_api_requests_total): %v", err)
	}
	if apiUsageCount != 2 {
		t.Errorf("meraki_org_api_requests_total series count = %d, want 2", apiUsageCount)
	}

	want := `
# HELP meraki_org_clients_total Total clients seen in the organization's overview window
# TYPE meraki_org_clients_total gauge
meraki_org_clients_total{org_id="111"} 42
`
	if err := testutil.GatherAndCompare(reg.Gatherer(), strings.NewReader(want), "meraki_org_clients_total"); err != nil {
		t.Errorf("meraki_org_clients_total mismatch: %v", err)
	}
}

// TestOrganizationCollector_Collect_SkipsUnavailableLicense asserts that a
// 404 from an unsupported license endpoint is treated as absence, not a
// collector failure, per the Optional request-option contract.
func TestOrganizationCollector_Collect_SkipsUnavailableLicense(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/organizations", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"111","name":"Acme"}]`))
	})
	mux.HandleFunc("/organizations/111/networks", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	mux.HandleFunc("/organizations/111/devices", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	mux.HandleFunc("/organizations/111/devices/availabilities", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	mux.HandleFunc("/organizations/111/licenses/overview", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/organizations/111/summary/top/appCategories/byUsage", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	mux.HandleFunc("/organizations/111/clients/overview", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"counts":{"total":0}}`))
	})

	deps, reg := newTestDeps(t, mux)
	c := NewOrganizationCollector(deps)
	c.InitializeMetrics(reg)

	if err := c.Collect(t.Context()); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	count, err := testutil.GatherAndCount(reg.Gatherer(), "meraki_org_license_info")
	if err != nil {
		t.Fatalf("GatherAndCount: %v", err)
	}
	if count != 0 {
		t.Errorf("meraki_org_license_info series count = %d, want 0 (license endpoint unavailable)", count)
	}
}
