// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

package meraki

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tomtom215/meraki-dashboard-exporter/internal/config"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/metrics"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return New(
		config.MerakiConfig{APIKey: "test-key", APIBaseURL: baseURL},
		config.APIConfig{
			Timeout:            0,
			MaxRetries:         1,
			ConcurrencyLimit:   4,
			BatchSize:          4,
			BatchDelay:         0,
			RateLimitRetryWait: 0,
		},
		metrics.New(),
	)
}

// TestGetPaginated_FollowsLinkHeader exercises the RFC 5988 pagination
// path end to end: three pages linked by successive Link headers, merged
// into one bare JSON array.
func TestGetPaginated_FollowsLinkHeader(t *testing.T) {
	pages := [][]byte{
		[]byte(`[1,2]`),
		[]byte(`[3,4]`),
		[]byte(`[5]`),
	}
	var callCount int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("startingAfter") {
		case "":
			callCount++
			w.Header().Set("Link", fmt.Sprintf(`<http://%s%s?startingAfter=p2>; rel="next"`, r.Host, r.URL.Path))
			w.Write(pages[0])
		case "p2":
			callCount++
			w.Header().Set("Link", fmt.Sprintf(`<http://%s%s?startingAfter=p3>; rel="next"`, r.Host, r.URL.Path))
			w.Write(pages[1])
		case "p3":
			callCount++
			w.Write(pages[2])
		default:
			t.Errorf("unexpected startingAfter %q", r.URL.Query().Get("startingAfter"))
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	body, err := c.GetPaginated(t.Context(), "/organizations/%s/devices", PaginatedParams{OrgID: "123", PathArg: "123"}, true)
	if err != nil {
		t.Fatalf("GetPaginated: %v", err)
	}
	if callCount != 3 {
		t.Fatalf("callCount = %d, want 3", callCount)
	}
	want := `[1,2,3,4,5]`
	if string(body) != want {
		t.Fatalf("body = %s, want %s", body, want)
	}
}

// TestGetPaginated_NoAllPages stops after the first page regardless of a
// Link header being present.
func TestGetPaginated_NoAllPages(t *testing.T) {
	var callCount int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		w.Header().Set("Link", fmt.Sprintf(`<http://%s%s?startingAfter=p2>; rel="next"`, r.Host, r.URL.Path))
		w.Write([]byte(`[1,2]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	body, err := c.GetPaginated(t.Context(), "/organizations/%s/devices", PaginatedParams{OrgID: "123", PathArg: "123"}, false)
	if err != nil {
		t.Fatalf("GetPaginated: %v", err)
	}
	if callCount != 1 {
		t.Fatalf("callCount = %d, want 1", callCount)
	}
	if string(body) != `[1,2]` {
		t.Fatalf("body = %s, want [1,2]", body)
	}
}

// TestParseNextLink covers the Link-header parsing cases directly:
// rel=next unquoted, rel="next" quoted, no Link header, and a Link
// header present but missing rel=next.
func TestParseNextLink(t *testing.T) {
	c := &Client{baseURL: "https://api.meraki.com/api/v1"}

	tests := []struct {
		name       string
		header     http.Header
		wantMore   bool
		wantSuffix string
	}{
		{
			name:   "no header",
			header: http.Header{},
		},
		{
			name:       "quoted rel",
			header:     http.Header{"Link": []string{`<https://api.meraki.com/api/v1/organizations/123/devices?startingAfter=abc>; rel="next"`}},
			wantMore:   true,
			wantSuffix: "/organizations/123/devices",
		},
		{
			name:       "unquoted rel",
			header:     http.Header{"Link": []string{`<https://api.meraki.com/api/v1/organizations/123/devices?startingAfter=abc>; rel=next`}},
			wantMore:   true,
			wantSuffix: "/organizations/123/devices",
		},
		{
			name:   "rel=prev only",
			header: http.Header{"Link": []string{`<https://api.meraki.com/api/v1/organizations/123/devices?startingAfter=abc>; rel="prev"`}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			more, endpoint, _ := c.parseNextLink(tt.header)
			if more != tt.wantMore {
				t.Fatalf("more = %v, want %v", more, tt.wantMore)
			}
			if more && endpoint != tt.wantSuffix {
				t.Fatalf("endpoint = %q, want %q", endpoint, tt.wantSuffix)
			}
		})
	}
}

// TestGetPaginated_PartialPageFailureDiscardsAll asserts invariant 6: a
// failure on a later page never returns the pages already fetched.
func TestGetPaginated_PartialPageFailureDiscardsAll(t *testing.T) {
	var callCount int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		if r.URL.Query().Get("startingAfter") == "" {
			w.Header().Set("Link", fmt.Sprintf(`<http://%s%s?startingAfter=p2>; rel="next"`, r.Host, r.URL.Path))
			w.Write([]byte(`[1,2]`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	body, err := c.GetPaginated(t.Context(), "/organizations/%s/devices", PaginatedParams{OrgID: "123", PathArg: "123"}, true)
	if err == nil {
		t.Fatal("expected error on second page failure")
	}
	if body != nil {
		t.Fatalf("body = %s, want nil on failure", body)
	}
}
