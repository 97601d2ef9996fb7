// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

// Package meraki is the Upstream Client: the sole bridge between the
// collection engine and the Cisco Meraki Dashboard REST API. Every
// collector depends only on this package's public operations — none
// issue their own HTTP calls.
package meraki

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/meraki-dashboard-exporter/internal/config"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/logging"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/merakitypes"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/metrics"
)

// Client is the concurrency-safe Upstream Client. All operations are safe
// for concurrent use; a process-wide semaphore bounds outbound concurrency
// and a token-bucket limiter smooths admission ahead of it.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	cfg        config.APIConfig

	sem     chan struct{}
	limiter *rate.Limiter

	breakersMu sync.Mutex
	breakers   map[string]*gobreaker.CircuitBreaker[[]byte]

	registry *metrics.Registry
	m        clientMetrics
}

type clientMetrics struct {
	requestsTotal      *metrics.Handle
	requestDuration    *metrics.Handle
	retryAttempts      *metrics.Handle
	rateLimitRemaining *metrics.Handle
	rateLimitTotal     *metrics.Handle
	breakerState       *metrics.Handle
	breakerTransitions *metrics.Handle
}

// New builds an Upstream Client. reg must be the same Registry instance
// used for collector metrics, so the client's own observability lives
// alongside collector-emitted series.
func New(cfg config.MerakiConfig, apiCfg config.APIConfig, reg *metrics.Registry) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: apiCfg.Timeout},
		baseURL:    cfg.APIBaseURL,
		apiKey:     cfg.APIKey,
		cfg:        apiCfg,
		sem: make(chan struct{}, apiCfg.ConcurrencyLimit),
		// Admission is shaped in terms of the same batch knobs collectors
		// use for pagination: a burst of up to BatchSize requests, then one
		// request per BatchDelay, smoothing bursts before they reach the
		// semaphore. A zero BatchDelay leaves admission unlimited.
		limiter:  rate.NewLimiter(rate.Every(apiCfg.BatchDelay), apiCfg.BatchSize),
		breakers:   make(map[string]*gobreaker.CircuitBreaker[[]byte]),
		registry:   reg,
		m: clientMetrics{
			requestsTotal:      reg.NewCounter("api_requests_total", "Total Meraki API requests by outcome", "endpoint", "method", "status_code"),
			requestDuration:    reg.NewHistogram("api_request_duration_seconds", "Meraki API request duration", defaultRequestDurationBuckets(), "endpoint", "method", "status_code"),
			retryAttempts:      reg.NewCounter("api_retry_attempts_total", "Total retry attempts by reason", "endpoint", "retry_reason"),
			rateLimitRemaining: reg.NewGauge("api_rate_limit_remaining", "Remaining Meraki API rate limit, per organization", "org_id"),
			rateLimitTotal:     reg.NewGauge("api_rate_limit_total", "Total Meraki API rate limit window, per organization", "org_id"),
			breakerState:       reg.NewGauge("api_circuit_breaker_state", "Circuit breaker state (0=closed,1=half-open,2=open)", "org_id"),
			breakerTransitions: reg.NewCounter("api_circuit_breaker_transitions_total", "Circuit breaker state transitions", "org_id", "from", "to"),
		},
	}
}

// defaultRequestDurationBuckets are the latency buckets for
// api_request_duration_seconds.
func defaultRequestDurationBuckets() []float64 {
	return []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
}

func (c *Client) acquire(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return ctx.Err()
	}
	select {
	case c.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) release() { <-c.sem }

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// observeRequest and the rest of this file's observe* helpers attribute
// each write to the tier of the collector that issued the call, not a
// fixed tier, so a SLOW-tier-only endpoint's client-level series expire on
// the SLOW reap cadence instead of the fastest one regardless of which
// tier actually touched the API last.
func (c *Client) observeRequest(endpoint, method string, statusCode int, duration time.Duration, tier merakitypes.Tier) {
	status := strconv.Itoa(statusCode)
	_ = c.registry.Write(c.m.requestsTotal, []string{endpoint, method, status}, 1, tier)
	_ = c.registry.Write(c.m.requestDuration, []string{endpoint, method, status}, duration.Seconds(), tier)
}

func (c *Client) observeRetry(endpoint, reason string, tier merakitypes.Tier) {
	_ = c.registry.Write(c.m.retryAttempts, []string{endpoint, reason}, 1, tier)
}

func (c *Client) observeRateLimitHeaders(orgID string, resp *http.Response, tier merakitypes.Tier) {
	if orgID == "" {
		return
	}
	if remaining := resp.Header.Get("X-Ratelimit-Remaining"); remaining != "" {
		if v, err := strconv.ParseFloat(remaining, 64); err == nil {
			_ = c.registry.Write(c.m.rateLimitRemaining, []string{orgID}, v, tier)
		}
	}
	if total := resp.Header.Get("X-Ratelimit-Limit"); total != "" {
		if v, err := strconv.ParseFloat(total, 64); err == nil {
			_ = c.registry.Write(c.m.rateLimitTotal, []string{orgID}, v, tier)
		}
	}
}

// breakerFor returns the circuit breaker for an organization-scoped call
// group, creating it lazily. key is the organization ID, or "" for
// operations that aren't scoped to a single organization (list_organizations).
func (c *Client) breakerFor(key string) *gobreaker.CircuitBreaker[[]byte] {
	c.breakersMu.Lock()
	defer c.breakersMu.Unlock()

	if cb, ok := c.breakers[key]; ok {
		return cb
	}

	name := "meraki-org-" + key
	if key == "" {
		name = "meraki-global"
	}

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			logging.Warn().Str("org_id", key).Str("from", stateToString(from)).Str("to", stateToString(to)).Msg("meraki upstream circuit breaker state transition")
			_ = c.registry.Write(c.m.breakerState, []string{key}, stateToFloat(to), merakitypes.TierFast)
			_ = c.registry.Write(c.m.breakerTransitions, []string{key, stateToString(from), stateToString(to)}, 1, merakitypes.TierFast)
		},
	})

	c.breakers[key] = cb
	return cb
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
