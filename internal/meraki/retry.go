// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

package meraki

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/meraki-dashboard-exporter/internal/merakitypes"
)

// requestOptions carries the per-call-site knobs a fetch helper needs:
// whether a 404 is an expected absence (optional), which organization (if
// any) scopes the circuit breaker and rate-limit gauges for this call, and
// which collection tier owns the client-level metrics this call writes.
type requestOptions struct {
	orgID    string
	optional bool
	tier     merakitypes.Tier
}

// effectiveTier defaults an unset tier to TierFast, so a call site that
// never assigns one (none currently do — see operations.go) still
// attributes its client-level metrics somewhere rather than panicking on a
// blank label.
func (o requestOptions) effectiveTier() merakitypes.Tier {
	if o.tier == "" {
		return merakitypes.TierFast
	}
	return o.tier
}

// doRequest executes method/path with the full retry, rate-limit, and
// circuit-breaker policy of spec.md §4.1 and §7, returning the decoded
// response body bytes on success. The circuit breaker wraps the whole
// call — including every retry — as a single unit of work, so a tripped
// breaker for one organization never partially drains another's budget,
// and invariant 6 (no partially-paginated results) holds regardless of
// breaker state.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, opts requestOptions) ([]byte, http.Header, error) {
	endpoint := path
	breaker := c.breakerFor(opts.orgID)

	// gobreaker.CircuitBreaker[[]byte] constrains Execute's return type to
	// just the body; the response header rides along via this closure
	// variable since Execute runs its func synchronously before returning.
	var header http.Header
	body, err := breaker.Execute(func() ([]byte, error) {
		b, h, err := c.doRequestWithRetry(ctx, method, endpoint, query, opts)
		header = h
		return b, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, nil, &APIError{Endpoint: endpoint, Method: method, Category: merakitypes.ErrorServer, Err: err}
		}
		return nil, nil, err
	}
	return body, header, nil
}

func (c *Client) doRequestWithRetry(ctx context.Context, method, endpoint string, query url.Values, opts requestOptions) ([]byte, http.Header, error) {
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := c.acquire(ctx); err != nil {
			return nil, nil, err
		}
		start := time.Now()
		body, header, status, retryAfter, err := c.doOnce(ctx, method, endpoint, query, opts)
		elapsed := time.Since(start)
		c.release()

		if err != nil {
			category := classifyNetworkError(err)
			lastErr = &APIError{Endpoint: endpoint, Method: method, Category: category, Err: err}
			if attempt == c.cfg.MaxRetries {
				return nil, nil, lastErr
			}
			c.observeRetry(endpoint, retryReasonFor(category), opts.effectiveTier())
			if waitErr := c.sleep(ctx, backoffDelay(c.cfg.RateLimitRetryWait, attempt)); waitErr != nil {
				return nil, nil, waitErr
			}
			continue
		}

		c.observeRequest(endpoint, method, status, elapsed, opts.effectiveTier())

		if status == http.StatusOK || status == http.StatusNoContent {
			return body, header, nil
		}

		category := classifyStatus(status, opts.optional)
		lastErr = &APIError{Endpoint: endpoint, Method: method, StatusCode: status, Category: category}

		switch category {
		case merakitypes.ErrorRateLimit, merakitypes.ErrorServer, merakitypes.ErrorTimeout:
			if attempt == c.cfg.MaxRetries {
				return nil, nil, lastErr
			}
			c.observeRetry(endpoint, retryReasonFor(category), opts.effectiveTier())
			wait := retryAfter
			if wait <= 0 {
				wait = backoffDelay(c.cfg.RateLimitRetryWait, attempt)
			}
			if waitErr := c.sleep(ctx, wait); waitErr != nil {
				return nil, nil, waitErr
			}
			continue
		default:
			// NOT_AVAILABLE and CLIENT_ERROR (and any other terminal
			// classification) never retry, per spec.md §4.1.
			return nil, nil, lastErr
		}
	}

	return nil, nil, lastErr
}

// doOnce issues a single HTTP request and returns the raw body, response
// headers (Link header pagination lives here), status code, and any
// server-advertised Retry-After duration. It never retries;
// doRequestWithRetry owns the retry loop.
func (c *Client) doOnce(ctx context.Context, method, endpoint string, query url.Values, opts requestOptions) ([]byte, http.Header, int, time.Duration, error) {
	reqURL := c.baseURL + endpoint
	req, err := http.NewRequestWithContext(ctx, method, reqURL, http.NoBody)
	if err != nil {
		return nil, nil, 0, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if len(query) > 0 {
		req.URL.RawQuery = query.Encode()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, 0, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, resp.StatusCode, 0, fmt.Errorf("read response body: %w", err)
	}

	c.observeRateLimitHeaders(opts.orgID, resp, opts.effectiveTier())

	var retryAfter time.Duration
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, parseErr := strconv.Atoi(ra); parseErr == nil {
			retryAfter = time.Duration(secs) * time.Second
		}
	}

	return body, resp.Header, resp.StatusCode, retryAfter, nil
}

// classifyNetworkError distinguishes a context deadline / timeout from
// other transport failures (connection refused, DNS failure, …), which
// spec.md §4.1 says to retry "same as 5xx".
func classifyNetworkError(err error) merakitypes.ErrorCategory {
	if errors.Is(err, context.DeadlineExceeded) {
		return merakitypes.ErrorTimeout
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return merakitypes.ErrorTimeout
	}
	return merakitypes.ErrorServer
}

// backoffDelay computes attempt-indexed exponential backoff: base * 2^attempt.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(1<<uint(attempt))
}
