// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

package meraki

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tomtom215/meraki-dashboard-exporter/internal/merakitypes"
)

// APIError is the typed error every Upstream Client operation returns on
// failure. Collectors switch on Category, never on StatusCode directly,
// per spec.md §7's exhaustive-taxonomy requirement.
type APIError struct {
	Endpoint   string
	Method     string
	StatusCode int
	Category   merakitypes.ErrorCategory
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("meraki: %s %s: %s (status %d): %v", e.Method, e.Endpoint, e.Category, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("meraki: %s %s: %s (status %d)", e.Method, e.Endpoint, e.Category, e.StatusCode)
}

func (e *APIError) Unwrap() error { return e.Err }

// IsNotAvailable reports whether err is an APIError classified
// NOT_AVAILABLE — the one category a caller is expected to recover from
// silently (spec.md §4.1 "Failure semantics").
func IsNotAvailable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Category == merakitypes.ErrorNotAvailable
	}
	return false
}

// classifyStatus maps an HTTP status code to an ErrorCategory. A 404 on an
// endpoint the caller has marked optional classifies as NOT_AVAILABLE;
// the same status on a required endpoint classifies as CLIENT_ERROR, per
// the Open Question decision recorded in DESIGN.md: the optional flag
// decides whether "not found" is an expected absence or a real failure.
func classifyStatus(statusCode int, optional bool) merakitypes.ErrorCategory {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return merakitypes.ErrorRateLimit
	case statusCode == http.StatusRequestTimeout:
		// 408 retries the same as 5xx per spec.md §4.1, not as a terminal
		// client error.
		return merakitypes.ErrorTimeout
	case statusCode == http.StatusNotFound && optional:
		return merakitypes.ErrorNotAvailable
	case statusCode >= 400 && statusCode < 500:
		return merakitypes.ErrorClient
	case statusCode >= 500:
		return merakitypes.ErrorServer
	default:
		return merakitypes.ErrorUnknown
	}
}

// retryReasonFor names the api_retry_attempts_total{retry_reason} label
// value for a given category. Only categories the retry loop actually
// retries on appear here; everything else is a terminal classification.
func retryReasonFor(category merakitypes.ErrorCategory) string {
	switch category {
	case merakitypes.ErrorRateLimit:
		return "rate_limit"
	case merakitypes.ErrorServer:
		return "server_error"
	case merakitypes.ErrorTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}
