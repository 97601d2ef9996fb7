// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

package meraki

import (
	"fmt"

	goccyjson "github.com/goccy/go-json"

	"github.com/tomtom215/meraki-dashboard-exporter/internal/merakitypes"
)

// decodeList unmarshals a Meraki list response into []T. The Dashboard API
// is inconsistent about list shape: most endpoints return a bare JSON
// array, a handful wrap it as {"items": [...]}. decodeList accepts both
// and rejects anything else as a VALIDATION error rather than silently
// returning an empty slice, since a shape the client doesn't recognize is
// a signal something upstream changed, not an empty result.
func decodeList[T any](endpoint string, body []byte) ([]T, error) {
	var bare []T
	if err := goccyjson.Unmarshal(body, &bare); err == nil {
		return bare, nil
	}

	var wrapped struct {
		Items []T `json:"items"`
	}
	if err := goccyjson.Unmarshal(body, &wrapped); err == nil && wrapped.Items != nil {
		return wrapped.Items, nil
	}

	return nil, &APIError{
		Endpoint: endpoint,
		Category: merakitypes.ErrorValidation,
		Err:      fmt.Errorf("unrecognized list response shape (expected array or {\"items\": [...]})"),
	}
}

// decodeObject unmarshals a single-object Meraki response into T.
func decodeObject[T any](endpoint string, body []byte) (T, error) {
	var out T
	if err := goccyjson.Unmarshal(body, &out); err != nil {
		return out, &APIError{
			Endpoint: endpoint,
			Category: merakitypes.ErrorValidation,
			Err:      fmt.Errorf("decode response: %w", err),
		}
	}
	return out, nil
}
