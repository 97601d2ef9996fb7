// meraki-dashboard-exporter
// SPDX-License-Identifier: Apache-2.0

package meraki

import (
	"github.com/tomtom215/meraki-dashboard-exporter/internal/merakitypes"
	"github.com/tomtom215/meraki-dashboard-exporter/internal/validation"
)

// identifierRequest validates an opaque identifier parameter (org_id,
// network_id): the Meraki API treats these as opaque strings, so the only
// structural requirement is that one was supplied.
type identifierRequest struct {
	Value string `validate:"required"`
}

// timespanRequest validates a timespan_seconds parameter: must be positive,
// per spec.md §4.1 "timespans positive".
type timespanRequest struct {
	Seconds int `validate:"required,gt=0"`
}

func validateNonEmpty(field, value string) error {
	if err := validation.ValidateStruct(&identifierRequest{Value: value}); err != nil {
		return &APIError{Category: merakitypes.ErrorValidation, Err: fieldErr(field, err)}
	}
	return nil
}

func validatePositive(field string, value int) error {
	if err := validation.ValidateStruct(&timespanRequest{Seconds: value}); err != nil {
		return &APIError{Category: merakitypes.ErrorValidation, Err: fieldErr(field, err)}
	}
	return nil
}

func fieldErr(field string, err *validation.RequestValidationError) error {
	return &fieldValidationError{field: field, cause: err}
}

// fieldValidationError names the caller-supplied parameter a validation
// failure applies to, since the generic struct wrappers above use a
// field-agnostic placeholder field name internally.
type fieldValidationError struct {
	field string
	cause *validation.RequestValidationError
}

func (e *fieldValidationError) Error() string {
	return e.field + ": " + e.cause.Error()
}

func (e *fieldValidationError) Unwrap() error { return e.cause }
