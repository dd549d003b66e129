package model

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized is returned for any 401 response. The stored session has
// already been cleared by the time a caller sees it.
var ErrUnauthorized = errors.New("unauthorized: please log in again")

// APIError is a non-2xx response from the Shennong API.
type APIError struct {
	StatusCode int          `json:"status_code"`
	Message    string       `json:"message"`
	Details    []FieldError `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("HTTP %d: %s (%d field errors)", e.StatusCode, e.Message, len(e.Details))
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsValidation reports whether the error carries field-level validation detail.
func (e *APIError) IsValidation() bool {
	return e.StatusCode == http.StatusUnprocessableEntity
}

// FieldError describes a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (f FieldError) String() string {
	if f.Field == "" {
		return f.Message
	}
	return f.Field + ": " + f.Message
}

// NewValidationError creates a 422 APIError with field details.
func NewValidationError(msg string, details ...FieldError) *APIError {
	return &APIError{StatusCode: http.StatusUnprocessableEntity, Message: msg, Details: details}
}

// AsValidation unwraps err into a 422 APIError, if it is one.
func AsValidation(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.IsValidation() {
		return apiErr, true
	}
	return nil, false
}

// InvalidTransitionError is returned when an upload status transition is invalid.
type InvalidTransitionError struct {
	Key  string
	From UploadStatus
	To   UploadStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid upload state transition: %s → %s (file %s)", e.From, e.To, e.Key)
}
