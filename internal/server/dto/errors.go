// Package dto defines API request/response types and error handling.
//
// Request types carry path/query/json struct tags for parameter binding and
// implement Validatable. Response types use string IDs and RFC3339
// timestamps. Conversion from the storage and ingest types lives in the
// handlers package.
//
// Errors follow a structured pattern: ErrorCode provides machine-readable
// classification, APIError carries the HTTP status and details, and the
// constructor functions below build the common cases.
package dto

import (
	"fmt"
	"maps"
	"net/http"
	"strconv"
)

// ErrorCode defines specific error types for the API.
type ErrorCode string

const (
	// ErrorCodeValidationFailed is returned when input data fails validation.
	ErrorCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrorCodeMissingField is returned when a required field is missing.
	ErrorCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrorCodeInvalidFilter is returned when a filter expression cannot be parsed.
	ErrorCodeInvalidFilter ErrorCode = "INVALID_FILTER"
	// ErrorCodeUnsupportedOperator is returned when the evaluator meets an unknown operator.
	ErrorCodeUnsupportedOperator ErrorCode = "UNSUPPORTED_OPERATOR"
	// ErrorCodeInvalidPath is returned when a dataset name escapes the data directory.
	ErrorCodeInvalidPath ErrorCode = "INVALID_PATH"

	// ErrorCodeNotFound is returned when a resource is not found.
	ErrorCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrorCodeDatasetNotFound is returned when no backing file exists for a dataset name.
	ErrorCodeDatasetNotFound ErrorCode = "DATASET_NOT_FOUND"
	// ErrorCodeDatasetLoadFailed is returned when a backing file cannot be parsed.
	ErrorCodeDatasetLoadFailed ErrorCode = "DATASET_LOAD_FAILED"
	// ErrorCodeTableNotFound is returned when a table is not found.
	ErrorCodeTableNotFound ErrorCode = "TABLE_NOT_FOUND"
	// ErrorCodeConflict is returned when there is a resource conflict.
	ErrorCodeConflict ErrorCode = "CONFLICT"

	// ErrorCodeUpstream is returned when the LLM endpoint fails.
	ErrorCodeUpstream ErrorCode = "UPSTREAM_ERROR"
	// ErrorCodeNotConfigured is returned for features disabled by configuration.
	ErrorCodeNotConfigured ErrorCode = "NOT_CONFIGURED"

	// ErrorCodeRateLimited is returned when a client exceeds its request budget.
	ErrorCodeRateLimited ErrorCode = "RATE_LIMITED"
	// ErrorCodePayloadTooLarge is returned when a request body exceeds the limit.
	ErrorCodePayloadTooLarge ErrorCode = "PAYLOAD_TOO_LARGE"
	// ErrorCodeInternal is returned when an unexpected server error occurs.
	ErrorCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// ErrorDetails defines the structured error information in a response.
type ErrorDetails struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ErrorResponse is the standard API error response.
type ErrorResponse struct {
	Error   ErrorDetails   `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorWithStatus is an error that includes an HTTP status code and error code.
type ErrorWithStatus interface {
	Error() string
	StatusCode() int
	Code() ErrorCode
	Details() map[string]any
}

// APIError is a concrete error type with status code and optional details.
type APIError struct {
	statusCode int
	code       ErrorCode
	message    string
	details    map[string]any
	wrappedErr error
}

// NewAPIError creates a new APIError with the given status code and message.
func NewAPIError(statusCode int, code ErrorCode, message string) *APIError {
	return &APIError{
		statusCode: statusCode,
		code:       code,
		message:    message,
		details:    make(map[string]any),
	}
}

// WithDetails adds details to the error.
func (e *APIError) WithDetails(details map[string]any) *APIError {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	maps.Copy(e.details, details)
	return e
}

// WithDetail adds a single detail to the error.
func (e *APIError) WithDetail(key string, value any) *APIError {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	e.details[key] = value
	return e
}

// Wrap wraps an underlying error.
func (e *APIError) Wrap(err error) *APIError {
	e.wrappedErr = err
	return e
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.wrappedErr != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrappedErr)
	}
	return e.message
}

// StatusCode returns the HTTP status code.
func (e *APIError) StatusCode() int {
	return e.statusCode
}

// Code returns the error code.
func (e *APIError) Code() ErrorCode {
	return e.code
}

// Details returns additional error details.
func (e *APIError) Details() map[string]any {
	return e.details
}

// Unwrap returns the wrapped error if any.
func (e *APIError) Unwrap() error {
	return e.wrappedErr
}

// Predefined error constructors for common cases

// NotFound creates a 404 Not Found error.
func NotFound(resource string) *APIError {
	return NewAPIError(http.StatusNotFound, ErrorCodeNotFound, resource+" not found")
}

// DatasetNotFound creates a 404 error for a dataset name without a backing file.
func DatasetNotFound(name string) *APIError {
	return NewAPIError(http.StatusNotFound, ErrorCodeDatasetNotFound, "dataset not found: "+name).WithDetail("name", name)
}

// TableNotFound creates a 404 error for an unknown imported table.
func TableNotFound(name string) *APIError {
	return NewAPIError(http.StatusNotFound, ErrorCodeTableNotFound, "table not found: "+name).WithDetail("table", name)
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrorCodeValidationFailed, message)
}

// MissingField creates a 400 Bad Request error for a missing field.
func MissingField(fieldName string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrorCodeMissingField, "Missing required field: "+fieldName).WithDetail("field", fieldName)
}

// InvalidField creates a 400 Bad Request error for a field with a bad value.
func InvalidField(fieldName, reason string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrorCodeValidationFailed, fmt.Sprintf("Invalid %s: %s", fieldName, reason)).WithDetail("field", fieldName)
}

// InvalidFilter creates a 400 error for an unparsable filter expression.
func InvalidFilter(err error) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrorCodeInvalidFilter, "invalid filter").Wrap(err)
}

// UnsupportedOperator creates a 500 error for an operator the evaluator cannot apply.
func UnsupportedOperator(err error) *APIError {
	return NewAPIError(http.StatusInternalServerError, ErrorCodeUnsupportedOperator, "unsupported operator").Wrap(err)
}

// DatasetLoadFailed creates a 422 error for a backing file that cannot be parsed.
func DatasetLoadFailed(err error) *APIError {
	return NewAPIError(http.StatusUnprocessableEntity, ErrorCodeDatasetLoadFailed, "failed to load dataset").Wrap(err)
}

// InvalidPath creates a 400 error for a dataset name escaping the data directory.
func InvalidPath(name string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrorCodeInvalidPath, "invalid dataset name: "+name).WithDetail("name", name)
}

// Conflict creates a 409 Conflict error.
func Conflict(message string) *APIError {
	return NewAPIError(http.StatusConflict, ErrorCodeConflict, message)
}

// Upstream creates a 502 error carrying the upstream status and detail.
func Upstream(status int, detail string) *APIError {
	e := NewAPIError(http.StatusBadGateway, ErrorCodeUpstream, "LLM request failed: "+detail)
	if status != 0 {
		e = e.WithDetail("upstream_status", status)
	}
	return e
}

// NotConfigured creates a 503 error for a disabled feature.
func NotConfigured(feature string) *APIError {
	return NewAPIError(http.StatusServiceUnavailable, ErrorCodeNotConfigured, feature+" is not configured")
}

// PayloadTooLarge creates a 413 error for a request body over limit bytes.
func PayloadTooLarge(limit int64) *APIError {
	return NewAPIError(http.StatusRequestEntityTooLarge, ErrorCodePayloadTooLarge, "request body exceeds "+strconv.FormatInt(limit, 10)+" bytes").WithDetail("limit", limit)
}

// RateLimitExceeded creates a 429 error.
func RateLimitExceeded(retryAfter int) *APIError {
	return NewAPIError(http.StatusTooManyRequests, ErrorCodeRateLimited, "rate limit exceeded").WithDetail("retry_after", retryAfter)
}

// Internal returns a 500 Internal Server Error.
func Internal(message string) *APIError {
	return NewAPIError(http.StatusInternalServerError, ErrorCodeInternal, message)
}

// InternalWithError creates a 500 error wrapping an underlying error.
func InternalWithError(message string, err error) *APIError {
	return Internal(message).Wrap(err)
}
