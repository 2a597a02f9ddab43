// Package dto defines API request/response types and error handling.
//
// It is the API contract layer: request types validate their own fields,
// response types carry only public data, and APIError attaches HTTP status
// codes and machine-readable error codes to failures. Mapping from the
// storage error taxonomy to HTTP lives here so handlers stay thin.
package dto

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/maruel/musicmark/internal/jsondb"
	"github.com/maruel/musicmark/internal/storage"
)

// ErrorCode defines specific error types for the API.
type ErrorCode string

const (
	// ErrorCodeValidationFailed is returned when input data fails validation.
	ErrorCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrorCodeMissingField is returned when a required field is missing.
	ErrorCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrorCodeNotFound is returned when a resource is not found.
	ErrorCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrorCodeConflict is returned when there is a resource conflict.
	ErrorCodeConflict ErrorCode = "CONFLICT"
	// ErrorCodeUnauthorized is returned when authentication is missing or invalid.
	ErrorCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrorCodeForbidden is returned when a user has insufficient permissions.
	ErrorCodeForbidden ErrorCode = "FORBIDDEN"
	// ErrorCodeRateLimited is returned when a client exceeds its rate limit.
	ErrorCodeRateLimited ErrorCode = "RATE_LIMITED"
	// ErrorCodeStorageError is returned when a storage operation fails.
	ErrorCodeStorageError ErrorCode = "STORAGE_ERROR"
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
	OK    bool         `json:"ok"`
	Error ErrorDetails `json:"error"`
}

// APIError is an error carrying an HTTP status code and error code.
type APIError struct {
	statusCode int
	code       ErrorCode
	message    string
	wrappedErr error
}

// NewAPIError creates a new APIError with the given status code and message.
func NewAPIError(statusCode int, code ErrorCode, message string) *APIError {
	return &APIError{statusCode: statusCode, code: code, message: message}
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

// Unwrap returns the wrapped error if any.
func (e *APIError) Unwrap() error {
	return e.wrappedErr
}

// NotFound creates a 404 Not Found error.
func NotFound(resource string) *APIError {
	return NewAPIError(http.StatusNotFound, ErrorCodeNotFound, resource+" not found")
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrorCodeValidationFailed, message)
}

// MissingField creates a 400 Bad Request error for a missing field.
func MissingField(fieldName string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrorCodeMissingField, "Missing required field: "+fieldName)
}

// Conflict creates a 409 Conflict error.
func Conflict(message string) *APIError {
	return NewAPIError(http.StatusConflict, ErrorCodeConflict, message)
}

// Unauthorized creates a 401 Unauthorized error.
func Unauthorized() *APIError {
	return NewAPIError(http.StatusUnauthorized, ErrorCodeUnauthorized, "Unauthorized")
}

// Forbidden creates a 403 Forbidden error.
func Forbidden(message string) *APIError {
	return NewAPIError(http.StatusForbidden, ErrorCodeForbidden, message)
}

// Internal creates a 500 Internal Server Error.
func Internal(message string) *APIError {
	return NewAPIError(http.StatusInternalServerError, ErrorCodeInternal, message)
}

// InternalWithError creates a 500 error wrapping an underlying error.
func InternalWithError(message string, err error) *APIError {
	return Internal(message).Wrap(err)
}

// FromStorageError maps the storage error taxonomy to an APIError. Errors
// already carrying a status pass through unchanged.
func FromStorageError(err error) *APIError {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, storage.ErrValidation):
		return NewAPIError(http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		return NewAPIError(http.StatusNotFound, ErrorCodeNotFound, err.Error())
	case errors.Is(err, storage.ErrDuplicateKey):
		return NewAPIError(http.StatusConflict, ErrorCodeConflict, err.Error())
	case errors.Is(err, storage.ErrUnauthorized):
		return Unauthorized()
	case errors.Is(err, jsondb.ErrCorrupt):
		return NewAPIError(http.StatusInternalServerError, ErrorCodeStorageError, "storage failure").Wrap(err)
	default:
		return InternalWithError("Internal error", err)
	}
}
