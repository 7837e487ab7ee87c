// Package errors defines the categorized error taxonomy used across the
// harvesting pipeline. Categories drive retry decisions and the HTTP
// status mapping in the API layer.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryAuth represents auth-chain errors; recoverable only by
	// new user interaction, never by retrying inside the pipeline
	CategoryAuth ErrorCategory = "auth"
	// CategoryProvider represents upstream platform/service errors
	CategoryProvider ErrorCategory = "provider"
	// CategoryStorage represents persisted-store errors
	CategoryStorage ErrorCategory = "storage"
	// CategoryQueue represents task queue errors
	CategoryQueue ErrorCategory = "queue"
	// CategoryTransform represents schema transformation errors
	CategoryTransform ErrorCategory = "transform"
	// CategoryValidation represents user input errors
	CategoryValidation ErrorCategory = "validation"
	// CategoryNotFound represents missing-resource errors
	CategoryNotFound ErrorCategory = "not_found"
	// CategorySystem represents everything else
	CategorySystem ErrorCategory = "system"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// NewAuthChainError creates an error for a failed auth-chain stage
func NewAuthChainError(stage string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuth,
		StatusCode: http.StatusUnauthorized,
		Code:       "AUTH_CHAIN_FAILED",
		Message:    fmt.Sprintf("auth chain failed at stage %s", stage),
		Cause:      cause,
		Details: map[string]interface{}{
			"stage": stage,
		},
	}
}

// NewMissingFieldError creates an error for a response missing a
// required field; the stage cannot proceed without it
func NewMissingFieldError(stage string, field string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuth,
		StatusCode: http.StatusBadGateway,
		Code:       "MISSING_RESPONSE_FIELD",
		Message:    fmt.Sprintf("stage %s response missing required field %q", stage, field),
		Details: map[string]interface{}{
			"stage": stage,
			"field": field,
		},
	}
}

// NewProviderError creates an upstream service error
func NewProviderError(provider string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryProvider,
		StatusCode: http.StatusBadGateway,
		Code:       "PROVIDER_ERROR",
		Message:    fmt.Sprintf("provider error: %s", provider),
		Cause:      cause,
		Details: map[string]interface{}{
			"provider": provider,
		},
	}
}

// NewProviderStatusError creates an error for a non-2xx upstream response
func NewProviderStatusError(provider string, status int, body string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryProvider,
		StatusCode: http.StatusBadGateway,
		Code:       "PROVIDER_BAD_STATUS",
		Message:    fmt.Sprintf("provider %s returned status %d: %s", provider, status, body),
		Details: map[string]interface{}{
			"provider": provider,
			"status":   status,
		},
	}
}

// NewStorageError creates a persisted-store error
func NewStorageError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryStorage,
		StatusCode: http.StatusInternalServerError,
		Code:       "STORAGE_ERROR",
		Message:    fmt.Sprintf("storage error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewQueueError creates a task queue error
func NewQueueError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryQueue,
		StatusCode: http.StatusInternalServerError,
		Code:       "QUEUE_ERROR",
		Message:    fmt.Sprintf("queue error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewUnknownEnumError creates an error for an unrecognized source enum
// value. Fatal for the task; never silently mapped.
func NewUnknownEnumError(field string, value string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryTransform,
		StatusCode: http.StatusUnprocessableEntity,
		Code:       "UNKNOWN_ENUM_VALUE",
		Message:    fmt.Sprintf("unrecognized %s value %q", field, value),
		Details: map[string]interface{}{
			"field": field,
			"value": value,
		},
	}
}

// NewPayloadMissingError creates an error for a queue reference whose
// persisted payload no longer exists
func NewPayloadMissingError(dedupKey string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "PAYLOAD_MISSING",
		Message:    fmt.Sprintf("no persisted payload for dedup key %s", dedupKey),
		Details: map[string]interface{}{
			"dedupKey": dedupKey,
		},
	}
}

// NewInvalidParameterError creates a user input error
func NewInvalidParameterError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_PARAMETER",
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewInternalError creates an internal error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr
	}

	return NewInternalError("unexpected error", err)
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsRetryable determines if an error is worth retrying. Auth, transform
// and validation failures are deterministic and never retried.
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	switch catErr.Category {
	case CategoryProvider, CategoryStorage, CategoryQueue:
		return true
	case CategorySystem:
		return catErr.StatusCode >= 500
	default:
		return false
	}
}
