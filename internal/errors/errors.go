package errors

import (
	"context"
	"errors"
	"net/http"
)

// APIError is the HTTP face of an error: a status and a stable code
type APIError struct {
	StatusCode int    `json:"status_code"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details
func NewWithDetails(statusCode int, errorCode, message, details string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// Predefined error types for common scenarios
var (
	ErrInvalidRequest = New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	ErrNotFound       = New(http.StatusNotFound, "NOT_FOUND", "Resource not found")
	ErrRateLimited    = New(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")
	ErrInternalServer = New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
	ErrTimeout        = New(http.StatusGatewayTimeout, "TIMEOUT", "The request took too long to process")
)

// FromAppError maps domain errors onto HTTP status codes. Errors that are
// already an *APIError pass through.
func FromAppError(err error) *APIError {
	var api *APIError
	if errors.As(err, &api) {
		return api
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewWithDetails(ErrTimeout.StatusCode, ErrTimeout.ErrorCode, ErrTimeout.Message, err.Error())
	}

	switch TypeOf(err) {
	case ErrTypeNotFound:
		return NewWithDetails(http.StatusNotFound, "NOT_FOUND", "Resource not found", err.Error())
	case ErrTypeValidation:
		return NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed", err.Error())
	case ErrTypeFormat:
		return NewWithDetails(http.StatusUnprocessableEntity, "INVALID_FORMAT", "Input file could not be decoded", err.Error())
	case ErrTypeInsufficientData, ErrTypeFitDivergence:
		return NewWithDetails(http.StatusUnprocessableEntity, "UNPROCESSABLE_ENTITY", "Feature could not be computed", err.Error())
	default:
		return NewWithDetails(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error", err.Error())
	}
}
