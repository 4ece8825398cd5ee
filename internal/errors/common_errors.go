package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeFormat marks malformed input: bad filenames, unknown protocol or
	// experiment ids, undecodable wave files.
	ErrTypeFormat ErrorType = "FORMAT"
	// ErrTypeInsufficientData marks an estimator that lacked samples or spikes.
	// It is informational: estimators degrade to NaN instead of returning it.
	ErrTypeInsufficientData ErrorType = "INSUFFICIENT_DATA"
	// ErrTypeFitDivergence marks a nonlinear least-squares fit that did not converge.
	ErrTypeFitDivergence ErrorType = "FIT_DIVERGENCE"
	ErrTypeConfig        ErrorType = "CONFIG"
	ErrTypeValidation    ErrorType = "VALIDATION"
	ErrTypeNotFound      ErrorType = "NOT_FOUND"
	ErrTypeStorage       ErrorType = "STORAGE"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewFormatError creates an input format error
func NewFormatError(message string, cause error) *AppError {
	return NewAppError(ErrTypeFormat, message, cause)
}

// NewInsufficientDataError reports that an estimator needed more data than it had
func NewInsufficientDataError(estimator string, have, need int) *AppError {
	return NewAppError(ErrTypeInsufficientData,
		fmt.Sprintf("%s needs %d samples, have %d", estimator, need, have), nil).
		WithContext("estimator", estimator).
		WithContext("have", have).
		WithContext("need", need)
}

// NewFitDivergenceError creates a curve fitting error
func NewFitDivergenceError(message string, cause error) *AppError {
	return NewAppError(ErrTypeFitDivergence, message, cause)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// IsType reports whether any error in err's chain is an AppError of the given type
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}

// TypeOf returns the type of the first AppError in err's chain, or "" if none
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}
