package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "without cause",
			err:      NewAppValidationError("window is empty"),
			expected: "[VALIDATION] window is empty",
		},
		{
			name:     "with cause",
			err:      NewFormatError("bad header", errors.New("short read")),
			expected: "[FORMAT] bad header: short read",
		},
		{
			name:     "not found",
			err:      NewNotFoundError("session cell1"),
			expected: "[NOT_FOUND] session cell1 not found",
		},
		{
			name:     "insufficient data",
			err:      NewInsufficientDataError("rheobase", 1, 2),
			expected: "[INSUFFICIENT_DATA] rheobase needs 2 samples, have 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewStorageError("write failed", cause)

	assert.Same(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestAppError_WithContext(t *testing.T) {
	err := NewFitDivergenceError("no convergence", nil).
		WithContext("iterations", 200).
		WithContext("file", "a.ibw")

	assert.Equal(t, 200, err.Context["iterations"])
	assert.Equal(t, "a.ibw", err.Context["file"])

	var bare AppError
	bare.WithContext("k", "v")
	assert.Equal(t, "v", bare.Context["k"])
}

func TestInsufficientDataContext(t *testing.T) {
	err := NewInsufficientDataError("mean_isi", 1, 2)
	assert.Equal(t, "mean_isi", err.Context["estimator"])
	assert.Equal(t, 1, err.Context["have"])
	assert.Equal(t, 2, err.Context["need"])
}

func TestIsTypeAndTypeOf(t *testing.T) {
	wrapped := fmt.Errorf("load session: %w", NewConfigError("bad params", nil))

	tests := []struct {
		name     string
		err      error
		expected ErrorType
	}{
		{"direct", NewFormatError("x", nil), ErrTypeFormat},
		{"wrapped", wrapped, ErrTypeConfig},
		{"plain", errors.New("plain"), ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TypeOf(tt.err))
			if tt.expected != "" {
				assert.True(t, IsType(tt.err, tt.expected))
				assert.False(t, IsType(tt.err, ErrTypeStorage))
			}
		})
	}
}

func TestFromAppError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", NewNotFoundError("session"), http.StatusNotFound, "NOT_FOUND"},
		{"validation", NewAppValidationError("bad"), http.StatusBadRequest, "VALIDATION_FAILED"},
		{"format", NewFormatError("bad", nil), http.StatusUnprocessableEntity, "INVALID_FORMAT"},
		{"insufficient", NewInsufficientDataError("x", 0, 1), http.StatusUnprocessableEntity, "UNPROCESSABLE_ENTITY"},
		{"divergence", NewFitDivergenceError("x", nil), http.StatusUnprocessableEntity, "UNPROCESSABLE_ENTITY"},
		{"storage", NewStorageError("x", nil), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
		{"plain", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
		{"deadline", fmt.Errorf("load: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "TIMEOUT"},
		{"api error", fmt.Errorf("wrap: %w", ErrRateLimited), http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := FromAppError(tt.err)
			require.NotNil(t, api)
			assert.Equal(t, tt.status, api.StatusCode)
			assert.Equal(t, tt.code, api.ErrorCode)
			assert.NotEmpty(t, api.Error())
		})
	}
}

func TestFromAppErrorCarriesDetails(t *testing.T) {
	api := FromAppError(NewNotFoundError("session cell7"))
	assert.Contains(t, api.Details, "cell7")
}
