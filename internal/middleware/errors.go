package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	apperrors "ivfeatures/internal/errors"
	"ivfeatures/internal/infrastructure"
)

// Problem represents an RFC 7807 problem details object
type Problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Code   string `json:"code,omitempty"`
	Detail string `json:"detail,omitempty"`
	Trace  string `json:"trace_id,omitempty"`
}

// Write sends the problem as application/problem+json
func (p Problem) Write(w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	return json.NewEncoder(w).Encode(p)
}

// ProblemFromError maps an error onto problem details through its domain type
func ProblemFromError(err error, traceID string) Problem {
	api := apperrors.FromAppError(err)
	p := ProblemFromStatus(api.StatusCode, api.Details, traceID)
	p.Code = api.ErrorCode
	if p.Type == "/errors/unknown" {
		p.Type = "/errors/" + strings.ReplaceAll(strings.ToLower(api.ErrorCode), "_", "-")
	}
	// internal details stay in the log
	if api.StatusCode >= http.StatusInternalServerError && api.StatusCode != http.StatusGatewayTimeout {
		p.Detail = "An unexpected error occurred"
	}
	if p.Detail == "" {
		p.Detail = api.Message
	}
	return p
}

// NewErrorResponder creates a function that writes RFC 7807 error responses
func NewErrorResponder(logger *slog.Logger) func(w http.ResponseWriter, r *http.Request, err error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		ctx := r.Context()
		problem := ProblemFromError(err, GetReqID(ctx))

		level := slog.LevelWarn
		if problem.Status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		infrastructure.WithError(logger, err).Log(ctx, level, "request error",
			"status", problem.Status,
			"method", r.Method,
			"path", r.URL.Path,
		)
		infrastructure.RecordError(ctx, err)

		problem.Write(w)
	}
}

// ProblemFromStatus creates a Problem from an HTTP status code
func ProblemFromStatus(status int, detail string, traceID string) Problem {
	var title, problemType string

	switch status {
	case http.StatusBadRequest:
		title = "Bad Request"
		problemType = "/errors/bad-request"
	case http.StatusNotFound:
		title = "Not Found"
		problemType = "/errors/not-found"
	case http.StatusMethodNotAllowed:
		title = "Method Not Allowed"
		problemType = "/errors/method-not-allowed"
	case http.StatusUnprocessableEntity:
		title = "Unprocessable Entity"
		problemType = "/errors/unprocessable-entity"
	case http.StatusTooManyRequests:
		title = "Too Many Requests"
		problemType = "/errors/rate-limit-exceeded"
	case http.StatusInternalServerError:
		title = "Internal Server Error"
		problemType = "/errors/internal-server-error"
	case http.StatusServiceUnavailable:
		title = "Service Unavailable"
		problemType = "/errors/service-unavailable"
	case http.StatusGatewayTimeout:
		title = "Gateway Timeout"
		problemType = "/errors/gateway-timeout"
	default:
		title = http.StatusText(status)
		problemType = "/errors/unknown"
	}

	return Problem{
		Type:   problemType,
		Title:  title,
		Status: status,
		Detail: detail,
		Trace:  traceID,
	}
}
