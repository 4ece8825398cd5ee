package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ivfeatures/internal/config"
	customMiddleware "ivfeatures/internal/middleware"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.DataDir = t.TempDir()
	cfg.Server.RateLimit.Enabled = false
	cfg.Server.ShutdownTimeout = 5 * time.Second
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *Application {
	t.Helper()
	a, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { a.OTelProviders.Shutdown(context.Background()) })
	return a
}

func TestRoutes(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	tests := []struct {
		name        string
		method      string
		target      string
		status      int
		contentType string
	}{
		{"health", http.MethodGet, "/api/health", http.StatusOK, "application/json"},
		{"liveness", http.MethodGet, "/api/health/live", http.StatusOK, "application/json"},
		{"features", http.MethodGet, "/api/features", http.StatusOK, "application/json"},
		{"sessions", http.MethodGet, "/api/sessions", http.StatusOK, "application/json"},
		{"unknown session", http.MethodGet, "/api/sessions/none", http.StatusNotFound, "application/problem+json"},
		{"unknown route", http.MethodGet, "/nowhere", http.StatusNotFound, "application/problem+json"},
		{"wrong method", http.MethodPost, "/api/features", http.StatusMethodNotAllowed, "application/problem+json"},
		{"metrics", http.MethodGet, "/metrics", http.StatusOK, "text/plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			a.Router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))

			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Header().Get("Content-Type"), tt.contentType)
			assert.NotEmpty(t, rec.Header().Get(customMiddleware.RequestIDHeader))
			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestMetricsRecordRoutes(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	for i := 0; i < 2; i++ {
		a.Router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/sessions/none", nil))
	}

	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `route="/api/sessions/{name}`)
	assert.Contains(t, body, `status="404"`)
}

func TestMetricsDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = false
	a := newTestApp(t, cfg)

	assert.Nil(t, a.Collector)
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.RateLimit = config.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 1}
	a := newTestApp(t, cfg)

	first := httptest.NewRecorder()
	a.Router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/features", nil))
	second := httptest.NewRecorder()
	a.Router.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/features", nil))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestServeAndShutdown(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, l) }()

	resp, err := http.Get("http://" + l.Addr().String() + "/api/health")
	require.NoError(t, err)
	var status map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	assert.Equal(t, "ok", status["status"])
	assert.Contains(t, status, "system")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
