package services

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"ivfeatures/internal/infrastructure"
)

// HealthService provides health check functionality
type HealthService struct {
	version   string
	sessions  *SessionService
	collector *infrastructure.SystemMetricsCollector
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                      `json:"status"`
	Timestamp time.Time                   `json:"timestamp"`
	Version   string                      `json:"version"`
	Uptime    string                      `json:"uptime"`
	DataDir   ServiceHealth               `json:"data_dir"`
	Sessions  int                         `json:"cached_sessions"`
	Runtime   map[string]interface{}      `json:"runtime"`
	System    *infrastructure.SystemStats `json:"system,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewHealthService creates a new health service. collector may be nil when
// metrics are disabled.
func NewHealthService(version string, sessions *SessionService, collector *infrastructure.SystemMetricsCollector, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		sessions:  sessions,
		collector: collector,
		startTime: time.Now(),
		logger:    infrastructure.WithComponent(logger, "health"),
	}
}

// HealthCheck returns overall health status. The service is degraded when
// the data directory cannot be read.
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
		Uptime:    time.Since(hs.startTime).Round(time.Second).String(),
		DataDir:   ServiceHealth{Status: "ok"},
		Sessions:  hs.sessions.Cached(),
		Runtime: map[string]interface{}{
			"go_version": runtime.Version(),
			"os":         runtime.GOOS,
			"arch":       runtime.GOARCH,
			"cpus":       runtime.NumCPU(),
		},
	}

	if info, err := os.Stat(hs.sessions.Root()); err != nil || !info.IsDir() {
		status.Status = "degraded"
		status.DataDir = ServiceHealth{Status: "unavailable", Message: "data directory is not readable"}
		hs.logger.WarnContext(ctx, "Data directory unavailable",
			slog.String("data_dir", hs.sessions.Root()))
	}

	if hs.collector != nil {
		status.System = hs.collector.GetCurrentStats(ctx)
	}

	return status
}

// LivenessCheck reports that the process is serving requests
func (hs *HealthService) LivenessCheck(ctx context.Context) map[string]interface{} {
	return map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now(),
	}
}
