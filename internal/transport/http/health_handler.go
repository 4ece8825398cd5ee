package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"ivfeatures/internal/measurement"
	"ivfeatures/internal/services"
)

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	service *services.HealthService
	logger  *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(service *services.HealthService, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "health")),
	}
}

// HealthCheck handles GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := h.service.HealthCheck(r.Context())
	if status.Status != "ok" {
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, status)
}

// LivenessCheck handles GET /api/health/live
func (h *HealthHandler) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.LivenessCheck(r.Context()))
}

// FeatureInfo names a feature and how it is gathered across sweeps
type FeatureInfo struct {
	Name     string `json:"name"`
	Strategy string `json:"strategy"`
}

// Features handles GET /api/features
func Features(w http.ResponseWriter, r *http.Request) {
	names := measurement.FeatureNames()
	out := make([]FeatureInfo, 0, len(names))
	for _, name := range names {
		agg, err := measurement.Lookup(name)
		if err != nil {
			continue
		}
		out = append(out, FeatureInfo{Name: name, Strategy: agg.Strategy().String()})
	}
	render.JSON(w, r, out)
}
