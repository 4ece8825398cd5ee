package http

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apperrors "ivfeatures/internal/errors"
	"ivfeatures/internal/exporter"
	"ivfeatures/internal/features"
	"ivfeatures/internal/measurement"
	"ivfeatures/internal/middleware"
	"ivfeatures/internal/services"
	"ivfeatures/internal/uncertain"
)

type sessionKey struct{}

// SessionHandler serves sessions and their features
type SessionHandler struct {
	service  *services.SessionService
	logger   *slog.Logger
	respond  func(w http.ResponseWriter, r *http.Request, err error)
	validate *validator.Validate
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(service *services.SessionService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		service:  service,
		logger:   logger.With(slog.String("handler", "sessions")),
		respond:  middleware.NewErrorResponder(logger),
		validate: validator.New(),
	}
}

// Routes returns the session routes
func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Route("/{name}", func(r chi.Router) {
		r.Use(h.SessionCtx)
		r.Get("/", h.Summary)
		r.Get("/sweeps", h.Sweeps)
		r.Get("/features/{feature}", h.Feature)
		r.Get("/export", h.Export)
	})

	return r
}

// List handles GET /api/sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.respond(w, r, err)
		return
	}
	render.JSON(w, r, list)
}

// selection is the sweep subset requested through the query string
type selection struct {
	From    *int   `validate:"omitempty,gte=0"`
	To      *int   `validate:"omitempty,gte=0"`
	Sweeps  []int  `validate:"omitempty,max=10000"`
	Spiking string `validate:"omitempty,oneof=true false"`
}

func parseSelection(r *http.Request) (selection, error) {
	q := r.URL.Query()
	var sel selection

	intParam := func(key string) (*int, error) {
		raw := q.Get(key)
		if raw == "" {
			return nil, nil
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, apperrors.NewAppValidationError(fmt.Sprintf("%s must be an integer, got %q", key, raw))
		}
		return &v, nil
	}

	var err error
	if sel.From, err = intParam("from"); err != nil {
		return sel, err
	}
	if sel.To, err = intParam("to"); err != nil {
		return sel, err
	}
	if raw := q.Get("sweeps"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			v, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return sel, apperrors.NewAppValidationError(fmt.Sprintf("sweeps must list integers, got %q", part))
			}
			sel.Sweeps = append(sel.Sweeps, v)
		}
	}
	sel.Spiking = q.Get("spiking")

	if sel.Sweeps != nil && (sel.From != nil || sel.To != nil) {
		return sel, apperrors.NewAppValidationError("sweeps cannot be combined with from or to")
	}
	return sel, nil
}

// apply narrows m to the selected sweeps
func (sel selection) apply(m *measurement.Measurement) (*measurement.Measurement, error) {
	c := m.Collection
	var err error

	switch {
	case sel.Sweeps != nil:
		if c, err = c.Take(sel.Sweeps); err != nil {
			return nil, err
		}
	case sel.From != nil || sel.To != nil:
		lo, hi := 0, c.Len()
		if sel.From != nil {
			lo = *sel.From
		}
		if sel.To != nil {
			hi = *sel.To
		}
		if c, err = c.Slice(lo, hi); err != nil {
			return nil, err
		}
	}

	if sel.Spiking != "" {
		want := sel.Spiking == "true"
		c = c.Filter(func(s *features.Sweep) bool { return (s.SpikeCount() > 0) == want })
	}

	if c == m.Collection {
		return m, nil
	}
	return m.WithCollection(c), nil
}

// SessionCtx loads the session named in the URL, narrowed to the requested
// sweeps, into the request context
func (h *SessionHandler) SessionCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sel, err := parseSelection(r)
		if err == nil {
			if verr := h.validate.Struct(sel); verr != nil {
				err = apperrors.NewAppValidationError(verr.Error())
			}
		}
		if err != nil {
			h.respond(w, r, err)
			return
		}

		m, err := h.service.Get(r.Context(), chi.URLParam(r, "name"))
		if err != nil {
			h.respond(w, r, err)
			return
		}
		if m, err = sel.apply(m); err != nil {
			h.respond(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey{}, m)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(ctx context.Context) *measurement.Measurement {
	m, _ := ctx.Value(sessionKey{}).(*measurement.Measurement)
	return m
}

// SessionSummary is a session without its per-sweep detail
type SessionSummary struct {
	Name    string                     `json:"name"`
	Sweeps  int                        `json:"sweeps"`
	Params  features.Params            `json:"params"`
	Skipped []measurement.SkippedFile  `json:"skipped,omitempty"`
	Means   map[string]uncertain.Value `json:"means"`
}

// Summary handles GET /api/sessions/{name}
func (h *SessionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	m := sessionFrom(r.Context())

	means := make(map[string]uncertain.Value)
	for _, name := range measurement.FeatureNames() {
		v, err := m.Mean(name)
		if apperrors.IsType(err, apperrors.ErrTypeValidation) {
			continue
		}
		if err != nil {
			h.respond(w, r, err)
			return
		}
		means[name] = v
	}

	render.JSON(w, r, SessionSummary{
		Name:    m.Name,
		Sweeps:  m.Len(),
		Params:  m.Params,
		Skipped: m.Skipped,
		Means:   means,
	})
}

// Sweeps handles GET /api/sessions/{name}/sweeps
func (h *SessionHandler) Sweeps(w http.ResponseWriter, r *http.Request) {
	m := sessionFrom(r.Context())

	out := make([]features.Features, 0, m.Len())
	for _, s := range m.Sweeps() {
		if err := r.Context().Err(); err != nil {
			h.respond(w, r, err)
			return
		}
		out = append(out, s.Features())
	}
	render.JSON(w, r, out)
}

// Feature handles GET /api/sessions/{name}/features/{feature}
func (h *SessionHandler) Feature(w http.ResponseWriter, r *http.Request) {
	m := sessionFrom(r.Context())

	res, err := m.Aggregate(chi.URLParam(r, "feature"))
	if err != nil {
		h.respond(w, r, err)
		return
	}
	render.JSON(w, r, res)
}

var contentTypes = map[exporter.Format]string{
	exporter.FormatCSV:  "text/csv; charset=utf-8",
	exporter.FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	exporter.FormatJSON: "application/json",
}

// Export handles GET /api/sessions/{name}/export?format=csv|xlsx|json. CSV
// carries the sweep table, the other formats the full report.
func (h *SessionHandler) Export(w http.ResponseWriter, r *http.Request) {
	m := sessionFrom(r.Context())

	raw := r.URL.Query().Get("format")
	if raw == "" {
		raw = string(exporter.FormatCSV)
	}
	format, err := exporter.ParseFormat(raw)
	if err != nil {
		h.respond(w, r, err)
		return
	}

	var buf bytes.Buffer
	switch format {
	case exporter.FormatCSV:
		var t exporter.Table
		if t, err = exporter.SweepTable(m); err == nil {
			err = exporter.EncodeCSV(&buf, exporter.WriteOptions{
				Headers:   t.Headers,
				Records:   t.Records(),
				BOMPrefix: true,
			})
		}
	case exporter.FormatXLSX:
		err = exporter.EncodeXLSX(&buf, []*measurement.Measurement{m})
	case exporter.FormatJSON:
		err = exporter.EncodeJSON(&buf, []*measurement.Measurement{m})
	}
	if err != nil {
		h.respond(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Session exported",
		slog.String("session", m.Name),
		slog.String("format", string(format)),
		slog.Int("bytes", buf.Len()))

	w.Header().Set("Content-Type", contentTypes[format])
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s.%s"`, strings.ReplaceAll(m.Name, `"`, "_"), format))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}
