package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"ivfeatures/internal/config"
	"ivfeatures/internal/infrastructure"
	"ivfeatures/internal/measurement"
	customMiddleware "ivfeatures/internal/middleware"
	"ivfeatures/internal/services"
	handlers "ivfeatures/internal/transport/http"
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Sessions      *services.SessionService
	Health        *services.HealthService
	Collector     *infrastructure.SystemMetricsCollector
}

// New creates an application from a loaded configuration
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Metrics), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
	}

	if err := a.initializeServices(); err != nil {
		otelProviders.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	a.setupRouter()
	a.createServer()

	return a, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	opts := a.Config.Analysis.Options(a.Logger)
	opts.Tracer = a.OTelProviders.Tracer

	metrics, err := measurement.NewMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create analysis metrics: %w", err)
	}
	opts.Metrics = metrics

	if a.Config.Metrics.Enabled {
		a.Collector, err = infrastructure.NewSystemMetricsCollector(a.OTelProviders.Meter, 15*time.Second)
		if err != nil {
			return err
		}
	}

	a.Sessions = services.NewSessionService(a.Config.Server.DataDir, opts, a.Logger)
	a.Health = services.NewHealthService(infrastructure.ServiceVersion, a.Sessions, a.Collector, a.Logger)
	return nil
}

// setupRouter configures the HTTP router with all routes.
// Middleware order: RequestID, OTel, Logger, Recoverer, then the rest.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	if otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders); err != nil {
		a.Logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
	} else {
		r.Use(otelMiddleware.Handler)
	}
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.Logger))
	r.Use(customMiddleware.SecurityHeaders)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		customMiddleware.ProblemFromStatus(http.StatusNotFound, "no route for "+r.URL.Path,
			customMiddleware.GetReqID(r.Context())).Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		customMiddleware.ProblemFromStatus(http.StatusMethodNotAllowed, r.Method+" is not supported here",
			customMiddleware.GetReqID(r.Context())).Write(w)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		if rl := a.Config.Server.RateLimit; rl.Enabled {
			r.Use(customMiddleware.NewRateLimiter(rl.RPS, rl.Burst, a.Logger).Handler)
		}
		r.Use(customMiddleware.Timeout(a.Config.Server.WriteTimeout))
		r.Use(customMiddleware.Compress(5))

		healthHandler := handlers.NewHealthHandler(a.Health, a.Logger)
		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/health/live", healthHandler.LivenessCheck)
		r.Get("/features", handlers.Features)

		r.Mount("/sessions", handlers.NewSessionHandler(a.Sessions, a.Logger).Routes())
	})

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle(a.Config.Metrics.Endpoint, a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Serve accepts connections on l until ctx is cancelled, then shuts down
func (a *Application) Serve(ctx context.Context, l net.Listener) error {
	a.Logger.InfoContext(ctx, "Starting server",
		slog.String("address", l.Addr().String()),
		slog.String("data_dir", a.Config.Server.DataDir),
		slog.String("version", infrastructure.ServiceVersion))

	if a.Collector != nil {
		go a.Collector.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.Server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		a.Stop(context.Background())
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "Shutdown requested")
	}
	return a.Stop(context.WithoutCancel(ctx))
}

// Run listens on the configured port and serves until ctx is cancelled
func (a *Application) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	return a.Serve(ctx, l)
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	if a.Collector != nil {
		a.Collector.Stop()
	}

	if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
		a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}
