package measurement

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics counts the work done while loading measurements
type Metrics struct {
	SweepsLoaded  metric.Int64Counter
	SweepsSkipped metric.Int64Counter
	FitFailures   metric.Int64Counter
	LoadDuration  metric.Float64Histogram
}

// NewMetrics creates the loader instruments on meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	loaded, err := meter.Int64Counter(
		"ivf_sweeps_loaded_total",
		metric.WithDescription("Total number of sweeps loaded"),
	)
	if err != nil {
		return nil, err
	}

	skipped, err := meter.Int64Counter(
		"ivf_sweeps_skipped_total",
		metric.WithDescription("Total number of malformed sweep files skipped"),
	)
	if err != nil {
		return nil, err
	}

	fitFailures, err := meter.Int64Counter(
		"ivf_fit_failures_total",
		metric.WithDescription("Total number of falling curve fits that did not converge"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"ivf_session_load_seconds",
		metric.WithDescription("Time to load and analyse one session"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		SweepsLoaded:  loaded,
		SweepsSkipped: skipped,
		FitFailures:   fitFailures,
		LoadDuration:  duration,
	}, nil
}

// NoopMetrics returns instruments that record nothing
func NoopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter("ivfeatures"))
	return m
}

func (m *Metrics) recordSession(ctx context.Context, session string, loaded, skipped, fitFailures int, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("session", session))
	m.SweepsLoaded.Add(ctx, int64(loaded), attrs)
	m.SweepsSkipped.Add(ctx, int64(skipped), attrs)
	m.FitFailures.Add(ctx, int64(fitFailures), attrs)
	m.LoadDuration.Record(ctx, elapsed.Seconds(), attrs)
}
