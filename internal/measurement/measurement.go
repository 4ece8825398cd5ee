package measurement

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	apperrors "ivfeatures/internal/errors"
	"ivfeatures/internal/features"
	"ivfeatures/internal/files"
	"ivfeatures/internal/waveform"
)

// Options controls how session directories are turned into measurements
type Options struct {
	Params   features.Params
	Waveform waveform.LoadOptions
	// Extension filters sweep files; empty accepts every file
	Extension string
	// Exclude lists extra tags of sweeps known to be bad
	Exclude []string
	// Strict aborts on the first malformed file instead of skipping it
	Strict bool
	// Precompute evaluates every feature during loading
	Precompute bool
	// Workers bounds the concurrency of batch loading and precomputation
	Workers int

	Logger  *slog.Logger
	Metrics *Metrics
	Tracer  trace.Tracer
}

// DefaultOptions returns standard parameters and protocols
func DefaultOptions() Options {
	return Options{
		Params:   features.DefaultParams(),
		Waveform: waveform.DefaultLoadOptions(),
	}
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Metrics == nil {
		o.Metrics = NoopMetrics()
	}
	if o.Tracer == nil {
		o.Tracer = tracenoop.NewTracerProvider().Tracer("ivfeatures")
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	return o
}

// SkippedFile records a sweep file that could not be loaded
type SkippedFile struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
	Err      error  `json:"-"`
}

// Measurement is one recording session: the sweeps of one cell
type Measurement struct {
	*Collection
	Name    string          `json:"name"`
	Dir     string          `json:"dir"`
	Params  features.Params `json:"params"`
	Skipped []SkippedFile   `json:"skipped,omitempty"`
}

// WithCollection returns a copy of the measurement over another collection,
// typically a slice or mask of its own
func (m *Measurement) WithCollection(c *Collection) *Measurement {
	out := *m
	out.Collection = c
	return &out
}

// Load reads every sweep in dir in filename order. Sweeps whose extra tag
// is excluded are dropped. Malformed files are recorded in Skipped, or abort
// the load when opts.Strict is set.
func Load(ctx context.Context, dir string, opts Options) (*Measurement, error) {
	opts = opts.withDefaults()
	if err := opts.Params.Validate(); err != nil {
		return nil, err
	}

	name := filepath.Base(filepath.Clean(dir))
	ctx, span := opts.Tracer.Start(ctx, "measurement.Load",
		trace.WithAttributes(attribute.String("session", name)))
	defer span.End()

	logger := opts.Logger.With("component", "measurement", "session", name)
	start := time.Now()

	found, err := files.NewDiscovery("").FindSweepFiles(dir, opts.Extension)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "discovery failed")
		return nil, apperrors.NewStorageError("failed to list session", err).WithContext("dir", dir)
	}

	excluded := make(map[string]struct{}, len(opts.Exclude))
	for _, e := range opts.Exclude {
		excluded[e] = struct{}{}
	}

	m := &Measurement{Name: name, Dir: dir, Params: opts.Params}
	var sweeps []*features.Sweep

	for _, f := range found {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := waveform.ParseFileInfo(f.Name)
		if err == nil {
			if _, skip := excluded[info.Extra]; skip {
				logger.DebugContext(ctx, "Sweep excluded", slog.String("file", f.Name), slog.String("extra", info.Extra))
				continue
			}
		}

		var w *waveform.Waveform
		if err == nil {
			w, err = waveform.Load(f.Path, opts.Waveform)
		}
		if err != nil {
			if opts.Strict {
				span.RecordError(err)
				span.SetStatus(codes.Error, "malformed sweep")
				return nil, fmt.Errorf("load %s: %w", f.Name, err)
			}
			logger.WarnContext(ctx, "Skipping malformed sweep",
				slog.String("file", f.Name),
				slog.String("error", err.Error()))
			m.Skipped = append(m.Skipped, SkippedFile{Filename: f.Name, Reason: err.Error(), Err: err})
			continue
		}

		sweeps = append(sweeps, features.NewSweep(w, opts.Params, opts.Logger))
	}

	m.Collection = NewCollection(sweeps)

	fitFailures := 0
	if opts.Precompute {
		if err := m.Precompute(ctx, opts.Workers); err != nil {
			return nil, err
		}
		for _, s := range sweeps {
			if s.FallingCurveFit().Err != nil {
				fitFailures++
			}
		}
	}

	elapsed := time.Since(start)
	opts.Metrics.recordSession(ctx, name, len(sweeps), len(m.Skipped), fitFailures, elapsed)
	span.SetAttributes(
		attribute.Int("sweeps", len(sweeps)),
		attribute.Int("skipped", len(m.Skipped)),
		attribute.Int("fit_failures", fitFailures))

	logger.InfoContext(ctx, "Session loaded",
		slog.Int("sweeps", len(sweeps)),
		slog.Int("skipped", len(m.Skipped)),
		slog.Int("fit_failures", fitFailures),
		slog.Duration("elapsed", elapsed))

	return m, nil
}

// LoadBatch loads several sessions concurrently and returns them in the
// order of dirs. The first error cancels the remaining loads.
func LoadBatch(ctx context.Context, dirs []string, opts Options) ([]*Measurement, error) {
	opts = opts.withDefaults()

	ctx, span := opts.Tracer.Start(ctx, "measurement.LoadBatch",
		trace.WithAttributes(attribute.Int("sessions", len(dirs))))
	defer span.End()

	results := make([]*Measurement, len(dirs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for i, dir := range dirs {
		g.Go(func() error {
			m, err := Load(gctx, dir, opts)
			if err != nil {
				return fmt.Errorf("session %s: %w", filepath.Base(dir), err)
			}
			results[i] = m
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch load failed")
		return nil, err
	}
	return results, nil
}
