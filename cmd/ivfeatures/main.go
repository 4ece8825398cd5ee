// Command ivfeatures extracts electrophysiology features from whole-cell
// current-clamp recordings.
//
// Batch mode analyses session directories and writes the results:
//
//	ivfeatures -out results -format xlsx data/cell1 data/cell2
//	ivfeatures -root data -format csv
//
// Serve mode exposes the sessions below the data directory over HTTP:
//
//	ivfeatures -serve -root data -port 8080
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"ivfeatures/internal/app"
	"ivfeatures/internal/config"
	"ivfeatures/internal/exporter"
	"ivfeatures/internal/files"
	"ivfeatures/internal/infrastructure"
	"ivfeatures/internal/measurement"
)

// options holds the command line
type options struct {
	configPath string
	root       string
	out        string
	format     string
	exclude    string
	port       int
	serve      bool
	strict     bool
	precompute bool
	dirs       []string
}

func parseFlags(args []string, output io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("ivfeatures", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.configPath, "config", "", "path to a YAML config file (default: IVF_CONFIG or ./ivfeatures.yaml)")
	fs.StringVar(&opts.root, "root", "", "directory whose subdirectories are sessions (overrides server.data_dir)")
	fs.StringVar(&opts.out, "out", "results", "output directory for batch exports")
	fs.StringVar(&opts.format, "format", "csv", "export format: csv, xlsx or json")
	fs.StringVar(&opts.exclude, "exclude", "", "comma separated extra tags of sweeps to drop")
	fs.IntVar(&opts.port, "port", 0, "HTTP port in serve mode (overrides server.port)")
	fs.BoolVar(&opts.serve, "serve", false, "serve the HTTP API instead of exporting")
	fs.BoolVar(&opts.strict, "strict", false, "abort on the first malformed sweep file")
	fs.BoolVar(&opts.precompute, "precompute", false, "compute every feature while loading")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	opts.dirs = fs.Args()

	if _, err := exporter.ParseFormat(opts.format); err != nil {
		return opts, err
	}
	if !opts.serve && opts.root == "" && len(opts.dirs) == 0 {
		return opts, fmt.Errorf("no sessions given: pass session directories or -root")
	}
	return opts, nil
}

// applyOverrides lets explicit flags win over the configuration
func applyOverrides(cfg *config.Config, opts options) {
	if opts.root != "" {
		cfg.Server.DataDir = opts.root
	}
	if opts.port != 0 {
		cfg.Server.Port = opts.port
	}
	if opts.strict {
		cfg.Analysis.Strict = true
	}
	if opts.precompute {
		cfg.Analysis.Precompute = true
	}
	for _, tag := range strings.Split(opts.exclude, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			cfg.Analysis.Exclude = append(cfg.Analysis.Exclude, tag)
		}
	}
}

// sessionDirs lists the explicit directories followed by every session
// below root
func sessionDirs(opts options) ([]string, error) {
	dirs := append([]string(nil), opts.dirs...)
	if opts.root == "" {
		return dirs, nil
	}
	sessions, err := files.NewDiscovery("").ListSessions(opts.root)
	if err != nil {
		return nil, err
	}
	for _, s := range sessions {
		dirs = append(dirs, s.Path)
	}
	return dirs, nil
}

// analyze loads every session and exports it, returning the files written
func analyze(ctx context.Context, cfg *config.Config, opts options, providers *infrastructure.OTelProviders, logger *slog.Logger) ([]*measurement.Measurement, []string, error) {
	dirs, err := sessionDirs(opts)
	if err != nil {
		return nil, nil, err
	}
	// one trace ID ties together the logs of a batch run
	ctx = infrastructure.EnsureTraceID(ctx)

	loadOpts := cfg.Analysis.Options(logger)
	loadOpts.Tracer = providers.Tracer
	if loadOpts.Metrics, err = measurement.NewMetrics(providers.Meter); err != nil {
		return nil, nil, err
	}

	ms, err := measurement.LoadBatch(ctx, dirs, loadOpts)
	if err != nil {
		return nil, nil, err
	}

	format, err := exporter.ParseFormat(opts.format)
	if err != nil {
		return nil, nil, err
	}
	written, err := exporter.NewExporter(opts.out, logger).Export(ms, format)
	if err != nil {
		return nil, nil, err
	}
	return ms, written, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	var cfg *config.Config
	if opts.configPath != "" {
		cfg, err = config.LoadFrom(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	applyOverrides(cfg, opts)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer infrastructure.CloseLogFile()

	if opts.serve {
		application, err := app.New(cfg, logger)
		if err != nil {
			return err
		}
		return application.Run(ctx)
	}

	providers, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Metrics), logger)
	if err != nil {
		return err
	}
	defer providers.Shutdown(context.WithoutCancel(ctx))

	ms, written, err := analyze(ctx, cfg, opts, providers, logger)
	if err != nil {
		return err
	}

	for _, m := range ms {
		fmt.Fprintf(stdout, "%s: %d sweeps, %d skipped\n", m.Name, m.Len(), len(m.Skipped))
	}
	for _, path := range written {
		fmt.Fprintf(stdout, "wrote %s\n", filepath.Join(opts.out, path))
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		slog.Error("ivfeatures failed", "error", err)
		stop()
		os.Exit(1)
	}
}
