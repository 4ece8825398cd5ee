package exporter

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	apperrors "ivfeatures/internal/errors"
	"ivfeatures/internal/features"
	"ivfeatures/internal/files"
	"ivfeatures/internal/infrastructure"
	"ivfeatures/internal/measurement"
	"ivfeatures/internal/uncertain"
)

// Format selects the export file type
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// ParseFormat accepts csv, xlsx or json in any case
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX, FormatJSON:
		return f, nil
	default:
		return "", apperrors.NewAppValidationError(fmt.Sprintf("unknown export format %q", s))
	}
}

// SessionReport is the JSON form of a measurement
type SessionReport struct {
	Name    string                     `json:"name"`
	Params  features.Params            `json:"params"`
	Skipped []measurement.SkippedFile  `json:"skipped,omitempty"`
	Means   map[string]uncertain.Value `json:"means"`
	Sweeps  []features.Features        `json:"sweeps"`
}

// Report collects every sweep feature and population mean of m
func Report(m *measurement.Measurement) (SessionReport, error) {
	r := SessionReport{
		Name:    m.Name,
		Params:  m.Params,
		Skipped: m.Skipped,
		Means:   make(map[string]uncertain.Value),
		Sweeps:  make([]features.Features, 0, m.Len()),
	}
	for _, s := range m.Sweeps() {
		r.Sweeps = append(r.Sweeps, s.Features())
	}
	for _, name := range measurement.FeatureNames() {
		agg, err := measurement.Lookup(name)
		if err != nil {
			return SessionReport{}, err
		}
		if s := agg.Strategy(); s != measurement.MeanOfUncertain && s != measurement.PooledSpikeMean {
			continue
		}
		v, err := m.Mean(name)
		if err != nil {
			return SessionReport{}, err
		}
		r.Means[name] = v
	}
	return r, nil
}

// EncodeJSON writes the reports of ms as an indented JSON array
func EncodeJSON(out io.Writer, ms []*measurement.Measurement) error {
	reports := make([]SessionReport, 0, len(ms))
	for _, m := range ms {
		r, err := Report(m)
		if err != nil {
			return err
		}
		reports = append(reports, r)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}

// Exporter writes analysis results below an output directory
type Exporter struct {
	files  *files.Manager
	csv    *CSVWriter
	xlsx   *XLSXWriter
	logger *slog.Logger
}

// NewExporter creates an exporter rooted at outDir
func NewExporter(outDir string, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	m := files.NewManager(outDir, logger)
	return &Exporter{
		files:  m,
		csv:    NewCSVWriter(m),
		xlsx:   NewXLSXWriter(m),
		logger: infrastructure.WithComponent(logger, "exporter"),
	}
}

// Export writes ms in the given format and returns the relative paths written.
// CSV produces summary.csv plus <session>/sweeps.csv, XLSX a single
// features.xlsx and JSON a single features.json.
func (e *Exporter) Export(ms []*measurement.Measurement, format Format) ([]string, error) {
	var written []string

	switch format {
	case FormatCSV:
		summary, err := SummaryTable(ms)
		if err != nil {
			return nil, err
		}
		if err := e.csv.WriteTable("summary.csv", summary); err != nil {
			return nil, apperrors.NewStorageError("failed to write summary", err)
		}
		written = append(written, "summary.csv")

		for _, m := range ms {
			t, err := SweepTable(m)
			if err != nil {
				return nil, err
			}
			path := filepath.Join(safeName(m.Name), "sweeps.csv")
			if err := e.csv.WriteTable(path, t); err != nil {
				return nil, apperrors.NewStorageError("failed to write sweep table", err).
					WithContext("session", m.Name)
			}
			written = append(written, path)
		}

	case FormatXLSX:
		if err := e.xlsx.Write("features.xlsx", ms); err != nil {
			return nil, apperrors.NewStorageError("failed to write workbook", err)
		}
		written = append(written, "features.xlsx")

	case FormatJSON:
		pf, err := e.files.Create("features.json")
		if err != nil {
			return nil, apperrors.NewStorageError("failed to create report", err)
		}
		if err := EncodeJSON(pf, ms); err != nil {
			pf.Abort()
			return nil, apperrors.NewStorageError("failed to write report", err)
		}
		if err := pf.Commit(); err != nil {
			return nil, apperrors.NewStorageError("failed to write report", err)
		}
		written = append(written, "features.json")

	default:
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("unknown export format %q", format))
	}

	e.logger.Info("Export complete",
		slog.String("format", string(format)),
		slog.Int("sessions", len(ms)),
		slog.Int("files", len(written)))
	return written, nil
}

// safeName keeps a session name usable as a single path element
func safeName(name string) string {
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == 0 {
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "session"
	}
	return name
}
