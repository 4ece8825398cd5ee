package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"

	"ivfeatures/internal/files"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter provides CSV export functionality
type CSVWriter struct {
	files *files.Manager
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(m *files.Manager) *CSVWriter {
	return &CSVWriter{files: m}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes data to a CSV file. The file appears complete or not at all.
func (w *CSVWriter) WriteCSV(filePath string, options WriteOptions) error {
	slog.Debug("Writing CSV file",
		slog.String("file_path", filePath),
		slog.Int("record_count", len(options.Records)))

	pf, err := w.files.Create(filePath)
	if err != nil {
		return err
	}
	if err := EncodeCSV(pf, options); err != nil {
		pf.Abort()
		return fmt.Errorf("failed to write %s: %w", filePath, err)
	}
	return pf.Commit()
}

// WriteTable writes a table to a CSV file with a BOM
func (w *CSVWriter) WriteTable(filePath string, t Table) error {
	return w.WriteCSV(filePath, WriteOptions{
		Headers:   t.Headers,
		Records:   t.Records(),
		BOMPrefix: true,
	})
}

// EncodeCSV streams headers and records to out
func EncodeCSV(out io.Writer, options WriteOptions) error {
	if options.BOMPrefix {
		if _, err := out.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(out)

	if len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}

	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
