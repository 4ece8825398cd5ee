package exporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"ivfeatures/internal/files"
	"ivfeatures/internal/measurement"
)

const (
	summarySheet  = "Summary"
	maxSheetName  = 31
	invalidSheets = `:\/?*[]`
)

// EncodeXLSX writes a workbook with a summary sheet and one sheet of sweep
// features per measurement
func EncodeXLSX(out io.Writer, ms []*measurement.Measurement) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	summary, err := SummaryTable(ms)
	if err != nil {
		return err
	}
	if err := writeSheet(f, summarySheet, summary, bold); err != nil {
		return err
	}

	used := map[string]bool{strings.ToLower(summarySheet): true}
	for _, m := range ms {
		t, err := SweepTable(m)
		if err != nil {
			return err
		}
		name := sheetName(m.Name, used)
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
		if err := writeSheet(f, name, t, bold); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	_, err = f.WriteTo(out)
	return err
}

func writeSheet(f *excelize.File, sheet string, t Table, headerStyle int) error {
	header := make([]interface{}, len(t.Headers))
	for i, h := range t.Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return err
	}

	for r, row := range t.Rows {
		cells := make([]interface{}, len(row))
		for i, v := range row {
			cells[i] = sheetValue(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, r+2, err)
		}
	}
	return nil
}

// sheetName makes a valid worksheet name from a session name, unique
// case-insensitively among used
func sheetName(session string, used map[string]bool) string {
	base := strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalidSheets, r) {
			return '_'
		}
		return r
	}, session)
	if base == "" {
		base = "session"
	}
	base = truncateRunes(base, maxSheetName)

	name := base
	for i := 2; used[strings.ToLower(name)]; i++ {
		suffix := fmt.Sprintf("~%d", i)
		name = truncateRunes(base, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}

// XLSXWriter saves workbooks through a file manager
type XLSXWriter struct {
	files *files.Manager
}

// NewXLSXWriter creates a new workbook writer
func NewXLSXWriter(m *files.Manager) *XLSXWriter {
	return &XLSXWriter{files: m}
}

// Write saves the workbook for ms at filePath
func (w *XLSXWriter) Write(filePath string, ms []*measurement.Measurement) error {
	pf, err := w.files.Create(filePath)
	if err != nil {
		return err
	}
	if err := EncodeXLSX(pf, ms); err != nil {
		pf.Abort()
		return fmt.Errorf("failed to write %s: %w", filePath, err)
	}
	return pf.Commit()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
