package exporter

import (
	"fmt"

	apperrors "ivfeatures/internal/errors"
	"ivfeatures/internal/measurement"
)

// Table is a rectangular export: one header row and typed cells (string,
// int or float64)
type Table struct {
	Headers []string
	Rows    [][]interface{}
}

// Records renders the rows as CSV text
func (t Table) Records() [][]string {
	out := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		rec := make([]string, len(row))
		for j, v := range row {
			rec[j] = formatCell(v)
		}
		out[i] = rec
	}
	return out
}

// column contributes one or two cells per sweep
type column struct {
	headers []string
	cells   func(i int) []interface{}
}

// sweepColumns lists one column per scalar feature and a value/deviation
// pair per uncertain feature. Per-spike arrays are ragged and left out.
func sweepColumns(c *measurement.Collection) ([]column, error) {
	names := measurement.FeatureNames()
	cols := make([]column, 0, len(names))

	for _, name := range names {
		agg, err := measurement.Lookup(name)
		if err != nil {
			return nil, err
		}

		switch agg.Strategy() {
		case measurement.StackStrings:
			vals, err := c.Strings(name)
			if err != nil {
				return nil, err
			}
			cols = append(cols, column{
				headers: []string{name},
				cells:   func(i int) []interface{} { return []interface{}{vals[i]} },
			})
		case measurement.StackArray:
			vals, err := c.Floats(name)
			if err != nil {
				return nil, err
			}
			cols = append(cols, column{
				headers: []string{name},
				cells:   func(i int) []interface{} { return []interface{}{vals[i]} },
			})
		case measurement.UncertainArray, measurement.PooledSpikeMean:
			// pooled means with a per-sweep form (mean_spike_height) get a column too
			vals, err := c.Values(name)
			if apperrors.IsType(err, apperrors.ErrTypeValidation) {
				continue
			}
			if err != nil {
				return nil, err
			}
			cols = append(cols, column{
				headers: []string{name, name + "_dev"},
				cells:   func(i int) []interface{} { return []interface{}{vals[i].X, vals[i].Dev} },
			})
		}
	}

	for k, col := range cols {
		if col.headers[0] == "filename" {
			copy(cols[1:k+1], cols[:k])
			cols[0] = col
			break
		}
	}
	return cols, nil
}

// SweepTable lays out one row per sweep of m, filename first
func SweepTable(m *measurement.Measurement) (Table, error) {
	cols, err := sweepColumns(m.Collection)
	if err != nil {
		return Table{}, fmt.Errorf("collect features of %s: %w", m.Name, err)
	}

	headers := []string{"session"}
	for _, col := range cols {
		headers = append(headers, col.headers...)
	}

	t := Table{Headers: headers, Rows: make([][]interface{}, m.Len())}
	for i := range t.Rows {
		row := []interface{}{m.Name}
		for _, col := range cols {
			row = append(row, col.cells(i)...)
		}
		t.Rows[i] = row
	}
	return t, nil
}

// SummaryTable lays out one row per session with its population means
func SummaryTable(ms []*measurement.Measurement) (Table, error) {
	var means []string
	for _, name := range measurement.FeatureNames() {
		agg, err := measurement.Lookup(name)
		if err != nil {
			return Table{}, err
		}
		if s := agg.Strategy(); s == measurement.MeanOfUncertain || s == measurement.PooledSpikeMean {
			means = append(means, name)
		}
	}

	headers := []string{"session", "sweeps", "skipped"}
	for _, name := range means {
		headers = append(headers, name, name+"_dev")
	}

	t := Table{Headers: headers, Rows: make([][]interface{}, len(ms))}
	for i, m := range ms {
		row := []interface{}{m.Name, m.Len(), len(m.Skipped)}
		for _, name := range means {
			v, err := m.Mean(name)
			if err != nil {
				return Table{}, fmt.Errorf("summarise %s: %w", m.Name, err)
			}
			row = append(row, v.X, v.Dev)
		}
		t.Rows[i] = row
	}
	return t, nil
}
