// Package exporter writes analysis results as CSV, XLSX or JSON.
//
// SweepTable and SummaryTable derive their columns from the measurement
// accessor table, so a feature added there shows up in every export:
// scalar features take one column, uncertain features a value column and
// a _dev column. Per-spike arrays only appear in the JSON report.
//
// Example usage:
//
//	e := exporter.NewExporter("out", logger)
//	paths, err := e.Export(measurements, exporter.FormatXLSX)
package exporter
