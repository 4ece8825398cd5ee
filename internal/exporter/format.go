package exporter

import (
	"math"
	"strconv"
)

// formatFloat formats a float64 for CSV output in the shortest form that
// round-trips. NaN and infinities become empty cells.
func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// formatInt formats an int value for CSV output
func formatInt(i int) string {
	return strconv.Itoa(i)
}

// formatCell renders one table cell as CSV text
func formatCell(v interface{}) string {
	switch c := v.(type) {
	case nil:
		return ""
	case float64:
		return formatFloat(c)
	case int:
		return formatInt(c)
	case string:
		return c
	default:
		return ""
	}
}

// sheetValue converts a cell for a spreadsheet, leaving non-finite numbers blank
func sheetValue(v interface{}) interface{} {
	if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return nil
	}
	return v
}
