package exporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "ivfeatures/internal/errors"
	"ivfeatures/internal/features"
	"ivfeatures/internal/files"
	"ivfeatures/internal/measurement"
	"ivfeatures/internal/shared/testutil"
	"ivfeatures/internal/waveform"
)

// session builds a measurement of synthetic sweeps, spiking from the third on
func session(t *testing.T, name string, n int) *measurement.Measurement {
	t.Helper()
	var sweeps []*features.Sweep
	for k := 1; k <= n; k++ {
		y := make([]float64, 9000)
		for i := range y {
			v := -0.07
			if i >= 2000 && i < 6000 {
				v = -0.07 + 0.005*float64(k)
			}
			v += 1e-4 * math.Sin(float64(i)*1.7)
			if k >= 3 {
				d := math.Abs(float64(i - 3000))
				v += 0.1 * math.Max(0, 1-d/10)
			}
			y[i] = v
		}
		info := waveform.FileInfo{Group: "G", Cell: name, Experiment: 1, Protocol: waveform.ProtocolIF, Number: k, Extra: "none"}
		injection, err := waveform.InjectionCurrent(info, waveform.DefaultProtocols())
		require.NoError(t, err)
		w, err := waveform.New(fmt.Sprintf("G_%s_1_2_%d_none.ibw", name, k), info, injection,
			waveform.Linspace(0, 0.9, len(y)), y)
		require.NoError(t, err)
		sweeps = append(sweeps, features.NewSweep(w, features.DefaultParams(), nil))
	}
	return &measurement.Measurement{
		Collection: measurement.NewCollection(sweeps),
		Name:       name,
		Params:     features.DefaultParams(),
		Skipped:    []measurement.SkippedFile{{Filename: "notes.txt", Reason: "bad name"}},
	}
}

func TestSweepTable(t *testing.T) {
	m := session(t, "cellA", 4)

	table, err := SweepTable(m)
	require.NoError(t, err)

	assert.Equal(t, "session", table.Headers[0])
	assert.Equal(t, "filename", table.Headers[1])
	assert.Contains(t, table.Headers, "baseline")
	assert.Contains(t, table.Headers, "baseline_dev")
	assert.Contains(t, table.Headers, "mean_spike_height")
	assert.Contains(t, table.Headers, "spike_count")
	assert.NotContains(t, table.Headers, "spike_width")
	assert.NotContains(t, table.Headers, "mean_baseline")

	require.Len(t, table.Rows, 4)
	for i, row := range table.Rows {
		assert.Len(t, row, len(table.Headers))
		assert.Equal(t, "cellA", row[0])
		assert.Equal(t, fmt.Sprintf("G_cellA_1_2_%d_none.ibw", i+1), row[1])
	}

	counts := column(t, table, "spike_count")
	assert.Equal(t, []interface{}{0.0, 0.0, 1.0, 1.0}, counts)
}

func column(t *testing.T, table Table, name string) []interface{} {
	t.Helper()
	for k, h := range table.Headers {
		if h == name {
			out := make([]interface{}, len(table.Rows))
			for i, row := range table.Rows {
				out[i] = row[k]
			}
			return out
		}
	}
	t.Fatalf("no column %s", name)
	return nil
}

func TestSummaryTable(t *testing.T) {
	ms := []*measurement.Measurement{session(t, "cellA", 3), session(t, "cellB", 4)}

	table, err := SummaryTable(ms)
	require.NoError(t, err)

	assert.Equal(t, []string{"session", "sweeps", "skipped"}, table.Headers[:3])
	assert.Contains(t, table.Headers, "mean_baseline_dev")
	assert.Contains(t, table.Headers, "mean_spike_height")
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []interface{}{"cellB", 4, 1}, table.Rows[1][:3])

	baseline := column(t, table, "mean_baseline")
	assert.InDelta(t, -0.07, baseline[0].(float64), 1e-4)
}

func TestCSVWriter(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(files.NewManager(dir, nil))

	err := w.WriteCSV("nested/out.csv", WriteOptions{
		Headers:   []string{"a", "b"},
		Records:   [][]string{{"1", "x,y"}, {"2", ""}},
		BOMPrefix: true,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "nested", "out.csv"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, utf8BOM))

	records, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM))).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"1", "x,y"}, {"2", ""}}, records)

	// no temporary files left behind
	entries, err := os.ReadDir(filepath.Join(dir, "nested"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestExportFormats(t *testing.T) {
	ms := []*measurement.Measurement{session(t, "cellA", 3), session(t, "cellA", 2)}
	ms[1].Name = "cellB"

	tests := []struct {
		format Format
		want   []string
		check  func(t *testing.T, dir string)
	}{
		{
			format: FormatCSV,
			want:   []string{"summary.csv", filepath.Join("cellA", "sweeps.csv"), filepath.Join("cellB", "sweeps.csv")},
			check: func(t *testing.T, dir string) {
				data, err := os.ReadFile(filepath.Join(dir, "cellB", "sweeps.csv"))
				require.NoError(t, err)
				records, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM))).ReadAll()
				require.NoError(t, err)
				assert.Len(t, records, 3)
				assert.Equal(t, "filename", records[0][1])
			},
		},
		{
			format: FormatXLSX,
			want:   []string{"features.xlsx"},
			check: func(t *testing.T, dir string) {
				f, err := excelize.OpenFile(filepath.Join(dir, "features.xlsx"))
				require.NoError(t, err)
				defer f.Close()

				assert.Equal(t, []string{"Summary", "cellA", "cellB"}, f.GetSheetList())
				rows, err := f.GetRows("cellA")
				require.NoError(t, err)
				assert.Len(t, rows, 4)
				assert.Equal(t, "G_cellA_1_2_1_none.ibw", rows[1][1])

				count, err := f.GetCellValue("Summary", "B3")
				require.NoError(t, err)
				assert.Equal(t, "2", count)
			},
		},
		{
			format: FormatJSON,
			want:   []string{"features.json"},
			check: func(t *testing.T, dir string) {
				data, err := os.ReadFile(filepath.Join(dir, "features.json"))
				require.NoError(t, err)

				var reports []map[string]interface{}
				require.NoError(t, json.Unmarshal(data, &reports))
				require.Len(t, reports, 2)
				assert.Equal(t, "cellA", reports[0]["name"])
				assert.Len(t, reports[0]["sweeps"], 3)
				assert.Contains(t, reports[0]["means"], "mean_spike_width")
			},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			dir := t.TempDir()
			logger, logs := testutil.NewTestLogger(t)
			written, err := NewExporter(dir, logger).Export(ms, tt.format)
			require.NoError(t, err)
			assert.Equal(t, tt.want, written)
			tt.check(t, dir)

			testutil.AssertLogContains(t, logs, slog.LevelInfo, "Export complete")
			testutil.AssertLogAttr(t, logs, "component", "exporter")
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" XLSX ")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	_, err = ParseFormat("pdf")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	_, err = NewExporter(t.TempDir(), nil).Export(nil, Format("pdf"))
	assert.Error(t, err)
}

func TestSheetName(t *testing.T) {
	used := map[string]bool{"summary": true}

	assert.Equal(t, "Summary~2", sheetName("Summary", used))
	assert.Equal(t, "a_b_c", sheetName("a/b?c", used))
	assert.Equal(t, "A_B_C~2", sheetName("A/B?C", used))

	long := sheetName("a-very-long-session-name-from-the-rig-2024", used)
	assert.Len(t, []rune(long), 31)
	assert.Equal(t, "session", sheetName("", used))
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "a_b", safeName("a/b"))
	assert.Equal(t, "session", safeName(".."))
	assert.Equal(t, "cell1", safeName("cell1"))
}
