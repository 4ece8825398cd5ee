package testutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ivfeatures/internal/waveform"
)

func TestBufferedSlogHandler(t *testing.T) {
	logger, handler := NewTestLogger(t)

	logger.With("component", "loader").WithGroup("sweep").Info("loaded", "number", 3)
	logger.Error("failed")

	require.Equal(t, 2, handler.Count())
	assert.True(t, handler.ContainsMessage("load"))
	assert.True(t, handler.ContainsAttr("component", "loader"))
	assert.True(t, handler.ContainsAttr("sweep.number", int64(3)))
	assert.Len(t, handler.GetRecordsByLevel(slog.LevelError), 1)
	AssertLogContains(t, handler, slog.LevelInfo, "loaded")
}

func TestWriteSession(t *testing.T) {
	root := t.TempDir()
	dir := WriteSession(t, root, "cell9", Steps(2)...)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "G_cell9_1_2_1_none.ibw", entries[0].Name())

	raw, err := os.ReadFile(filepath.Join(dir, entries[1].Name()))
	require.NoError(t, err)
	wave, err := waveform.DecodeIBW(raw)
	require.NoError(t, err)
	assert.Len(t, wave.Data, SweepSamples)
	assert.InDelta(t, SampleInterval, wave.Step, 1e-12)
}
