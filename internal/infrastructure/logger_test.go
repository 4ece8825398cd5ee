package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ivfeatures/internal/config"
)

func TestInitializeLogger(t *testing.T) {
	ResetLoggerForTesting()
	defer ResetLoggerForTesting()

	logFile := filepath.Join(t.TempDir(), "logs", "test.log")
	cfg := config.LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: logFile,
	}

	logger, err := InitializeLogger(cfg)
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Same(t, logger, GetLogger())

	// later calls keep the first logger
	again, err := InitializeLogger(config.LoggingConfig{Level: "debug"})
	require.NoError(t, err)
	assert.Same(t, logger, again)

	logger.Info("session loaded", "sweeps", 12)
	require.NoError(t, CloseLogFile())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(content), &entry))
	assert.Equal(t, "session loaded", entry["msg"])
	assert.Equal(t, float64(12), entry["sweeps"])
}

func TestTraceIDInjection(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	ctx := WithTraceID(context.Background(), "abc-123")
	logger.InfoContext(ctx, "with trace")
	logger.Info("without trace")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first, second map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "abc-123", first["trace_id"])
	assert.NotContains(t, second, "trace_id")
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		level   string
		debug   bool
		info    bool
		warning bool
	}{
		{level: "debug", debug: true, info: true, warning: true},
		{level: "info", info: true, warning: true},
		{level: "warn", warning: true},
		{level: "error"},
		{level: "bogus", info: true, warning: true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(config.LoggingConfig{Level: tt.level, Format: "text"}, &buf)

			logger.Debug("debug-line")
			logger.Info("info-line")
			logger.Warn("warn-line")

			out := buf.String()
			assert.Equal(t, tt.debug, strings.Contains(out, "debug-line"))
			assert.Equal(t, tt.info, strings.Contains(out, "info-line"))
			assert.Equal(t, tt.warning, strings.Contains(out, "warn-line"))
		})
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))

	ctx = EnsureTraceID(ctx)
	id := GetTraceID(ctx)
	assert.Len(t, id, 36)

	// an existing ID is kept
	assert.Equal(t, id, GetTraceID(EnsureTraceID(ctx)))
	assert.NotEqual(t, id, GenerateTraceID())
}

func TestLoggerHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	WithError(WithComponent(logger, "exporter"), assert.AnError).Info("failed")
	assert.Same(t, logger, WithError(logger, nil))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "exporter", entry["component"])
	assert.Equal(t, assert.AnError.Error(), entry["error"])
}
