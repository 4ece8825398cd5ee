package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ivfeatures/internal/config"
	"ivfeatures/internal/infrastructure"
	"ivfeatures/internal/shared/testutil"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
		check   func(t *testing.T, o options)
	}{
		{
			name: "directories",
			args: []string{"-format", "xlsx", "a", "b"},
			check: func(t *testing.T, o options) {
				assert.Equal(t, []string{"a", "b"}, o.dirs)
				assert.Equal(t, "xlsx", o.format)
				assert.Equal(t, "results", o.out)
			},
		},
		{
			name: "root",
			args: []string{"-root", "data", "-strict", "-exclude", "bad, worse"},
			check: func(t *testing.T, o options) {
				assert.Equal(t, "data", o.root)
				assert.True(t, o.strict)
				assert.Equal(t, "bad, worse", o.exclude)
			},
		},
		{
			name: "serve needs no sessions",
			args: []string{"-serve", "-port", "9090"},
			check: func(t *testing.T, o options) {
				assert.True(t, o.serve)
				assert.Equal(t, 9090, o.port)
			},
		},
		{name: "nothing to do", args: nil, wantErr: true},
		{name: "unknown format", args: []string{"-format", "pdf", "a"}, wantErr: true},
		{name: "unknown flag", args: []string{"-colour", "a"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := parseFlags(tt.args, io.Discard)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, o)
		})
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg := config.Default()
	cfg.Analysis.Exclude = []string{"old"}

	applyOverrides(cfg, options{root: "/data", port: 9000, strict: true, precompute: true, exclude: "a,,b "})

	assert.Equal(t, "/data", cfg.Server.DataDir)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.True(t, cfg.Analysis.Strict)
	assert.True(t, cfg.Analysis.Precompute)
	assert.Equal(t, []string{"old", "a", "b"}, cfg.Analysis.Exclude)

	untouched := config.Default()
	applyOverrides(untouched, options{})
	assert.Equal(t, config.Default(), untouched)
}

func TestSessionDirs(t *testing.T) {
	root := t.TempDir()
	testutil.WriteSession(t, root, "cellb", testutil.Steps(1)...)
	testutil.WriteSession(t, root, "cella", testutil.Steps(1)...)

	dirs, err := sessionDirs(options{root: root, dirs: []string{"explicit"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"explicit", filepath.Join(root, "cella"), filepath.Join(root, "cellb")}, dirs)

	_, err = sessionDirs(options{root: filepath.Join(root, "missing")})
	assert.Error(t, err)
}

func TestAnalyze(t *testing.T) {
	root := t.TempDir()
	testutil.WriteSession(t, root, "cella", testutil.Steps(3)...)
	testutil.WriteSession(t, root, "cellb", testutil.Steps(2)...)
	out := t.TempDir()

	cfg := config.Default()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	providers, err := infrastructure.InitializeOTel(&infrastructure.OTelConfig{ServiceName: "test", SampleRatio: 1}, logger)
	require.NoError(t, err)

	ms, written, err := analyze(context.Background(), cfg, options{root: root, out: out, format: "csv"}, providers, logger)
	require.NoError(t, err)

	require.Len(t, ms, 2)
	assert.Equal(t, "cella", ms[0].Name)
	assert.Equal(t, 3, ms[0].Len())
	assert.Equal(t, []string{
		"summary.csv",
		filepath.Join("cella", "sweeps.csv"),
		filepath.Join("cellb", "sweeps.csv"),
	}, written)
	for _, path := range written {
		assert.FileExists(t, filepath.Join(out, path))
	}
}

func TestAnalyzeLogsShareTraceID(t *testing.T) {
	root := t.TempDir()
	testutil.WriteSession(t, root, "cella", testutil.Steps(2)...)
	testutil.WriteSession(t, root, "cellb", testutil.Steps(2)...)

	var buf bytes.Buffer
	logger := infrastructure.NewLogger(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	providers, err := infrastructure.InitializeOTel(&infrastructure.OTelConfig{ServiceName: "test", SampleRatio: 1}, logger)
	require.NoError(t, err)

	_, _, err = analyze(context.Background(), config.Default(), options{root: root, out: t.TempDir(), format: "csv"}, providers, logger)
	require.NoError(t, err)

	ids := map[interface{}]bool{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["msg"] == "Session loaded" {
			require.NotEmpty(t, entry["trace_id"])
			ids[entry["trace_id"]] = true
		}
	}
	assert.Len(t, ids, 1)
}

func TestRun(t *testing.T) {
	root := t.TempDir()
	testutil.WriteSession(t, root, "cella", testutil.Steps(2)...)
	out := t.TempDir()

	cfgPath := filepath.Join(t.TempDir(), "ivfeatures.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("metrics:\n  enabled: false\n"), 0o644))

	var stdout bytes.Buffer
	err := run(context.Background(),
		[]string{"-config", cfgPath, "-out", out, "-format", "json", filepath.Join(root, "cella")},
		&stdout, io.Discard)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	assert.Equal(t, []string{
		"cella: 2 sweeps, 0 skipped",
		"wrote " + filepath.Join(out, "features.json"),
	}, lines)
	assert.FileExists(t, filepath.Join(out, "features.json"))
}

func TestRunRejectsBadConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "ivfeatures.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("server:\n  port: 0\n"), 0o644))

	err := run(context.Background(), []string{"-config", cfgPath, "somewhere"}, io.Discard, io.Discard)
	assert.Error(t, err)
}
