package testutil

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"ivfeatures/internal/waveform"
)

// SweepSamples is the length of a fixture sweep: 0.9 s at 10 kHz
const SweepSamples = 9000

// SampleInterval is the sampling interval of fixture sweeps in seconds
const SampleInterval = 1e-4

// Trace returns a fixture sweep resting at -70 mV that steps to plateau
// between 0.2 s and 0.6 s, with 80 mV triangular spikes centred on the given
// sample indices. A small deterministic ripple keeps every window's
// deviation nonzero.
func Trace(plateau float64, spikes ...int) []float64 {
	y := make([]float64, SweepSamples)
	for i := range y {
		v := -0.07
		if i >= 2000 && i < 6000 {
			v = plateau
		}
		v += 1e-4 * math.Sin(float64(i)*1.7)
		for _, c := range spikes {
			d := math.Abs(float64(i - c))
			v += 0.08 * math.Max(0, 1-d/10)
		}
		y[i] = v
	}
	return y
}

// WriteSweep stores y as an IBW file named name in dir
func WriteSweep(t *testing.T, dir, name string, y []float64) {
	t.Helper()
	var buf bytes.Buffer
	if err := waveform.EncodeIBW(&buf, "w", SampleInterval, y); err != nil {
		t.Fatalf("encode %s: %v", name, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

// WriteSession creates root/cell holding one firing-protocol sweep per
// trace, numbered from 1, and returns the session directory. cell must not
// contain underscores.
func WriteSession(t *testing.T, root, cell string, traces ...[]float64) string {
	t.Helper()
	dir := filepath.Join(root, cell)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("create session %s: %v", cell, err)
	}
	for k, y := range traces {
		WriteSweep(t, dir, fmt.Sprintf("G_%s_1_2_%d_none.ibw", cell, k+1), y)
	}
	return dir
}

// Steps returns n spike-free traces with plateaus rising 5 mV per sweep
func Steps(n int) [][]float64 {
	out := make([][]float64, n)
	for k := range out {
		out[k] = Trace(-0.07 + 0.005*float64(k+1))
	}
	return out
}
