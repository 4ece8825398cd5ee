package waveform

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	apperrors "ivfeatures/internal/errors"
)

// LoadOptions controls how a sweep file becomes a Waveform
type LoadOptions struct {
	Protocols Protocols
	// Duration is the total sweep time in seconds. Zero uses the sample
	// count times the step stored in the file, which must then be positive.
	Duration float64
}

// DefaultLoadOptions returns the standard protocols and a file-derived duration
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{Protocols: DefaultProtocols()}
}

// Waveform is one recorded sweep with its filename metadata. It is
// immutable; slice accessors return copies.
type Waveform struct {
	filename  string
	info      FileInfo
	injection float64
	x         []float64
	y         []float64
}

// New builds a waveform from already decoded samples
func New(filename string, info FileInfo, injection float64, x, y []float64) (*Waveform, error) {
	if len(x) != len(y) {
		return nil, apperrors.NewFormatError(
			fmt.Sprintf("time axis has %d samples, amplitude has %d", len(x), len(y)), nil)
	}
	return &Waveform{
		filename:  filename,
		info:      info,
		injection: injection,
		x:         append([]float64(nil), x...),
		y:         append([]float64(nil), y...),
	}, nil
}

// Load reads an Igor Binary Wave sweep file and tags it with the metadata
// parsed from its name
func Load(path string, opts LoadOptions) (*Waveform, error) {
	info, err := ParseFileInfo(path)
	if err != nil {
		return nil, err
	}

	injection, err := InjectionCurrent(info, opts.Protocols)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read sweep file", err).
			WithContext("path", path)
	}

	wave, err := DecodeIBW(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}

	n := len(wave.Data)
	total := opts.Duration
	if total <= 0 {
		if n > 0 && (!(wave.Step > 0) || math.IsInf(wave.Step, 0)) {
			return nil, apperrors.NewFormatError(
				fmt.Sprintf("ibw: sample step %g cannot give a time axis", wave.Step), nil).
				WithContext("file", filepath.Base(path))
		}
		total = float64(n) * wave.Step
	}

	return &Waveform{
		filename:  filepath.Base(path),
		info:      info,
		injection: injection,
		x:         Linspace(0, total, n),
		y:         wave.Data,
	}, nil
}

// Linspace returns n evenly spaced samples over [start, stop), the stop
// value excluded
func Linspace(start, stop float64, n int) []float64 {
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	step := (stop - start) / float64(n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

// Filename returns the base name of the sweep file
func (w *Waveform) Filename() string { return w.filename }

// Info returns the filename metadata
func (w *Waveform) Info() FileInfo { return w.info }

// Injection returns the injected current in amperes
func (w *Waveform) Injection() float64 { return w.injection }

// Samples returns the number of samples
func (w *Waveform) Samples() int { return len(w.y) }

// Duration returns the time of the last sample, or 0 for an empty sweep
func (w *Waveform) Duration() float64 {
	if len(w.x) == 0 {
		return 0
	}
	return w.x[len(w.x)-1]
}

// Time returns a copy of the time axis
func (w *Waveform) Time() []float64 {
	return append([]float64(nil), w.x...)
}

// Amplitude returns a copy of the amplitude samples
func (w *Waveform) Amplitude() []float64 {
	return append([]float64(nil), w.y...)
}

// View exposes the samples without copying. Callers must not modify them.
func (w *Waveform) View() (x, y []float64) {
	return w.x, w.y
}
