package features

import (
	"log/slog"
	"sync"

	"ivfeatures/internal/uncertain"
	"ivfeatures/internal/waveform"
)

// lazy holds one memoized feature. The first call to get computes it;
// concurrent callers wait for that computation.
type lazy[T any] struct {
	once sync.Once
	v    T
}

func (l *lazy[T]) get(compute func() T) T {
	l.once.Do(func() { l.v = compute() })
	return l.v
}

// Sweep is a waveform paired with the analysis parameters. Each feature is
// computed at most once per Sweep and is safe for concurrent use. Changing
// parameters means building a new Sweep.
type Sweep struct {
	wave   *waveform.Waveform
	params Params
	logger *slog.Logger
	x, y   []float64

	baseline      lazy[uncertain.Value]
	steady        lazy[uncertain.Value]
	response      lazy[uncertain.Value]
	spikes        lazy[[]int]
	spikeTimes    lazy[[]float64]
	spikeHeights  lazy[[]float64]
	fallingCurve  lazy[Curve]
	fit           lazy[FitResult]
	rectification lazy[uncertain.Value]
	meanISI       lazy[uncertain.Value]
	isiSpread     lazy[float64]
	latency       lazy[float64]
	meanHeight    lazy[uncertain.Value]
	widths        lazy[[]float64]
	ahps          lazy[[]float64]
	halfHeight    lazy[float64]
}

// NewSweep creates a sweep over w analysed with params
func NewSweep(w *waveform.Waveform, params Params, logger *slog.Logger) *Sweep {
	if logger == nil {
		logger = slog.Default()
	}
	x, y := w.View()
	return &Sweep{
		wave:   w,
		params: params,
		logger: logger.With("component", "features", "file", w.Filename()),
		x:      x,
		y:      y,
	}
}

// Waveform returns the underlying recording
func (s *Sweep) Waveform() *waveform.Waveform { return s.wave }

// Params returns the analysis parameters
func (s *Sweep) Params() Params { return s.params }

// Filename returns the sweep file name
func (s *Sweep) Filename() string { return s.wave.Filename() }

// Injection returns the injected current in amperes
func (s *Sweep) Injection() float64 { return s.wave.Injection() }

// Duration is the time of the last sample
func (s *Sweep) Duration() float64 { return s.wave.Duration() }

// DepolarizationInterval is the length of the steady-state window
func (s *Sweep) DepolarizationInterval() float64 { return s.params.DepolarizationInterval() }

// Baseline is the resting potential outside the injection window
func (s *Sweep) Baseline() uncertain.Value {
	return s.baseline.get(func() uncertain.Value {
		return FindBaseline(s.x, s.y, s.params.BaselineBefore, s.params.BaselineAfter)
	})
}

// Steady is the plateau potential late in the injection
func (s *Sweep) Steady() uncertain.Value {
	return s.steady.get(func() uncertain.Value {
		return FindSteadyState(s.x, s.y, s.params.SteadyAfter, s.params.SteadyBefore, s.params.SteadyCutoff)
	})
}

// Response is steady state minus baseline
func (s *Sweep) Response() uncertain.Value {
	return s.response.get(func() uncertain.Value {
		return s.Steady().Sub(s.Baseline())
	})
}

func (s *Sweep) spikeIndices() []int {
	return s.spikes.get(func() []int {
		return FindSpikes(s.y, s.params.PeakLow, s.params.PeakHigh, s.params.SpikeMinHeight)
	})
}

// SpikeIndices returns the sample indices of the detected spikes
func (s *Sweep) SpikeIndices() []int {
	return append([]int(nil), s.spikeIndices()...)
}

// SpikeCount returns the number of detected spikes
func (s *Sweep) SpikeCount() int { return len(s.spikeIndices()) }

func (s *Sweep) spikeTimeView() []float64 {
	return s.spikeTimes.get(func() []float64 {
		idx := s.spikeIndices()
		out := make([]float64, len(idx))
		for i, k := range idx {
			out[i] = s.x[k]
		}
		return out
	})
}

// SpikeTimes returns the spike times in seconds
func (s *Sweep) SpikeTimes() []float64 {
	return append([]float64(nil), s.spikeTimeView()...)
}

func (s *Sweep) spikeHeightView() []float64 {
	return s.spikeHeights.get(func() []float64 {
		return gather(s.y, s.spikeIndices())
	})
}

// SpikeHeights returns the peak amplitude of every spike
func (s *Sweep) SpikeHeights() []float64 {
	return append([]float64(nil), s.spikeHeightView()...)
}

// FallingCurve returns the relaxation window following the current step
func (s *Sweep) FallingCurve() Curve {
	return s.fallingCurveView().clone()
}

func (s *Sweep) fallingCurveView() Curve {
	return s.fallingCurve.get(func() Curve {
		// the falling curve starts where the baseline window ends
		return FindFallingCurve(s.x, s.y, s.params.FallingCurveWindow, s.params.SmoothingWindow,
			s.params.BaselineBefore, s.params.SteadyBefore)
	})
}

// FallingCurveFit returns the exponential fitted to the falling curve. A
// fit that did not converge has NaN parameters and a non-nil Err.
func (s *Sweep) FallingCurveFit() FitResult {
	return s.fit.get(func() FitResult {
		res := FitFallingCurve(s.fallingCurveView(), s.Baseline(), s.Steady(), s.params.FitMaxIterations)
		if res.Err != nil {
			s.logger.Warn("falling curve fit failed",
				slog.String("model", res.Function.String()),
				slog.Int("samples", s.fallingCurveView().Len()),
				slog.String("error", res.Err.Error()))
		}
		return res
	})
}

// Rectification is steady state minus the bottom of the falling curve
func (s *Sweep) Rectification() uncertain.Value {
	return s.rectification.get(func() uncertain.Value {
		return FindRectification(s.fallingCurveView(), s.Steady(), s.params.RectificationWindow)
	})
}

// MeanISI is the mean inter-spike interval
func (s *Sweep) MeanISI() uncertain.Value {
	return s.meanISI.get(func() uncertain.Value {
		return MeanISI(s.spikeTimeView(), s.params.DepolarizationInterval(), s.params.NominalISIDeviation)
	})
}

// ISISpread is the range of inter-spike intervals, NaN below three spikes
func (s *Sweep) ISISpread() float64 {
	return s.isiSpread.get(func() float64 {
		return ISISpread(s.spikeTimeView())
	})
}

// SpikeLatency is the first spike time, or the sweep duration without spikes
func (s *Sweep) SpikeLatency() float64 {
	return s.latency.get(func() float64 {
		return SpikeLatency(s.spikeTimeView(), s.Duration())
	})
}

// MeanSpikeHeight is the mean ± stdev of this sweep's spike heights
func (s *Sweep) MeanSpikeHeight() uncertain.Value {
	return s.meanHeight.get(func() uncertain.Value {
		return uncertain.MeanStd(s.spikeHeightView())
	})
}

func (s *Sweep) spikeWidthView() []float64 {
	return s.widths.get(func() []float64 {
		return SpikeWidths(s.x, s.y, s.spikeIndices(), s.Steady().X)
	})
}

// SpikeWidth returns the half-height width of every spike
func (s *Sweep) SpikeWidth() []float64 {
	return append([]float64(nil), s.spikeWidthView()...)
}

func (s *Sweep) spikeAHPView() []float64 {
	return s.ahps.get(func() []float64 {
		return SpikeAHPs(s.x, s.y, s.spikeIndices(), s.spikeWidthView(), s.params.SpikeAsymmetryMultiplier)
	})
}

// SpikeAHP returns the after-hyperpolarization depth of every spike
func (s *Sweep) SpikeAHP() []float64 {
	return append([]float64(nil), s.spikeAHPView()...)
}

// ChargingCurveHalfHeight is the median potential before the first spike
func (s *Sweep) ChargingCurveHalfHeight() float64 {
	return s.halfHeight.get(func() float64 {
		return ChargingCurveHalfHeight(s.x, s.y, s.params.SteadyAfter, s.spikeTimeView())
	})
}

// Precompute evaluates every feature so later reads only hit the cache
func (s *Sweep) Precompute() {
	s.Response()
	s.FallingCurveFit()
	s.Rectification()
	s.MeanISI()
	s.ISISpread()
	s.SpikeLatency()
	s.MeanSpikeHeight()
	s.spikeAHPView()
	s.ChargingCurveHalfHeight()
}
