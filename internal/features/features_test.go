package features

import (
	"encoding/json"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "ivfeatures/internal/errors"
	"ivfeatures/internal/uncertain"
	"ivfeatures/internal/waveform"
)

const (
	testSamples  = 9000
	testDuration = 0.9
	testStep     = testDuration / testSamples
)

// synthetic builds a sweep sampled at 10 kHz over 0.9 s from a function of
// the sample index and time
func synthetic(t testing.TB, f func(i int, x float64) float64) *Sweep {
	t.Helper()
	x := waveform.Linspace(0, testDuration, testSamples)
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = f(i, v)
	}
	info := waveform.FileInfo{Group: "G", Cell: "C", Experiment: 1, Protocol: waveform.ProtocolIV, Number: 1, Extra: "none"}
	w, err := waveform.New("G_C_1_1_1_none.ibw", info, -5e-10, x, y)
	require.NoError(t, err)
	return NewSweep(w, DefaultParams(), nil)
}

func triangle(i, center, halfBase int, height float64) float64 {
	d := math.Abs(float64(i - center))
	return height * math.Max(0, 1-d/float64(halfBase))
}

// spiking has a -40 mV plateau between 0.2 s and 0.6 s carrying three
// triangular spikes peaking at +20 mV
func spiking(t testing.TB) *Sweep {
	return synthetic(t, func(i int, x float64) float64 {
		if i < 2000 || i >= 6000 {
			return -0.07
		}
		v := -0.04
		for _, c := range []int{3000, 4000, 5000} {
			v += triangle(i, c, 10, 0.06)
		}
		return v
	})
}

func TestFlatWave(t *testing.T) {
	s := synthetic(t, func(int, float64) float64 { return -0.065 })

	assert.Equal(t, 0, s.SpikeCount())
	assert.InDelta(t, 0, s.Response().X, 1e-12)
	assert.InDelta(t, -0.065, s.Baseline().X, 1e-12)
	assert.True(t, s.Rectification().IsNaN())

	fit := s.FallingCurveFit()
	assert.Equal(t, ModelNone, fit.Function)
	assert.True(t, fit.Amp.IsNaN())
	assert.True(t, fit.Tau.IsNaN())
	assert.NoError(t, fit.Err)

	isi := s.MeanISI()
	assert.InDelta(t, 0.35, isi.X, 1e-12)
	assert.Equal(t, 0.001, isi.Dev)
	assert.True(t, math.IsNaN(s.ISISpread()))
	assert.Equal(t, s.Duration(), s.SpikeLatency())
	assert.True(t, math.IsNaN(s.ChargingCurveHalfHeight()))
	assert.True(t, s.MeanSpikeHeight().IsNaN())
	assert.Empty(t, s.SpikeWidth())
	assert.Empty(t, s.SpikeAHP())

	_, err := json.Marshal(s.Features())
	require.NoError(t, err)
}

func TestExponentialRecoveryThroughPipeline(t *testing.T) {
	const (
		amp = -0.01
		tau = 0.02
	)
	s := synthetic(t, func(_ int, x float64) float64 {
		if x > 0.2 && x < 0.6 {
			return -0.07 + amp*(1-math.Exp(-(x-0.2)/tau))
		}
		return -0.07
	})

	assert.True(t, s.Response().Negative())

	curve := s.FallingCurve()
	require.GreaterOrEqual(t, curve.Len(), MinFitSamples)
	assert.InDelta(t, 0.2, curve.X[0], 0.005)

	fit := s.FallingCurveFit()
	require.NoError(t, fit.Err)
	assert.Equal(t, ModelNegativeExp, fit.Function)
	assert.InEpsilon(t, amp, fit.Amp.X, 0.05)
	assert.InEpsilon(t, tau, fit.Tau.X, 0.05)

	f := s.Features()
	assert.Equal(t, "negative_exp", f.FallingCurveFunction)
	assert.Empty(t, f.FitError)
}

func TestFitExponential(t *testing.T) {
	tests := []struct {
		name       string
		model      Model
		amp, tau   float64
		amp0, tau0 float64
	}{
		{"simple decay", ModelSimpleExp, 0.5, 0.01, 0.4, 0.05},
		{"charging", ModelNegativeExp, -0.012, 0.03, -0.01, 0.1},
		{"positive charging", ModelNegativeExp, 0.008, 0.005, 0.01, 0.02},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := waveform.Linspace(0.1, 0.2, 500)
			y := make([]float64, len(x))
			for i, v := range x {
				y[i], _, _ = tt.model.eval(tt.amp, tt.tau, v-x[0])
			}

			res := FitExponential(tt.model, x, y, tt.amp0, tt.tau0, 600)
			require.NoError(t, res.Err)
			assert.InEpsilon(t, tt.amp, res.Amp.X, 1e-3)
			assert.InEpsilon(t, tt.tau, res.Tau.X, 1e-3)
			assert.False(t, math.IsNaN(res.Amp.Dev))
		})
	}
}

func TestFitFallingCurveModelSelection(t *testing.T) {
	baseline := uncertain.New(-0.07, 1e-4)
	tests := []struct {
		name   string
		steady uncertain.Value
		model  Model
		amp    float64
	}{
		{"depolarizing step decays", uncertain.New(-0.06, 1e-4), ModelSimpleExp, 0.01},
		{"hyperpolarizing step charges", uncertain.New(-0.08, 1e-4), ModelNegativeExp, -0.01},
		{"insignificant response decays", uncertain.New(-0.0701, 1e-3), ModelSimpleExp, 0.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := waveform.Linspace(0.1, 0.2, 500)
			c := Curve{X: x, Y: make([]float64, len(x))}
			for i, v := range x {
				f, _, _ := tt.model.eval(tt.amp, 0.02, v-x[0])
				c.Y[i] = baseline.X + f
			}

			res := FitFallingCurve(c, baseline, tt.steady, 600)
			require.NoError(t, res.Err)
			assert.Equal(t, tt.model, res.Function)
			assert.InEpsilon(t, tt.amp, res.Amp.X, 1e-2)
			assert.InEpsilon(t, 0.02, res.Tau.X, 1e-2)
		})
	}
}

func TestFitExponentialFailures(t *testing.T) {
	t.Run("too few samples", func(t *testing.T) {
		res := FitExponential(ModelSimpleExp, []float64{0, 1}, []float64{1, 0.5}, 1, 1, 10)
		assert.True(t, res.Amp.IsNaN())
		assert.True(t, apperrors.IsType(res.Err, apperrors.ErrTypeInsufficientData))
	})

	t.Run("non finite start", func(t *testing.T) {
		x := []float64{0, 1, 2, 3, 4}
		y := []float64{1, 0.5, 0.25, 0.125, 0.06}
		res := FitExponential(ModelSimpleExp, x, y, 1, 0, 10)
		assert.True(t, res.Tau.IsNaN())
		assert.True(t, apperrors.IsType(res.Err, apperrors.ErrTypeFitDivergence))
	})
}

func TestFitFallingCurveShortWindow(t *testing.T) {
	c := Curve{X: []float64{0, 1, 2, 3}, Y: []float64{4, 3, 2, 1}}
	res := FitFallingCurve(c, uncertain.New(0, 0.1), uncertain.New(-1, 0.1), 100)
	assert.Equal(t, ModelNone, res.Function)
	assert.True(t, res.Amp.IsNaN())
	assert.NoError(t, res.Err)
}

func TestTriangularSpikeWidth(t *testing.T) {
	const (
		center   = 500
		halfBase = 50
		dt       = 1e-4
	)
	x := waveform.Linspace(0, 0.1, 1000)
	y := make([]float64, len(x))
	for i := range y {
		y[i] = -0.07 + triangle(i, center, halfBase, 0.1)
	}

	spikes := FindSpikes(y, 0.75, 0.20, 0)
	require.Equal(t, []int{center}, spikes)

	// half height above -70 mV is crossed halfBase/2 samples from the peak
	widths := SpikeWidths(x, y, spikes, -0.07)
	require.Len(t, widths, 1)
	assert.InDelta(t, halfBase*dt, widths[0], dt+1e-12)
}

func TestSpikeStatistics(t *testing.T) {
	s := spiking(t)

	require.Equal(t, 3, s.SpikeCount())
	times := s.SpikeTimes()
	assert.InDelta(t, 0.3, times[0], 1e-9)
	assert.InDelta(t, 0.4, times[1], 1e-9)
	assert.InDelta(t, 0.5, times[2], 1e-9)

	assert.InDelta(t, -0.04, s.Steady().X, 1e-12)
	assert.InDelta(t, 0.1, s.MeanISI().X, 1e-9)
	assert.InDelta(t, 0, s.ISISpread(), 1e-9)
	assert.InDelta(t, 0.3, s.SpikeLatency(), 1e-9)
	assert.InDelta(t, -0.04, s.ChargingCurveHalfHeight(), 1e-12)

	height := s.MeanSpikeHeight()
	assert.InDelta(t, 0.02, height.X, 1e-12)
	for _, h := range s.SpikeHeights() {
		assert.InDelta(t, 0.02, h, 1e-12)
	}

	for _, w := range s.SpikeWidth() {
		assert.InDelta(t, 10*testStep, w, testStep+1e-12)
	}
	for _, ahp := range s.SpikeAHP() {
		assert.InDelta(t, 0, ahp, 1e-12)
	}
}

func TestMeanISI(t *testing.T) {
	tests := []struct {
		name     string
		times    []float64
		expected uncertain.Value
	}{
		{"no spikes", nil, uncertain.New(0.35, 0.001)},
		{"one spike", []float64{0.3}, uncertain.New(0.35, 0.001)},
		{"two spikes", []float64{0.3, 0.42}, uncertain.New(0.12, 0.001)},
		{"three spikes", []float64{0.3, 0.4, 0.6}, uncertain.New(0.15, math.Sqrt(0.005))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MeanISI(tt.times, 0.35, 0.001)
			assert.InDelta(t, tt.expected.X, got.X, 1e-12)
			assert.InDelta(t, tt.expected.Dev, got.Dev, 1e-12)
		})
	}

	assert.InDelta(t, 0.1, ISISpread([]float64{0.3, 0.4, 0.6}), 1e-12)
	assert.True(t, math.IsNaN(ISISpread([]float64{0.3, 0.4})))
	assert.Equal(t, 0.9, SpikeLatency(nil, 0.9))
}

func TestSpikeAHPs(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	y := []float64{0, 0, 5, -1, 0, 0, 6, -2, 0, 0}

	ahps := SpikeAHPs(x, y, []int{2, 6}, []float64{1, 1}, 10)
	assert.Equal(t, []float64{-1, -2}, ahps)

	nan := SpikeAHPs(x, y, []int{2}, []float64{math.NaN()}, 10)
	assert.True(t, math.IsNaN(nan[0]))
}

func TestFindRectification(t *testing.T) {
	steady := uncertain.New(-0.08, 0.001)

	short := Curve{X: make([]float64, 11), Y: make([]float64, 11)}
	assert.True(t, FindRectification(short, steady, 11).IsNaN())

	// a sag to -90 mV that settles at -80 mV
	c := Curve{}
	for i := 0; i < 40; i++ {
		c.X = append(c.X, float64(i))
		v := -0.08
		if i < 30 {
			v = -0.09
		}
		c.Y = append(c.Y, v)
	}
	r := FindRectification(c, steady, 11)
	assert.InDelta(t, 0.01, r.X, 1e-12)
	assert.InDelta(t, 0.001, r.Dev, 1e-12)
}

func TestFindBaselineAndSteady(t *testing.T) {
	x := waveform.Linspace(0, 1, 100)
	y := make([]float64, len(x))
	for i, v := range x {
		switch {
		case v > 0.25 && v < 0.6 && i%10 == 0:
			y[i] = 0
		case v > 0.25 && v < 0.6:
			y[i] = -0.05
		default:
			y[i] = -0.07
		}
	}
	y[0] = 1 // outlier outside the percentile band

	b := FindBaseline(x, y, 0.2, 0.75)
	assert.InDelta(t, -0.07, b.X, 1e-12)
	assert.InDelta(t, 0, b.Dev, 1e-12)

	// values above the 80th percentile are dropped
	s := FindSteadyState(x, y, 0.25, 0.6, 80)
	assert.InDelta(t, -0.05, s.X, 1e-12)

	assert.True(t, FindBaseline(nil, nil, 0.2, 0.75).IsNaN())
	assert.True(t, FindSteadyState(x, y, 2, 3, 80).IsNaN())
}

func TestPercentile(t *testing.T) {
	data := []float64{4, 1, 3, 2}
	assert.InDelta(t, 2.5, Percentile(data, 50), 1e-12)
	assert.InDelta(t, 1.15, Percentile(data, 5), 1e-12)
	assert.InDelta(t, 3.85, Percentile(data, 95), 1e-12)
	assert.Equal(t, 1.0, Percentile(data, 0))
	assert.Equal(t, 4.0, Percentile(data, 100))
	assert.True(t, math.IsNaN(Percentile(nil, 50)))
	assert.Equal(t, []float64{4, 1, 3, 2}, data, "input must not be reordered")
}

func TestWithinDropsOutliers(t *testing.T) {
	// out-of-band samples are removed, never saturated to the bounds
	assert.Equal(t, []float64{5, 3, 2}, within([]float64{1, 5, 3, 9, 2}, 2, 5))
	assert.Empty(t, within([]float64{1, 9}, 2, 5))
}

func TestSmooth(t *testing.T) {
	assert.InDeltaSlice(t, []float64{0, 0.5, 1, 0.5, 0}, hannKernel(5), 1e-12)
	assert.InDeltaSlice(t, []float64{0, 0.75, 0.75, 0}, hannKernel(4), 1e-12)

	flat := []float64{2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2}
	assert.InDeltaSlice(t, flat, Smooth(flat, 11), 1e-12)

	short := []float64{1, 5, 2}
	assert.Equal(t, short, Smooth(short, 11))

	// a linear ramp survives symmetric smoothing away from the edges
	ramp := make([]float64, 30)
	for i := range ramp {
		ramp[i] = float64(i)
	}
	sm := Smooth(ramp, 11)
	require.Len(t, sm, 30)
	for i := 5; i < 25; i++ {
		assert.InDelta(t, ramp[i], sm[i], 1e-9)
	}
}

func TestDetectPeaks(t *testing.T) {
	tests := []struct {
		name     string
		y        []float64
		expected []int
	}{
		{"flat", []float64{1, 1, 1, 1}, nil},
		{"single spike", []float64{0, 0, 10, 0, 0}, []int{2}},
		{"plateau midpoint", []float64{0, 10, 10, 10, 0}, []int{2}},
		{"small bump rejected", []float64{0, 10, 0, 1, 0.5, 0}, []int{1}},
		{"one sided rise too small", []float64{0, 10, 9, 9.5, 9, 9}, []int{1}},
		{"two spikes", []float64{0, 10, 0, 0, 10, 0}, []int{1, 4}},
		{"edge maxima ignored", []float64{10, 0, 0, 10}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectPeaks(tt.y, 0.75, 0.20))
		})
	}

	assert.Equal(t, []int{4}, FindSpikes([]float64{-1, -0.5, -1, -1, 0.5, -1}, 0.75, 0.2, 0))
}

func TestSweepConcurrentReads(t *testing.T) {
	s := spiking(t)

	var wg sync.WaitGroup
	results := make([]Features, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.Features()
		}(i)
	}
	wg.Wait()

	first, err := json.Marshal(results[0])
	require.NoError(t, err)
	for _, r := range results[1:] {
		got, err := json.Marshal(r)
		require.NoError(t, err)
		assert.JSONEq(t, string(first), string(got))
	}
}

func TestSweepReturnsCopies(t *testing.T) {
	s := spiking(t)

	idx := s.SpikeIndices()
	idx[0] = -1
	assert.NotEqual(t, -1, s.SpikeIndices()[0])

	times := s.SpikeTimes()
	times[0] = 42
	assert.NotEqual(t, 42.0, s.SpikeTimes()[0])
}

func TestParamsValidate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())

	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"baseline window inverted", func(p *Params) { p.BaselineAfter = 0.1 }},
		{"steady window inverted", func(p *Params) { p.SteadyBefore = 0.2 }},
		{"cutoff above 100", func(p *Params) { p.SteadyCutoff = 120 }},
		{"zero smoothing", func(p *Params) { p.SmoothingWindow = 0 }},
		{"peak fraction above 1", func(p *Params) { p.PeakLow = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
		})
	}
}

func BenchmarkSweepFeatures(b *testing.B) {
	x := waveform.Linspace(0, testDuration, testSamples)
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = -0.07
		if v > 0.2 && v < 0.6 {
			y[i] = -0.07 - 0.01*(1-math.Exp(-(v-0.2)/0.02))
		}
	}
	w, err := waveform.New("G_C_1_1_1_none.ibw", waveform.FileInfo{}, 0, x, y)
	require.NoError(b, err)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		NewSweep(w, DefaultParams(), nil).Precompute()
	}
}

func BenchmarkDetectPeaks(b *testing.B) {
	s := spiking(b)
	_, y := s.Waveform().View()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		DetectPeaks(y, 0.75, 0.20)
	}
}
