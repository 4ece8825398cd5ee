package features

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"ivfeatures/internal/uncertain"
)

// Curve is a contiguous window of a sweep
type Curve struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
}

// Len returns the number of samples in the window
func (c Curve) Len() int { return len(c.Y) }

func (c Curve) clone() Curve {
	return Curve{X: append([]float64(nil), c.X...), Y: append([]float64(nil), c.Y...)}
}

// FindBaseline estimates the resting potential from the samples outside
// [before, after], ignoring values beyond the 5th–95th percentile band
func FindBaseline(x, y []float64, before, after float64) uncertain.Value {
	var what []float64
	for i, v := range x {
		if v < before || v > after {
			what = append(what, y[i])
		}
	}
	if len(what) == 0 {
		return uncertain.NaN()
	}

	lo, hi := Percentile(what, 5), Percentile(what, 95)
	return uncertain.MeanStd(within(what, lo, hi))
}

// FindSteadyState estimates the plateau inside (after, before) from the
// values at or below the cutoff percentile
func FindSteadyState(x, y []float64, after, before, cutoffPercentile float64) uncertain.Value {
	data := gather(y, selectRange(x, after, before))
	if len(data) == 0 {
		return uncertain.NaN()
	}

	cutoff := Percentile(data, cutoffPercentile)
	cut := make([]float64, 0, len(data))
	for _, v := range data {
		if v <= cutoff {
			cut = append(cut, v)
		}
	}
	return uncertain.MeanStd(cut)
}

// FindFallingCurve locates the relaxation that follows the step in
// injected current.
//
// The steepest point of the smoothed first difference inside
// (after, before) is the provisional end. The start walks back while the
// trace keeps rising backwards. The end then advances in window/2 steps over
// the smoothed trace while the next window still holds a lower value. The
// returned curve excludes both end points.
func FindFallingCurve(x, y []float64, window, smoothing int, after, before float64) Curve {
	n := len(y)
	if n < 3 || window < 2 {
		return Curve{}
	}

	// the difference y[i+1]−y[i] is placed at x[i+1]
	d := Smooth(Diff(y), smoothing)
	dx := x[1:]

	sel := selectRange(dx, after, before)
	if len(sel) == 0 {
		return Curve{}
	}
	pos := floats.MinIdx(gather(d, sel))
	start := sel[pos]
	end := start

	for start > 0 && y[start-1] > y[start] && x[start] > after {
		start--
	}

	sm := Smooth(y, smoothing)
	smallest := sm[end]
	for end+window < n && x[end+window] < before && floats.Min(sm[end:end+window]) < smallest {
		smallest = sm[end]
		end += window / 2
	}

	if start+1 >= end {
		return Curve{}
	}
	return Curve{X: x[start+1 : end], Y: y[start+1 : end]}.clone()
}

// MinFitSamples is the shortest falling curve that is fitted
const MinFitSamples = 5

// FitFallingCurve fits an exponential to the falling curve measured from
// the baseline. A hyperpolarizing response uses the charging form, any
// other response the simple decay. Curves shorter than MinFitSamples give
// NaN parameters and ModelNone.
func FitFallingCurve(c Curve, baseline, steady uncertain.Value, maxIter int) FitResult {
	if c.Len() < MinFitSamples {
		return FitResult{Function: ModelNone, Amp: uncertain.NaN(), Tau: uncertain.NaN()}
	}

	model := ModelSimpleExp
	if steady.Sub(baseline).Negative() {
		model = ModelNegativeExp
	}

	y := make([]float64, c.Len())
	amp0 := 0.0
	for i, v := range c.Y {
		y[i] = v - baseline.X
		if math.Abs(y[i]) > math.Abs(amp0) {
			amp0 = y[i]
		}
	}
	tau0 := PeakToPeak(c.X)

	return FitExponential(model, c.X, y, amp0, tau0, maxIter)
}

// FindRectification measures how far the bottom of the falling curve
// overshoots the steady state. The bottom is averaged over windowLen
// samples ending half a window past the minimum.
func FindRectification(c Curve, steady uncertain.Value, windowLen int) uncertain.Value {
	size := c.Len()
	if windowLen < 1 || size < windowLen+1 {
		return uncertain.NaN()
	}

	pos := floats.MinIdx(c.Y)
	end := pos + windowLen/2
	if end > size-1 {
		end = size - 1
	}
	lo := end - windowLen + 1
	if lo < 0 {
		lo = 0
	}

	bottom := uncertain.MeanStd(c.Y[lo : end+1])
	return steady.Sub(bottom)
}

// FindSpikes returns the detected peaks whose amplitude exceeds minHeight
func FindSpikes(y []float64, low, high, minHeight float64) []int {
	var spikes []int
	for _, k := range DetectPeaks(y, low, high) {
		if y[k] > minHeight {
			spikes = append(spikes, k)
		}
	}
	return spikes
}

// MeanISI is the mean inter-spike interval. Two spikes give their exact
// distance and fewer give the depolarization interval, both with the
// nominal deviation.
func MeanISI(times []float64, depolarization, nominalDev float64) uncertain.Value {
	switch {
	case len(times) > 2:
		return uncertain.MeanStd(Diff(times))
	case len(times) == 2:
		return uncertain.New(times[1]-times[0], nominalDev)
	default:
		return uncertain.New(depolarization, nominalDev)
	}
}

// ISISpread is the peak-to-peak range of the inter-spike intervals, NaN with
// fewer than three spikes
func ISISpread(times []float64) float64 {
	if len(times) < 3 {
		return math.NaN()
	}
	return PeakToPeak(Diff(times))
}

// SpikeLatency is the time of the first spike, or duration without spikes
func SpikeLatency(times []float64, duration float64) float64 {
	if len(times) == 0 {
		return duration
	}
	return times[0]
}

// SpikeWidths measures each spike at half height between its peak and the
// steady state. The crossing on each side is the average of the last sample
// above and the first sample below the threshold.
func SpikeWidths(x, y []float64, spikes []int, steady float64) []float64 {
	n := len(y)
	widths := make([]float64, len(spikes))
	for i, k := range spikes {
		if k < 1 || k > n-2 {
			widths[i] = math.NaN()
			continue
		}
		half := (y[k]-steady)/2 + steady

		beg, end := k, k
		for beg > 1 && y[beg-1] > half {
			beg--
		}
		for end+2 < n && y[end+1] > half {
			end++
		}
		widths[i] = (x[end] + x[end+1] - x[beg] - x[beg-1]) / 2
	}
	return widths
}

// SpikeAHPs measures the after-hyperpolarization of each spike as the
// minimum after the peak minus the minimum before it. Both minima are taken
// within the tighter of the midpoints to the neighbouring spikes and
// width·multiplier around the peak. An empty side gives NaN.
func SpikeAHPs(x, y []float64, spikes []int, widths []float64, multiplier float64) []float64 {
	ahps := make([]float64, len(spikes))
	for i, k := range spikes {
		xi := x[k]
		reach := widths[i] * multiplier

		beg := xi - reach
		if i > 0 {
			beg = math.Max(beg, (x[spikes[i-1]]+xi)/2)
		}
		end := xi + reach
		if i < len(spikes)-1 {
			end = math.Min(end, (xi+x[spikes[i+1]])/2)
		}

		left, right := math.Inf(1), math.Inf(1)
		for j, v := range x {
			switch {
			case v >= beg && v < xi:
				left = math.Min(left, y[j])
			case v > xi && v <= end:
				right = math.Min(right, y[j])
			}
		}
		if math.IsInf(left, 1) || math.IsInf(right, 1) {
			ahps[i] = math.NaN()
			continue
		}
		ahps[i] = right - left
	}
	return ahps
}

// ChargingCurveHalfHeight is the median amplitude between the start of the
// steady-state window and the first spike, NaN without spikes
func ChargingCurveHalfHeight(x, y []float64, steadyAfter float64, times []float64) float64 {
	if len(times) == 0 {
		return math.NaN()
	}
	what := gather(y, selectRange(x, steadyAfter, times[0]))
	if len(what) == 0 {
		return math.NaN()
	}
	return Median(what)
}
