package features

import (
	"gonum.org/v1/gonum/floats"
)

// DetectPeaks returns the indices of the prominent local maxima of y in
// increasing order.
//
// A flat run of equal samples counts as one maximum located at its middle.
// Each maximum has two bases: the lowest sample between it and the nearest
// strictly higher sample on that side, or the end of the trace. A maximum is
// kept when it rises at least low·range above the lower base and at least
// high·range above the higher base, where range is max(y) − min(y).
func DetectPeaks(y []float64, low, high float64) []int {
	n := len(y)
	if n < 3 {
		return nil
	}

	span := floats.Max(y) - floats.Min(y)
	if span <= 0 {
		return nil
	}

	var peaks []int
	for i := 1; i < n-1; i++ {
		if !(y[i] > y[i-1]) {
			continue
		}
		// extend over a plateau
		j := i
		for j+1 < n && y[j+1] == y[i] {
			j++
		}
		if j+1 >= n || y[j+1] > y[i] {
			i = j
			continue
		}

		h := y[i]
		left := baseLeft(y, i, h)
		right := baseRight(y, j, h)
		lo, hi := left, right
		if lo > hi {
			lo, hi = hi, lo
		}

		if h-lo >= low*span && h-hi >= high*span {
			peaks = append(peaks, (i+j)/2)
		}
		i = j
	}
	return peaks
}

// baseLeft is the minimum of y[k..start) walking left until a sample
// higher than h
func baseLeft(y []float64, start int, h float64) float64 {
	base := h
	for k := start - 1; k >= 0 && y[k] <= h; k-- {
		if y[k] < base {
			base = y[k]
		}
	}
	return base
}

func baseRight(y []float64, end int, h float64) float64 {
	base := h
	for k := end + 1; k < len(y) && y[k] <= h; k++ {
		if y[k] < base {
			base = y[k]
		}
	}
	return base
}
