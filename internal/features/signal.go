package features

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
)

// Percentile returns the p-th percentile (0..100) with linear interpolation
// between closest ranks, rank = p/100·(n−1). This is numpy's default
// method; gonum's stat.Quantile interpolates differently.
func Percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	index := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Median is the 50th percentile
func Median(data []float64) float64 {
	return Percentile(data, 50)
}

// Diff returns the first difference y[i+1] − y[i]
func Diff(y []float64) []float64 {
	if len(y) < 2 {
		return nil
	}
	out := make([]float64, len(y)-1)
	for i := range out {
		out[i] = y[i+1] - y[i]
	}
	return out
}

// PeakToPeak returns max − min, NaN when empty
func PeakToPeak(data []float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}
	return floats.Max(data) - floats.Min(data)
}

// hannKernel returns the symmetric Hann window of length n (n >= 2)
func hannKernel(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return window.Hann(w)
}

// Smooth convolves y with a normalized Hann window of size samples.
// The signal is extended by reflection about its end samples and the result
// has the same length as y. Windows shorter than 3 or longer than the
// signal leave it unchanged.
func Smooth(y []float64, size int) []float64 {
	n := len(y)
	out := make([]float64, n)
	if size < 3 || n < size {
		copy(out, y)
		return out
	}

	w := hannKernel(size)
	norm := floats.Sum(w)
	half := (size - 1) / 2

	at := func(i int) float64 {
		// reflect without repeating the edge sample
		for i < 0 || i >= n {
			if i < 0 {
				i = -i
			}
			if i >= n {
				i = 2*(n-1) - i
			}
		}
		return y[i]
	}

	for i := range out {
		var acc float64
		for k, wk := range w {
			acc += wk * at(i-half+k)
		}
		out[i] = acc / norm
	}
	return out
}

// selectRange returns the indices with lo < x[i] < hi
func selectRange(x []float64, lo, hi float64) []int {
	var idx []int
	for i, v := range x {
		if v > lo && v < hi {
			idx = append(idx, i)
		}
	}
	return idx
}

func gather(y []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, k := range idx {
		out[i] = y[k]
	}
	return out
}

// within keeps the values inside [lo, hi] and drops the rest
func within(data []float64, lo, hi float64) []float64 {
	var out []float64
	for _, v := range data {
		if v >= lo && v <= hi {
			out = append(out, v)
		}
	}
	return out
}
