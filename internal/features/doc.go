// Package features extracts electrophysiological features from a single
// current-clamp sweep.
//
// The estimators are plain functions over time and amplitude slices:
//
//   - FindBaseline and FindSteadyState average percentile-trimmed windows
//   - DetectPeaks and FindSpikes locate action potentials
//   - FindFallingCurve and FitFallingCurve isolate and fit the membrane
//     relaxation after the current step
//   - FindRectification, SpikeWidths, SpikeAHPs and the ISI helpers measure
//     the remaining shape statistics
//
// Sweep wraps a waveform with a Params value and memoizes each feature the
// first time it is read. Features that lack data (no spikes, a window that
// is too short) are NaN or a documented fallback rather than errors, so a
// batch never stops on a quiet sweep.
//
// Example usage:
//
//	sweep := features.NewSweep(wave, features.DefaultParams(), logger)
//	fmt.Println(sweep.Response(), sweep.SpikeCount())
//	fit := sweep.FallingCurveFit()
package features
