// Package measurement groups the sweeps of a recording session and
// aggregates their features.
//
// A Collection is ordered by sweep filename. Every feature name maps to one
// Strategy in a fixed accessor table:
//
//	injection, spike_count, ...       StackArray       one number per sweep
//	filename, falling_curve_function  StackStrings     one string per sweep
//	baseline, response, ...           UncertainArray   one value±dev per sweep
//	spike_width, spike_ahp, ...       PerSpikeArray    ragged per-spike arrays
//	mean_baseline, ...                MeanOfUncertain  inverse-variance mean
//	mean_spike_height, ...            PooledSpikeMean  mean±std of all spikes
//
// Spike shape means pool the raw per-spike samples of every sweep rather
// than averaging per-sweep means.
//
// Load and LoadBatch turn session directories into Measurements, skipping
// malformed files unless Options.Strict is set.
package measurement
