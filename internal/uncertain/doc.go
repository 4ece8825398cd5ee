// Package uncertain provides a scalar measurement carrying its standard
// deviation, with error-propagating arithmetic and inverse-variance
// averaging.
//
// Every statistical estimator in the feature pipeline returns a Value. The
// deviation is propagated under an independence assumption:
//
//	dev(a ± b) = sqrt(dev(a)² + dev(b)²)
//
// # Significance
//
// A Value is considered significant ("true") when it lies more than three
// standard deviations away from zero. This is the Gaussian 3σ convention used
// throughout the electrophysiology scoring code; for normally distributed
// estimates it corresponds to a two-sided false-positive rate of about 0.27%.
// Positive and Negative apply the same test in one direction.
//
// # Averaging
//
// Average combines estimates with inverse-variance weights. Inputs with a zero
// or NaN deviation cannot be weighted and make the result NaN±NaN; callers
// that prefer an explicit failure use AverageChecked.
package uncertain
