package features

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	apperrors "ivfeatures/internal/errors"
)

// Params fixes the windows and thresholds used by every estimator. Times are
// in seconds, windows in samples. A Params value is shared read-only by all
// sweeps of a measurement.
type Params struct {
	// Baseline samples lie outside [BaselineBefore, BaselineAfter]
	BaselineBefore float64 `yaml:"baseline_before" json:"baseline_before" validate:"gte=0"`
	BaselineAfter  float64 `yaml:"baseline_after" json:"baseline_after" validate:"gtfield=BaselineBefore"`

	// Steady state samples lie inside (SteadyAfter, SteadyBefore)
	SteadyAfter  float64 `yaml:"steady_after" json:"steady_after" validate:"gte=0"`
	SteadyBefore float64 `yaml:"steady_before" json:"steady_before" validate:"gtfield=SteadyAfter"`
	SteadyCutoff float64 `yaml:"steady_cutoff" json:"steady_cutoff" validate:"gt=0,lte=100"`

	FallingCurveWindow       int     `yaml:"falling_curve_window" json:"falling_curve_window" validate:"gte=2"`
	RectificationWindow      int     `yaml:"rectification_window" json:"rectification_window" validate:"gte=1"`
	SpikeAsymmetryMultiplier float64 `yaml:"spike_asymmetry_multiplier" json:"spike_asymmetry_multiplier" validate:"gt=0"`
	SmoothingWindow          int     `yaml:"smoothing_window" json:"smoothing_window" validate:"gte=3"`

	// Peak prominence thresholds as fractions of the trace range
	PeakLow        float64 `yaml:"peak_low" json:"peak_low" validate:"gte=0,lte=1"`
	PeakHigh       float64 `yaml:"peak_high" json:"peak_high" validate:"gte=0,lte=1"`
	SpikeMinHeight float64 `yaml:"spike_min_height" json:"spike_min_height"`

	NominalISIDeviation float64 `yaml:"nominal_isi_deviation" json:"nominal_isi_deviation" validate:"gt=0"`
	FitMaxIterations    int     `yaml:"fit_max_iterations" json:"fit_max_iterations" validate:"gte=1"`
}

// DefaultParams returns the standard analysis parameters
func DefaultParams() Params {
	return Params{
		BaselineBefore:           0.2,
		BaselineAfter:            0.75,
		SteadyAfter:              0.25,
		SteadyBefore:             0.6,
		SteadyCutoff:             80,
		FallingCurveWindow:       20,
		RectificationWindow:      11,
		SpikeAsymmetryMultiplier: 10,
		SmoothingWindow:          11,
		PeakLow:                  0.75,
		PeakHigh:                 0.20,
		SpikeMinHeight:           0.0,
		NominalISIDeviation:      0.001,
		FitMaxIterations:         600,
	}
}

var paramsValidator = validator.New()

// Validate checks field ranges and the ordering of the time windows
func (p Params) Validate() error {
	if err := paramsValidator.Struct(p); err != nil {
		return apperrors.NewConfigError(fmt.Sprintf("invalid analysis parameters: %v", err), err)
	}
	return nil
}

// DepolarizationInterval is the length of the steady-state window
func (p Params) DepolarizationInterval() float64 {
	return p.SteadyBefore - p.SteadyAfter
}
