package measurement

import (
	"fmt"
	"sort"

	apperrors "ivfeatures/internal/errors"
	"ivfeatures/internal/features"
	"ivfeatures/internal/uncertain"
)

// Strategy says how a feature is gathered across the sweeps of a collection
type Strategy int

const (
	// StackArray stacks a per-sweep scalar into one array
	StackArray Strategy = iota
	// StackStrings stacks a per-sweep string
	StackStrings
	// UncertainArray stacks per-sweep uncertain values
	UncertainArray
	// PerSpikeArray keeps the ragged per-spike arrays of every sweep
	PerSpikeArray
	// MeanOfUncertain is the inverse-variance weighted mean of per-sweep values
	MeanOfUncertain
	// PooledSpikeMean concatenates per-spike arrays of all sweeps, then
	// takes mean ± stdev of the pooled samples
	PooledSpikeMean
)

// String returns the string representation of the strategy
func (s Strategy) String() string {
	switch s {
	case StackArray:
		return "stack_array"
	case StackStrings:
		return "stack_strings"
	case UncertainArray:
		return "uncertain_array"
	case PerSpikeArray:
		return "per_spike_array"
	case MeanOfUncertain:
		return "mean_of_uncertain"
	case PooledSpikeMean:
		return "pooled_spike_mean"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Result holds the output of one aggregation. Only the field matching
// Strategy is set.
type Result struct {
	Name     string               `json:"name"`
	Strategy string               `json:"strategy"`
	Floats   []uncertain.Number   `json:"floats,omitempty"`
	Strings  []string             `json:"strings,omitempty"`
	Values   []uncertain.Value    `json:"values,omitempty"`
	PerSpike [][]uncertain.Number `json:"per_spike,omitempty"`
	Mean     *uncertain.Value     `json:"mean,omitempty"`
}

// Aggregator gathers one feature over a collection
type Aggregator interface {
	Strategy() Strategy
	Aggregate(c *Collection) Result
}

type floatStack func(*features.Sweep) float64

func (floatStack) Strategy() Strategy { return StackArray }

func (f floatStack) floats(c *Collection) []float64 {
	out := make([]float64, len(c.sweeps))
	for i, s := range c.sweeps {
		out[i] = f(s)
	}
	return out
}

func (f floatStack) Aggregate(c *Collection) Result {
	return Result{Floats: uncertain.Numbers(f.floats(c))}
}

type stringStack func(*features.Sweep) string

func (stringStack) Strategy() Strategy { return StackStrings }

func (f stringStack) strings(c *Collection) []string {
	out := make([]string, len(c.sweeps))
	for i, s := range c.sweeps {
		out[i] = f(s)
	}
	return out
}

func (f stringStack) Aggregate(c *Collection) Result {
	return Result{Strings: f.strings(c)}
}

type valueStack func(*features.Sweep) uncertain.Value

func (valueStack) Strategy() Strategy { return UncertainArray }

func (f valueStack) values(c *Collection) []uncertain.Value {
	out := make([]uncertain.Value, len(c.sweeps))
	for i, s := range c.sweeps {
		out[i] = f(s)
	}
	return out
}

func (f valueStack) Aggregate(c *Collection) Result {
	return Result{Values: f.values(c)}
}

type spikeStack func(*features.Sweep) []float64

func (spikeStack) Strategy() Strategy { return PerSpikeArray }

func (f spikeStack) perSpike(c *Collection) [][]float64 {
	out := make([][]float64, len(c.sweeps))
	for i, s := range c.sweeps {
		out[i] = f(s)
	}
	return out
}

func (f spikeStack) Aggregate(c *Collection) Result {
	ragged := f.perSpike(c)
	out := make([][]uncertain.Number, len(ragged))
	for i, r := range ragged {
		out[i] = uncertain.Numbers(r)
	}
	return Result{PerSpike: out}
}

type weightedMean struct{ of valueStack }

func (weightedMean) Strategy() Strategy { return MeanOfUncertain }

func (m weightedMean) mean(c *Collection) uncertain.Value {
	return uncertain.Average(m.of.values(c))
}

func (m weightedMean) Aggregate(c *Collection) Result {
	v := m.mean(c)
	return Result{Mean: &v}
}

type pooledMean struct{ of spikeStack }

func (pooledMean) Strategy() Strategy { return PooledSpikeMean }

func (m pooledMean) mean(c *Collection) uncertain.Value {
	var pooled []float64
	for _, r := range m.of.perSpike(c) {
		pooled = append(pooled, r...)
	}
	return uncertain.MeanStd(pooled)
}

func (m pooledMean) Aggregate(c *Collection) Result {
	v := m.mean(c)
	return Result{Mean: &v}
}

// per-sweep uncertain values, also reachable through Values under names
// that the main table assigns to a pooled mean
var valueAccessors = map[string]valueStack{
	"baseline":                 (*features.Sweep).Baseline,
	"steady":                   (*features.Sweep).Steady,
	"response":                 (*features.Sweep).Response,
	"rectification":            (*features.Sweep).Rectification,
	"mean_isi":                 (*features.Sweep).MeanISI,
	"mean_spike_height":        (*features.Sweep).MeanSpikeHeight,
	"falling_curve_params_amp": func(s *features.Sweep) uncertain.Value { return s.FallingCurveFit().Amp },
	"falling_curve_params_tau": func(s *features.Sweep) uncertain.Value { return s.FallingCurveFit().Tau },
}

var spikeAccessors = map[string]spikeStack{
	"spike_ahp":    (*features.Sweep).SpikeAHP,
	"spike_width":  (*features.Sweep).SpikeWidth,
	"spike_height": (*features.Sweep).SpikeHeights,
}

var registry = buildRegistry()

func buildRegistry() map[string]Aggregator {
	r := map[string]Aggregator{
		"injection":                 floatStack((*features.Sweep).Injection),
		"sweep_number":              floatStack(func(s *features.Sweep) float64 { return float64(s.Waveform().Info().Number) }),
		"spike_latency":             floatStack((*features.Sweep).SpikeLatency),
		"spike_count":               floatStack(func(s *features.Sweep) float64 { return float64(s.SpikeCount()) }),
		"charging_curve_halfheight": floatStack((*features.Sweep).ChargingCurveHalfHeight),
		"isi_spread":                floatStack((*features.Sweep).ISISpread),
		"falling_curve_amp":         floatStack(func(s *features.Sweep) float64 { return s.FallingCurveFit().Amp.X }),
		"falling_curve_tau":         floatStack(func(s *features.Sweep) float64 { return s.FallingCurveFit().Tau.X }),

		"filename":               stringStack((*features.Sweep).Filename),
		"falling_curve_function": stringStack(func(s *features.Sweep) string { return s.FallingCurveFit().Function.String() }),

		"mean_baseline": weightedMean{valueAccessors["baseline"]},
		"mean_steady":   weightedMean{valueAccessors["steady"]},
		"mean_response": weightedMean{valueAccessors["response"]},

		"mean_spike_width": pooledMean{spikeAccessors["spike_width"]},
		"mean_spike_ahp":   pooledMean{spikeAccessors["spike_ahp"]},
	}
	for name, acc := range valueAccessors {
		r[name] = acc
	}
	for name, acc := range spikeAccessors {
		r[name] = acc
	}
	// across a collection the mean spike height pools every spike
	r["mean_spike_height"] = pooledMean{spikeAccessors["spike_height"]}
	return r
}

// FeatureNames lists every feature known to Aggregate, sorted
func FeatureNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the aggregator registered for name
func Lookup(name string) (Aggregator, error) {
	agg, ok := registry[name]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("feature %q", name)).
			WithContext("feature", name)
	}
	return agg, nil
}

// Aggregate gathers the named feature with its registered strategy
func (c *Collection) Aggregate(name string) (Result, error) {
	agg, err := Lookup(name)
	if err != nil {
		return Result{}, err
	}
	res := agg.Aggregate(c)
	res.Name = name
	res.Strategy = agg.Strategy().String()
	return res, nil
}

func strategyError(name string, got, want Strategy) error {
	return apperrors.NewAppValidationError(
		fmt.Sprintf("feature %q is gathered as %s, not %s", name, got, want)).
		WithContext("feature", name)
}

// Floats stacks a numeric per-sweep feature in sweep order
func (c *Collection) Floats(name string) ([]float64, error) {
	agg, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	f, ok := agg.(floatStack)
	if !ok {
		return nil, strategyError(name, agg.Strategy(), StackArray)
	}
	return f.floats(c), nil
}

// Strings stacks a string per-sweep feature in sweep order
func (c *Collection) Strings(name string) ([]string, error) {
	agg, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	f, ok := agg.(stringStack)
	if !ok {
		return nil, strategyError(name, agg.Strategy(), StackStrings)
	}
	return f.strings(c), nil
}

// Values stacks an uncertain per-sweep feature in sweep order
func (c *Collection) Values(name string) ([]uncertain.Value, error) {
	f, ok := valueAccessors[name]
	if !ok {
		if agg, err := Lookup(name); err == nil {
			return nil, strategyError(name, agg.Strategy(), UncertainArray)
		}
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("feature %q", name)).
			WithContext("feature", name)
	}
	return f.values(c), nil
}

// PerSpike returns the per-spike arrays of every sweep in sweep order
func (c *Collection) PerSpike(name string) ([][]float64, error) {
	agg, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	f, ok := agg.(spikeStack)
	if !ok {
		return nil, strategyError(name, agg.Strategy(), PerSpikeArray)
	}
	return f.perSpike(c), nil
}

// Mean returns a population aggregate: a weighted mean of per-sweep values
// or a pooled per-spike mean, depending on the feature
func (c *Collection) Mean(name string) (uncertain.Value, error) {
	agg, err := Lookup(name)
	if err != nil {
		return uncertain.NaN(), err
	}
	switch m := agg.(type) {
	case weightedMean:
		return m.mean(c), nil
	case pooledMean:
		return m.mean(c), nil
	default:
		return uncertain.NaN(), strategyError(name, agg.Strategy(), MeanOfUncertain)
	}
}
