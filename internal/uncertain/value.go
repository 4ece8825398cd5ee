package uncertain

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	apperrors "ivfeatures/internal/errors"
)

// Value is a measurement with its standard deviation
type Value struct {
	X   float64 `json:"x"`
	Dev float64 `json:"dev"`
}

// New creates a Value. Negative deviations are stored as their magnitude.
func New(x, dev float64) Value {
	return Value{X: x, Dev: math.Abs(dev)}
}

// Exact creates a Value without uncertainty
func Exact(x float64) Value {
	return Value{X: x}
}

// NaN returns the sentinel used when an estimator has too little data
func NaN() Value {
	return Value{X: math.NaN(), Dev: math.NaN()}
}

// IsNaN reports whether the value part is NaN
func (v Value) IsNaN() bool {
	return math.IsNaN(v.X)
}

// Add returns v + o with propagated deviation
func (v Value) Add(o Value) Value {
	return Value{X: v.X + o.X, Dev: math.Hypot(v.Dev, o.Dev)}
}

// Sub returns v - o with propagated deviation
func (v Value) Sub(o Value) Value {
	return Value{X: v.X - o.X, Dev: math.Hypot(v.Dev, o.Dev)}
}

// RSub returns s - v; a plain scalar carries no deviation
func (v Value) RSub(s float64) Value {
	return Value{X: s - v.X, Dev: v.Dev}
}

// Div divides by a scalar
func (v Value) Div(s float64) Value {
	return Value{X: v.X / s, Dev: v.Dev / math.Abs(s)}
}

// Less compares the values only, ignoring deviations
func (v Value) Less(o Value) bool {
	return v.X < o.X
}

// Significant reports |x| > 3·dev
func (v Value) Significant() bool {
	return math.Abs(v.X) > v.Dev*3
}

// Positive reports x > 3·dev
func (v Value) Positive() bool {
	return v.X > v.Dev*3
}

// Negative reports x < -3·dev
func (v Value) Negative() bool {
	return v.X < -v.Dev*3
}

// String renders both parts rounded to the decimal place of the smaller order
// of magnitude, e.g. "-0.0712±0.0004".
func (v Value) String() string {
	prec := precision(v.X, v.Dev)
	return fmt.Sprintf("%.*f±%.*f", prec, v.X, prec, v.Dev)
}

// GoString renders the value with one additional digit
func (v Value) GoString() string {
	prec := precision(v.X, v.Dev) + 1
	return fmt.Sprintf("Value(%.*f, %.*f)", prec, v.X, prec, v.Dev)
}

// precision returns -min(floor(log10|x|), floor(log10 dev), 0). Zero and
// non-finite parts have no order of magnitude and are ignored.
func precision(x, dev float64) int {
	lowest := 0
	for _, f := range [2]float64{x, dev} {
		a := math.Abs(f)
		if a == 0 || math.IsNaN(a) || math.IsInf(a, 0) {
			continue
		}
		if order := int(math.Floor(math.Log10(a))); order < lowest {
			lowest = order
		}
	}
	return -lowest
}

// Average combines values with inverse-variance weights:
//
//	var = 1/Σ(1/dev²), x = var·Σ(x/dev²)
//
// Empty input or any zero or NaN deviation yields NaN±NaN.
func Average(values []Value) Value {
	if len(values) == 0 {
		return NaN()
	}

	var weightSum, weighted float64
	for _, v := range values {
		if v.Dev == 0 || math.IsNaN(v.Dev) || math.IsNaN(v.X) {
			return NaN()
		}
		w := 1 / (v.Dev * v.Dev)
		weightSum += w
		weighted += v.X * w
	}

	variance := 1 / weightSum
	return Value{X: weighted * variance, Dev: math.Sqrt(variance)}
}

// AverageChecked is Average, but reports inputs that cannot be weighted as a
// configuration error. The returned Value is NaN±NaN in that case.
func AverageChecked(values []Value) (Value, error) {
	if len(values) == 0 {
		return NaN(), apperrors.NewConfigError("average of empty sequence", nil)
	}
	for i, v := range values {
		if v.Dev == 0 {
			return NaN(), apperrors.NewConfigError("average of zero-uncertainty value", nil).
				WithContext("index", i)
		}
		if math.IsNaN(v.Dev) || math.IsNaN(v.X) {
			return NaN(), apperrors.NewConfigError("average of NaN value", nil).
				WithContext("index", i)
		}
	}
	return Average(values), nil
}

// MeanStd returns the sample mean and the sample standard deviation (ddof=1).
// An empty sample is NaN±NaN; a single sample has a NaN deviation.
func MeanStd(data []float64) Value {
	n := len(data)
	if n == 0 {
		return NaN()
	}

	if n == 1 {
		return Value{X: data[0], Dev: math.NaN()}
	}
	mean, std := stat.MeanStdDev(data, nil)
	return Value{X: mean, Dev: std}
}

// Array splits values into parallel value and deviation slices
func Array(values []Value) (xs, devs []float64) {
	xs = make([]float64, len(values))
	devs = make([]float64, len(values))
	for i, v := range values {
		xs[i] = v.X
		devs[i] = v.Dev
	}
	return xs, devs
}
