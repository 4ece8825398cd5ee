package features

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	apperrors "ivfeatures/internal/errors"
	"ivfeatures/internal/uncertain"
)

// Model is the exponential form fitted to a falling curve
type Model int

const (
	// ModelNone means the window was too short to fit
	ModelNone Model = iota
	// ModelSimpleExp is amp·exp(−(t−t0)/τ)
	ModelSimpleExp
	// ModelNegativeExp is amp·(1−exp(−(t−t0)/τ))
	ModelNegativeExp
)

// String returns the model name used in exports
func (m Model) String() string {
	switch m {
	case ModelSimpleExp:
		return "simple_exp"
	case ModelNegativeExp:
		return "negative_exp"
	default:
		return ""
	}
}

// eval returns the model value and its gradient with respect to (amp, τ)
// at elapsed time dt
func (m Model) eval(amp, tau, dt float64) (f, dAmp, dTau float64) {
	e := math.Exp(-dt / tau)
	switch m {
	case ModelSimpleExp:
		return amp * e, e, amp * e * dt / (tau * tau)
	case ModelNegativeExp:
		return amp * (1 - e), 1 - e, -amp * e * dt / (tau * tau)
	default:
		return math.NaN(), math.NaN(), math.NaN()
	}
}

// FitResult is the outcome of fitting a falling curve
type FitResult struct {
	Function   Model
	Amp        uncertain.Value
	Tau        uncertain.Value
	Iterations int
	// Err is set when the fit diverged; Amp and Tau are NaN then
	Err error
}

func nanFit(m Model, err error) FitResult {
	return FitResult{Function: m, Amp: uncertain.NaN(), Tau: uncertain.NaN(), Err: err}
}

const (
	lmInitialDamping = 1e-3
	lmMaxDamping     = 1e16
	lmTolerance      = 1e-10
)

// FitExponential fits model to (t, y) by Levenberg–Marquardt starting from
// (amp0, tau0). Time is measured from t[0]. Parameter deviations come from
// the covariance (JᵀJ)⁻¹·SSR/(n−2); a singular JᵀJ gives infinite
// deviations.
func FitExponential(model Model, t, y []float64, amp0, tau0 float64, maxIter int) FitResult {
	n := len(t)
	if n < 3 || n != len(y) {
		return nanFit(model, apperrors.NewInsufficientDataError("exponential fit", n, 3))
	}

	dt := make([]float64, n)
	for i := range t {
		dt[i] = t[i] - t[0]
	}

	residuals := func(amp, tau float64, r []float64) float64 {
		var ssr float64
		for i := range dt {
			f, _, _ := model.eval(amp, tau, dt[i])
			r[i] = y[i] - f
			ssr += r[i] * r[i]
		}
		return ssr
	}

	jac := mat.NewDense(n, 2, nil)
	fillJacobian := func(amp, tau float64) {
		for i := range dt {
			_, da, dtau := model.eval(amp, tau, dt[i])
			jac.Set(i, 0, da)
			jac.Set(i, 1, dtau)
		}
	}

	r := make([]float64, n)
	trial := make([]float64, n)
	amp, tau := amp0, tau0
	ssr := residuals(amp, tau, r)
	if math.IsNaN(ssr) || math.IsInf(ssr, 0) {
		return nanFit(model, apperrors.NewFitDivergenceError("initial guess gives non-finite residuals", nil).
			WithContext("amp0", amp0).WithContext("tau0", tau0))
	}

	var (
		jtj       mat.Dense
		jtr       mat.VecDense
		step      mat.VecDense
		damping   = lmInitialDamping
		converged bool
		iter      int
	)

	for iter = 1; iter <= maxIter; iter++ {
		fillJacobian(amp, tau)
		jtj.Mul(jac.T(), jac)
		jtr.MulVec(jac.T(), mat.NewVecDense(n, r))

		accepted := false
		for damping < lmMaxDamping {
			a := mat.DenseCopyOf(&jtj)
			for k := 0; k < 2; k++ {
				d := jtj.At(k, k)
				if d == 0 {
					d = 1
				}
				a.Set(k, k, jtj.At(k, k)+damping*d)
			}
			if err := step.SolveVec(a, &jtr); err != nil {
				damping *= 10
				continue
			}

			nextAmp, nextTau := amp+step.AtVec(0), tau+step.AtVec(1)
			next := residuals(nextAmp, nextTau, trial)
			if !math.IsNaN(next) && next <= ssr {
				relChange := (ssr - next) / math.Max(ssr, math.SmallestNonzeroFloat64)
				small := math.Abs(step.AtVec(0)) <= lmTolerance*(math.Abs(amp)+lmTolerance) &&
					math.Abs(step.AtVec(1)) <= lmTolerance*(math.Abs(tau)+lmTolerance)

				amp, tau, ssr = nextAmp, nextTau, next
				copy(r, trial)
				damping = math.Max(damping/10, 1e-12)
				accepted = true
				converged = small || relChange < lmTolerance
				break
			}
			damping *= 10
		}

		// no downhill step at any damping: we are at a minimum
		if !accepted {
			converged = true
		}
		if converged {
			break
		}
	}

	if !converged {
		return nanFit(model, apperrors.NewFitDivergenceError(
			fmt.Sprintf("no convergence after %d iterations", maxIter), nil).
			WithContext("model", model.String()))
	}
	if math.IsNaN(amp) || math.IsNaN(tau) || math.IsInf(amp, 0) || math.IsInf(tau, 0) {
		return nanFit(model, apperrors.NewFitDivergenceError("parameters left the finite range", nil).
			WithContext("model", model.String()))
	}

	ampDev, tauDev := covarianceDeviations(jac, amp, tau, ssr, n, model, dt)
	return FitResult{
		Function:   model,
		Amp:        uncertain.New(amp, ampDev),
		Tau:        uncertain.New(tau, tauDev),
		Iterations: iter,
	}
}

// covarianceDeviations returns sqrt of the diagonal of (JᵀJ)⁻¹·SSR/(n−2)
// at the solution
func covarianceDeviations(jac *mat.Dense, amp, tau, ssr float64, n int, model Model, dt []float64) (float64, float64) {
	for i := range dt {
		_, da, dtau := model.eval(amp, tau, dt[i])
		jac.Set(i, 0, da)
		jac.Set(i, 1, dtau)
	}

	var jtj, cov mat.Dense
	jtj.Mul(jac.T(), jac)
	if err := cov.Inverse(&jtj); err != nil {
		return math.Inf(1), math.Inf(1)
	}

	cov.Scale(ssr/float64(n-2), &cov)
	return math.Sqrt(math.Abs(cov.At(0, 0))), math.Sqrt(math.Abs(cov.At(1, 1)))
}
