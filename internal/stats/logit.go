package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/leibatt/latency-visual-search/internal/errors"
)

// Estimation methods for the binomial logistic fit.
const (
	MethodML    = "ml"
	MethodFirth = "firth"
)

// DefaultRareThreshold is the minority-class frequency below which the
// fitter switches from maximum likelihood to Firth's penalized
// likelihood. Rare outcomes risk separation and non-convergence under
// plain ML.
const DefaultRareThreshold = 0.15

// LogitOptions configures FitLogistic.
type LogitOptions struct {
	MaxIter       int     // Newton iterations, default 50
	Tol           float64 // convergence tolerance on coefficient change, default 1e-8
	RareThreshold float64 // default DefaultRareThreshold
	Method        string  // "", MethodML or MethodFirth; empty selects by rarity
}

func (o LogitOptions) withDefaults() LogitOptions {
	if o.MaxIter <= 0 {
		o.MaxIter = 50
	}
	if o.Tol <= 0 {
		o.Tol = 1e-8
	}
	if o.RareThreshold <= 0 {
		o.RareThreshold = DefaultRareThreshold
	}
	return o
}

// LogitFit is a fitted binomial logistic regression of a binary outcome
// on a single continuous predictor (intercept + slope).
type LogitFit struct {
	Method           string      `json:"method"`
	Terms            []string    `json:"terms"`
	Coef             []float64   `json:"coef"`
	SE               []float64   `json:"se"`
	Z                []float64   `json:"z"`
	P                []float64   `json:"p"`
	Cov              [][]float64 `json:"cov"`
	LogLik           float64     `json:"log_lik"`
	Iterations       int         `json:"iterations"`
	Converged        bool        `json:"converged"`
	N                int         `json:"n"`
	MinorityFraction float64     `json:"minority_fraction"`
}

// CurvePoint is one point of the fitted response curve with its
// delta-method standard error.
type CurvePoint struct {
	X  float64 `json:"x"`
	P  float64 `json:"p"`
	SE float64 `json:"se"`
}

// FitLogistic fits outcome ~ predictor by maximum likelihood, or by
// Firth's penalized likelihood when the minority class is rarer than the
// threshold. An ML fit that fails to converge also falls back to Firth
// rather than surfacing an error.
func FitLogistic(x []float64, y []int, opts LogitOptions) (*LogitFit, error) {
	opts = opts.withDefaults()

	if len(x) != len(y) {
		return nil, errors.InvalidInput(fmt.Sprintf("predictor/response length mismatch: %d vs %d", len(x), len(y)))
	}
	if len(x) < 4 {
		return nil, errors.InvalidInput("too few observations for logistic regression")
	}

	ones := 0
	for _, v := range y {
		if v != 0 && v != 1 {
			return nil, errors.InvalidInput(fmt.Sprintf("response values must be 0/1, got %d", v))
		}
		if v == 1 {
			ones++
		}
	}
	if ones == 0 || ones == len(y) {
		return nil, errors.ModelFit("response has zero variance")
	}

	minority := float64(ones) / float64(len(y))
	if minority > 0.5 {
		minority = 1 - minority
	}

	method := opts.Method
	if method == "" {
		method = MethodML
		if minority < opts.RareThreshold {
			method = MethodFirth
		}
	}

	fit, err := newtonLogit(x, y, method, opts)
	if err != nil && method == MethodML && opts.Method == "" {
		// Separation or divergence under plain ML; the penalized fit
		// always has a finite maximizer.
		fit, err = newtonLogit(x, y, MethodFirth, opts)
	}
	if err != nil {
		return nil, err
	}

	fit.MinorityFraction = minority
	return fit, nil
}

// newtonLogit runs Newton-Raphson with Fisher scoring for the plain or
// Firth-corrected score.
func newtonLogit(x []float64, y []int, method string, opts LogitOptions) (*LogitFit, error) {
	n := len(x)
	const p = 2 // intercept + slope

	design := func(i int) [p]float64 {
		return [p]float64{1, x[i]}
	}

	beta := [p]float64{}
	// Start the intercept at the empirical log-odds.
	ones := 0
	for _, v := range y {
		ones += v
	}
	prop := (float64(ones) + 0.5) / (float64(n) + 1)
	beta[0] = math.Log(prop / (1 - prop))

	var info mat.SymDense
	converged := false
	iterations := 0

	for iter := 0; iter < opts.MaxIter; iter++ {
		iterations = iter + 1

		// Fisher information XtWX and weights.
		mu := make([]float64, n)
		w := make([]float64, n)
		info = *mat.NewSymDense(p, nil)
		for i := 0; i < n; i++ {
			xi := design(i)
			eta := beta[0]*xi[0] + beta[1]*xi[1]
			mu[i] = sigmoid(eta)
			w[i] = mu[i] * (1 - mu[i])
			for a := 0; a < p; a++ {
				for b := a; b < p; b++ {
					info.SetSym(a, b, info.At(a, b)+w[i]*xi[a]*xi[b])
				}
			}
		}

		var chol mat.Cholesky
		if ok := chol.Factorize(&info); !ok {
			return nil, errors.ModelFit("singular Fisher information")
		}

		// Score vector, optionally with Firth's Jeffreys-prior correction
		// using the hat diagonals h_i = w_i * x_i' (XtWX)^-1 x_i.
		score := make([]float64, p)
		var invInfo mat.SymDense
		if err := chol.InverseTo(&invInfo); err != nil {
			return nil, errors.ModelFit("Fisher information not invertible")
		}
		for i := 0; i < n; i++ {
			xi := design(i)
			resid := float64(y[i]) - mu[i]
			if method == MethodFirth {
				h := 0.0
				for a := 0; a < p; a++ {
					for b := 0; b < p; b++ {
						h += xi[a] * invInfo.At(a, b) * xi[b]
					}
				}
				h *= w[i]
				resid += h * (0.5 - mu[i])
			}
			for a := 0; a < p; a++ {
				score[a] += resid * xi[a]
			}
		}

		step := mat.NewVecDense(p, nil)
		if err := chol.SolveVecTo(step, mat.NewVecDense(p, score)); err != nil {
			return nil, errors.ModelFit("Newton step failed")
		}

		maxDelta := 0.0
		for a := 0; a < p; a++ {
			beta[a] += step.AtVec(a)
			if d := math.Abs(step.AtVec(a)); d > maxDelta {
				maxDelta = d
			}
		}

		if math.IsNaN(maxDelta) || math.IsInf(maxDelta, 0) {
			return nil, errors.ModelFit("divergent coefficient path")
		}
		if maxDelta < opts.Tol {
			converged = true
			break
		}
	}

	if !converged && method == MethodML {
		return nil, errors.ModelFit(fmt.Sprintf("no convergence after %d iterations", iterations))
	}

	// Covariance, Wald statistics and log-likelihood at the estimate.
	var chol mat.Cholesky
	if ok := chol.Factorize(&info); !ok {
		return nil, errors.ModelFit("singular Fisher information at optimum")
	}
	var cov mat.SymDense
	if err := chol.InverseTo(&cov); err != nil {
		return nil, errors.ModelFit("covariance not available")
	}

	fit := &LogitFit{
		Method:     method,
		Terms:      []string{"(Intercept)", "latency_ms"},
		Coef:       []float64{beta[0], beta[1]},
		SE:         make([]float64, p),
		Z:          make([]float64, p),
		P:          make([]float64, p),
		Cov:        make([][]float64, p),
		Iterations: iterations,
		Converged:  converged,
		N:          n,
	}

	norm := distuv.Normal{Mu: 0, Sigma: 1}
	for a := 0; a < p; a++ {
		fit.Cov[a] = make([]float64, p)
		for b := 0; b < p; b++ {
			fit.Cov[a][b] = cov.At(a, b)
		}
		fit.SE[a] = math.Sqrt(cov.At(a, a))
		fit.Z[a] = fit.Coef[a] / fit.SE[a]
		fit.P[a] = 2 * norm.Survival(math.Abs(fit.Z[a]))
	}

	logLik := 0.0
	for i := 0; i < n; i++ {
		eta := beta[0] + beta[1]*x[i]
		mu := sigmoid(eta)
		if y[i] == 1 {
			logLik += math.Log(mu)
		} else {
			logLik += math.Log(1 - mu)
		}
	}
	fit.LogLik = logLik

	return fit, nil
}

// PredictProb returns the response-scale probability at latency x with
// its delta-method standard error.
func (f *LogitFit) PredictProb(x float64) (prob, se float64) {
	eta := f.Coef[0] + f.Coef[1]*x
	prob = sigmoid(eta)

	// Var(eta) = [1 x] Cov [1 x]'
	varEta := f.Cov[0][0] + 2*x*f.Cov[0][1] + x*x*f.Cov[1][1]
	if varEta < 0 {
		varEta = 0
	}
	// d prob / d eta = prob (1 - prob)
	se = prob * (1 - prob) * math.Sqrt(varEta)
	return prob, se
}

// Curve evaluates the fitted curve on an even grid over [lo, hi].
func (f *LogitFit) Curve(lo, hi float64, points int) []CurvePoint {
	if points < 2 {
		points = 2
	}
	curve := make([]CurvePoint, points)
	step := (hi - lo) / float64(points-1)
	for i := 0; i < points; i++ {
		x := lo + float64(i)*step
		p, se := f.PredictProb(x)
		curve[i] = CurvePoint{X: x, P: p, SE: se}
	}
	return curve
}

func sigmoid(eta float64) float64 {
	// Guard the tails so log-likelihood stays finite.
	if eta > 35 {
		return 1 - 1e-15
	}
	if eta < -35 {
		return 1e-15
	}
	return 1 / (1 + math.Exp(-eta))
}
