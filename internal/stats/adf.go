package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/dkorolev/statarb/internal/domain"
)

// ADFResult holds the outcome of an augmented Dickey-Fuller test.
type ADFResult struct {
	Statistic float64
	PValue    float64
	Lags      int
	NObs      int
}

// SchwertLag returns the standard rule-of-thumb maximum lag order
// 12*(n/100)^(1/4) for a sample of n observations.
func SchwertLag(n int) int {
	if n <= 0 {
		return 0
	}
	return int(math.Floor(12 * math.Pow(float64(n)/100, 0.25)))
}

// ADF runs an augmented Dickey-Fuller test on series with the given number of
// lagged difference terms. The auxiliary regression has no deterministic
// terms, which is the correct form for residuals of a cointegrating
// regression that already included an intercept. A negative lags value
// selects the Schwert rule.
//
// The null hypothesis is a unit root; small p-values indicate a stationary
// series.
func ADF(series []float64, lags int) (ADFResult, error) {
	if lags < 0 {
		lags = SchwertLag(len(series))
	}

	n := len(series)
	if n < lags+10 {
		return ADFResult{}, fmt.Errorf("stats: adf needs at least %d observations, got %d: %w",
			lags+10, n, domain.ErrInsufficientHistory)
	}

	// Build the regression Δu_t = γ·u_{t-1} + Σ δ_i·Δu_{t-i} + ε_t.
	diff := make([]float64, n-1)
	for i := 1; i < n; i++ {
		diff[i-1] = series[i] - series[i-1]
	}

	rows := len(diff) - lags
	cols := 1 + lags
	if rows <= cols {
		return ADFResult{}, fmt.Errorf("stats: adf sample too short for %d lags: %w",
			lags, domain.ErrInsufficientHistory)
	}

	X := mat.NewDense(rows, cols, nil)
	yv := mat.NewVecDense(rows, nil)
	for t := 0; t < rows; t++ {
		// diff index of the dependent observation.
		k := t + lags
		yv.SetVec(t, diff[k])
		X.Set(t, 0, series[k]) // u_{t-1}: level preceding diff[k]
		for j := 1; j <= lags; j++ {
			X.Set(t, j, diff[k-j])
		}
	}

	beta, invXtX00, rss, err := solveLeastSquares(X, yv)
	if err != nil {
		return ADFResult{}, err
	}

	dof := rows - cols
	s2 := rss / float64(dof)
	se := math.Sqrt(s2 * invXtX00)
	if se == 0 || math.IsNaN(se) {
		return ADFResult{}, fmt.Errorf("stats: adf standard error undefined: %w",
			domain.ErrDegenerateStatistic)
	}

	tstat := beta[0] / se
	return ADFResult{
		Statistic: tstat,
		PValue:    TauPValue(tstat),
		Lags:      lags,
		NObs:      rows,
	}, nil
}

// solveLeastSquares solves X·b = y by QR decomposition and returns the
// coefficient vector, the (0,0) entry of (XᵀX)⁻¹ (needed for the standard
// error of the first coefficient), and the residual sum of squares.
func solveLeastSquares(X *mat.Dense, y *mat.VecDense) ([]float64, float64, float64, error) {
	rows, cols := X.Dims()

	var qr mat.QR
	qr.Factorize(X)

	bm := mat.NewDense(cols, 1, nil)
	if err := qr.SolveTo(bm, false, y); err != nil {
		return nil, 0, 0, fmt.Errorf("stats: least squares solve: %w", err)
	}

	beta := make([]float64, cols)
	for i := range beta {
		beta[i] = bm.At(i, 0)
	}

	// Residual sum of squares.
	var rss float64
	for t := 0; t < rows; t++ {
		fitted := 0.0
		for j := 0; j < cols; j++ {
			fitted += X.At(t, j) * beta[j]
		}
		r := y.AtVec(t) - fitted
		rss += r * r
	}

	// (XᵀX)⁻¹ for the coefficient covariance.
	var xtx mat.Dense
	xtx.Mul(X.T(), X)
	var inv mat.Dense
	if err := inv.Inverse(&xtx); err != nil {
		return nil, 0, 0, fmt.Errorf("stats: X'X not invertible: %w", domain.ErrDegenerateStatistic)
	}

	return beta, inv.At(0, 0), rss, nil
}

// tauQuantiles approximates the asymptotic distribution of the Engle-Granger
// tau statistic for two variables with an intercept in the cointegrating
// regression (MacKinnon-style surface, tabulated and linearly interpolated).
// Each entry maps a tau value to the cumulative probability below it.
var tauQuantiles = []struct {
	tau float64
	p   float64
}{
	{-4.32, 0.005},
	{-3.90, 0.01},
	{-3.59, 0.025},
	{-3.34, 0.05},
	{-3.04, 0.10},
	{-2.71, 0.20},
	{-2.48, 0.30},
	{-2.28, 0.40},
	{-2.09, 0.50},
	{-1.89, 0.60},
	{-1.67, 0.70},
	{-1.42, 0.80},
	{-1.07, 0.90},
	{-0.78, 0.95},
	{-0.23, 0.99},
}

// pValue bounds: statistics far outside the tabulated range are clamped
// rather than extrapolated.
const (
	minTauPValue = 1e-4
	maxTauPValue = 0.9999
)

// TauPValue maps an ADF t-statistic to an approximate p-value under the
// Engle-Granger tau distribution by linear interpolation over tauQuantiles.
func TauPValue(t float64) float64 {
	qs := tauQuantiles
	if t <= qs[0].tau {
		return minTauPValue
	}
	if t >= qs[len(qs)-1].tau {
		return maxTauPValue
	}
	for i := 1; i < len(qs); i++ {
		if t <= qs[i].tau {
			lo, hi := qs[i-1], qs[i]
			frac := (t - lo.tau) / (hi.tau - lo.tau)
			return lo.p + frac*(hi.p-lo.p)
		}
	}
	return maxTauPValue
}
