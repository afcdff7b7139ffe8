// Package stats provides the regression and stationarity primitives the pair
// screener is built on: ordinary least squares on price levels and an
// augmented Dickey-Fuller test for residual stationarity.
package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/dkorolev/statarb/internal/domain"
)

// OLSFit is the result of regressing y on x with an intercept.
type OLSFit struct {
	Alpha       float64
	Beta        float64
	Residuals   []float64
	ResidualStd float64
}

// OLS fits y = alpha + beta*x by ordinary least squares and returns the fit
// together with the residual series. Inputs must have equal length of at
// least 3 observations; a zero-variance regressor yields
// domain.ErrDegenerateStatistic.
func OLS(y, x []float64) (OLSFit, error) {
	if len(y) != len(x) {
		return OLSFit{}, fmt.Errorf("stats: ols length mismatch: %d vs %d", len(y), len(x))
	}
	if len(y) < 3 {
		return OLSFit{}, fmt.Errorf("stats: ols needs at least 3 observations, got %d: %w",
			len(y), domain.ErrInsufficientHistory)
	}
	if stat.Variance(x, nil) == 0 {
		return OLSFit{}, fmt.Errorf("stats: ols regressor has zero variance: %w",
			domain.ErrDegenerateStatistic)
	}

	alpha, beta := stat.LinearRegression(x, y, nil, false)

	resid := make([]float64, len(y))
	for i := range y {
		resid[i] = y[i] - alpha - beta*x[i]
	}

	return OLSFit{
		Alpha:       alpha,
		Beta:        beta,
		Residuals:   resid,
		ResidualStd: math.Sqrt(stat.Variance(resid, nil)),
	}, nil
}

// Pearson returns the Pearson correlation of two equal-length series. It
// reports domain.ErrDegenerateStatistic when either series has zero variance.
func Pearson(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("stats: correlation length mismatch: %d vs %d", len(a), len(b))
	}
	if len(a) < 2 {
		return 0, fmt.Errorf("stats: correlation needs at least 2 observations: %w",
			domain.ErrInsufficientHistory)
	}
	if stat.Variance(a, nil) == 0 || stat.Variance(b, nil) == 0 {
		return 0, fmt.Errorf("stats: correlation of zero-variance series: %w",
			domain.ErrDegenerateStatistic)
	}
	return stat.Correlation(a, b, nil), nil
}
