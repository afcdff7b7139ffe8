// Package report summarizes a trade ledger into the backtest metrics and the
// realized equity curve.
package report

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/dkorolev/statarb/internal/domain"
)

// Summarize computes trade-level metrics over a completed ledger. Ratio
// metrics over an empty ledger are NaN, never silently zero; total P&L over
// an empty ledger is zero. The Sharpe ratio is per-trade mean over per-trade
// standard deviation scaled by the square root of annualizationFactor, and is
// NaN whenever the standard deviation is undefined or zero.
func Summarize(ledger domain.TradeLedger, annualizationFactor float64) domain.Summary {
	n := ledger.Len()
	summary := domain.Summary{TotalTrades: n}

	if n == 0 {
		summary.WinRate = math.NaN()
		summary.AveragePnL = math.NaN()
		summary.PnLStd = math.NaN()
		summary.Sharpe = math.NaN()
		return summary
	}

	pnls := make([]float64, n)
	wins := 0
	cum := 0.0
	curve := make([]domain.EquityPoint, n)
	for i, t := range ledger.Trades {
		pnls[i] = t.RealizedPnL
		if t.RealizedPnL > 0 {
			wins++
		}
		cum += t.RealizedPnL
		curve[i] = domain.EquityPoint{Timestamp: t.ExitTimestamp, CumPnL: cum}
	}

	summary.TotalPnL = cum
	summary.WinRate = float64(wins) / float64(n)
	summary.AveragePnL = stat.Mean(pnls, nil)
	summary.EquityCurve = curve

	if n < 2 {
		summary.PnLStd = math.NaN()
		summary.Sharpe = math.NaN()
		return summary
	}

	summary.PnLStd = stat.StdDev(pnls, nil)
	if summary.PnLStd == 0 {
		summary.Sharpe = math.NaN()
	} else {
		summary.Sharpe = summary.AveragePnL / summary.PnLStd * math.Sqrt(annualizationFactor)
	}
	return summary
}
