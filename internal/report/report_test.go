package report

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkorolev/statarb/internal/domain"
)

func at(i int) time.Time {
	return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour)
}

func trade(i int, pnl float64) domain.Trade {
	return domain.Trade{
		EntryTimestamp: at(i),
		ExitTimestamp:  at(i + 1),
		Direction:      domain.DirectionLong,
		RealizedPnL:    pnl,
	}
}

func TestSummarizeEmptyLedger(t *testing.T) {
	summary := Summarize(domain.TradeLedger{}, 252)

	assert.Zero(t, summary.TotalTrades)
	assert.Zero(t, summary.TotalPnL)
	assert.True(t, math.IsNaN(summary.WinRate))
	assert.True(t, math.IsNaN(summary.AveragePnL))
	assert.True(t, math.IsNaN(summary.PnLStd))
	assert.True(t, math.IsNaN(summary.Sharpe))
	assert.Empty(t, summary.EquityCurve)
}

func TestSummarizeSingleTrade(t *testing.T) {
	ledger := domain.TradeLedger{Trades: []domain.Trade{trade(0, 150)}}
	summary := Summarize(ledger, 252)

	assert.Equal(t, 1, summary.TotalTrades)
	assert.InDelta(t, 1.0, summary.WinRate, 1e-12)
	assert.InDelta(t, 150, summary.AveragePnL, 1e-12)
	assert.InDelta(t, 150, summary.TotalPnL, 1e-12)
	// One observation has no dispersion; std and sharpe stay undefined.
	assert.True(t, math.IsNaN(summary.PnLStd))
	assert.True(t, math.IsNaN(summary.Sharpe))
}

func TestSummarizeMetrics(t *testing.T) {
	ledger := domain.TradeLedger{Trades: []domain.Trade{
		trade(0, 100),
		trade(2, -50),
		trade(4, 250),
	}}
	summary := Summarize(ledger, 252)

	assert.Equal(t, 3, summary.TotalTrades)
	assert.InDelta(t, 2.0/3.0, summary.WinRate, 1e-12)
	assert.InDelta(t, 100, summary.AveragePnL, 1e-12)
	assert.InDelta(t, 300, summary.TotalPnL, 1e-12)

	// Sample std of {100, -50, 250} is 150.
	assert.InDelta(t, 150, summary.PnLStd, 1e-9)
	assert.InDelta(t, 100.0/150.0*math.Sqrt(252), summary.Sharpe, 1e-9)
}

func TestSummarizeEquityCurve(t *testing.T) {
	ledger := domain.TradeLedger{Trades: []domain.Trade{
		trade(0, 100),
		trade(2, -50),
		trade(4, 250),
	}}
	summary := Summarize(ledger, 252)

	require.Len(t, summary.EquityCurve, 3)
	assert.InDelta(t, 100, summary.EquityCurve[0].CumPnL, 1e-12)
	assert.InDelta(t, 50, summary.EquityCurve[1].CumPnL, 1e-12)
	assert.InDelta(t, 300, summary.EquityCurve[2].CumPnL, 1e-12)
	assert.Equal(t, at(1), summary.EquityCurve[0].Timestamp)
	assert.Equal(t, at(5), summary.EquityCurve[2].Timestamp)
}

func TestSummarizeZeroStd(t *testing.T) {
	ledger := domain.TradeLedger{Trades: []domain.Trade{
		trade(0, 100),
		trade(2, 100),
	}}
	summary := Summarize(ledger, 252)

	assert.InDelta(t, 0, summary.PnLStd, 1e-12)
	assert.True(t, math.IsNaN(summary.Sharpe))
}

func TestSummarizeZeroPnLTradeIsNotAWin(t *testing.T) {
	ledger := domain.TradeLedger{Trades: []domain.Trade{
		trade(0, 0),
		trade(2, 100),
	}}
	summary := Summarize(ledger, 252)
	assert.InDelta(t, 0.5, summary.WinRate, 1e-12)
}
