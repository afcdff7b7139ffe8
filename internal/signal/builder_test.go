package signal

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkorolev/statarb/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func at(i int) time.Time {
	return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Minute)
}

func quote(i int, instrument string, mid float64) domain.Quote {
	return domain.Quote{
		Timestamp:  at(i),
		Instrument: instrument,
		Bid:        mid - 0.5,
		Ask:        mid + 0.5,
		Mid:        mid,
		Spread:     1.0,
	}
}

func quoteSeries(instrument string, mids ...float64) []domain.Quote {
	out := make([]domain.Quote, len(mids))
	for i, m := range mids {
		out[i] = quote(i, instrument, m)
	}
	return out
}

func TestBuildSpreadAndZScore(t *testing.T) {
	// beta = 2, window = 3; spreads are 100-2*45=10, 12, 14, 16.
	qa := quoteSeries("a", 100, 104, 108, 112)
	qb := quoteSeries("b", 45, 46, 47, 48)

	series, err := NewBuilder(3, testLogger()).Build("a", "b", qa, qb, 2.0)
	require.NoError(t, err)
	require.Len(t, series.Bars, 4)

	assert.InDelta(t, 10, series.Bars[0].Spread, 1e-12)
	assert.InDelta(t, 16, series.Bars[3].Spread, 1e-12)

	// First window-1 bars carry no signal.
	assert.False(t, series.Bars[0].ZValid)
	assert.False(t, series.Bars[1].ZValid)

	// Bar 2: window {10,12,14}, mean 12, sample std 2, z = (14-12)/2 = 1.
	require.True(t, series.Bars[2].ZValid)
	assert.InDelta(t, 1.0, series.Bars[2].ZScore, 1e-9)

	// Bar 3: window {12,14,16}, mean 14, sample std 2, z = 1.
	require.True(t, series.Bars[3].ZValid)
	assert.InDelta(t, 1.0, series.Bars[3].ZScore, 1e-9)
}

func TestBuildZeroStdWindowInvalid(t *testing.T) {
	// Constant spread: rolling std is zero, z must stay undefined rather
	// than collapse to 0.
	qa := quoteSeries("a", 100, 100, 100, 100, 100)
	qb := quoteSeries("b", 50, 50, 50, 50, 50)

	series, err := NewBuilder(3, testLogger()).Build("a", "b", qa, qb, 2.0)
	require.NoError(t, err)

	for i, bar := range series.Bars {
		assert.False(t, bar.ZValid, "bar %d must be invalid", i)
		assert.Zero(t, bar.ZScore)
	}
}

func TestBuildAlignsOnCommonTimestamps(t *testing.T) {
	qa := quoteSeries("a", 100, 104, 108, 112)
	// b is missing the bar at minute 1.
	qb := []domain.Quote{
		quote(0, "b", 45),
		quote(2, "b", 47),
		quote(3, "b", 48),
	}

	series, err := NewBuilder(2, testLogger()).Build("a", "b", qa, qb, 2.0)
	require.NoError(t, err)

	require.Len(t, series.Bars, 3)
	assert.Equal(t, at(0), series.Bars[0].Timestamp)
	assert.Equal(t, at(2), series.Bars[1].Timestamp)
	assert.Equal(t, at(3), series.Bars[2].Timestamp)
}

func TestBuildNoCommonTimestamps(t *testing.T) {
	qa := quoteSeries("a", 100, 104)
	qb := []domain.Quote{quote(10, "b", 45), quote(11, "b", 46)}

	_, err := NewBuilder(2, testLogger()).Build("a", "b", qa, qb, 2.0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientHistory)
}

func TestBuildCarriesQuotesForExecution(t *testing.T) {
	qa := quoteSeries("a", 100, 104)
	qb := quoteSeries("b", 45, 46)

	series, err := NewBuilder(2, testLogger()).Build("a", "b", qa, qb, 1.5)
	require.NoError(t, err)

	bar := series.Bars[0]
	assert.InDelta(t, 99.5, bar.BidA, 1e-12)
	assert.InDelta(t, 100.5, bar.AskA, 1e-12)
	assert.InDelta(t, 44.5, bar.BidB, 1e-12)
	assert.InDelta(t, 45.5, bar.AskB, 1e-12)
	assert.InDelta(t, 1.0, bar.QuotedSpreadA, 1e-12)
	assert.InDelta(t, 1.0, bar.QuotedSpreadB, 1e-12)
	assert.InDelta(t, 100-1.5*45, bar.Spread, 1e-12)
}

func TestBuildWindowLongerThanSeries(t *testing.T) {
	qa := quoteSeries("a", 100, 104, 108)
	qb := quoteSeries("b", 45, 46, 47)

	series, err := NewBuilder(10, testLogger()).Build("a", "b", qa, qb, 2.0)
	require.NoError(t, err)

	for _, bar := range series.Bars {
		assert.False(t, bar.ZValid)
		assert.True(t, !math.IsNaN(bar.Spread))
	}
}
