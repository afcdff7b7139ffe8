package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankBefore(t *testing.T) {
	strong := PairCandidate{InstrumentA: "a", InstrumentB: "b", Correlation: -0.9, PValue: 0.02}
	weak := PairCandidate{InstrumentA: "a", InstrumentB: "c", Correlation: 0.6, PValue: 0.01}

	// Correlation magnitude dominates, sign ignored.
	assert.True(t, strong.RankBefore(weak))
	assert.False(t, weak.RankBefore(strong))

	// Equal correlation: lower p-value first.
	better := PairCandidate{InstrumentA: "a", InstrumentB: "b", Correlation: 0.8, PValue: 0.01}
	worse := PairCandidate{InstrumentA: "a", InstrumentB: "c", Correlation: 0.8, PValue: 0.04}
	assert.True(t, better.RankBefore(worse))

	// Full tie: instrument ids break it deterministically.
	x := PairCandidate{InstrumentA: "a", InstrumentB: "b", Correlation: 0.8, PValue: 0.01}
	y := PairCandidate{InstrumentA: "b", InstrumentB: "a", Correlation: 0.8, PValue: 0.01}
	assert.True(t, x.RankBefore(y))
	assert.False(t, y.RankBefore(x))
}

func TestSummaryJSONRoundTripWithNaN(t *testing.T) {
	s := Summary{
		TotalTrades: 0,
		WinRate:     math.NaN(),
		AveragePnL:  math.NaN(),
		PnLStd:      math.NaN(),
		Sharpe:      math.NaN(),
	}

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"win_rate":null`)

	var back Summary
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, math.IsNaN(back.WinRate))
	assert.True(t, math.IsNaN(back.Sharpe))
	assert.Zero(t, back.TotalTrades)
}

func TestPositionStateString(t *testing.T) {
	assert.Equal(t, "flat", Flat.String())
	assert.Equal(t, "long_spread", LongSpread.String())
	assert.Equal(t, "short_spread", ShortSpread.String())
}
