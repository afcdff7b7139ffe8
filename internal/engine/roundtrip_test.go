package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkorolev/statarb/internal/domain"
	"github.com/dkorolev/statarb/internal/signal"
)

// quoteAt builds a normalized quote with a 0.2 quoted spread around mid.
func quoteAt(i int, id string, mid float64) domain.Quote {
	return domain.Quote{
		Timestamp:  at(i),
		Instrument: id,
		Bid:        mid - 0.1,
		Ask:        mid + 0.1,
		Mid:        mid,
		Spread:     0.2,
	}
}

// The full path from quotes to ledger: the builder standardizes the spread
// over a window of 3 and the engine trades the hand-traced crossings.
//
// With beta 1, B pinned at 40, and A mids 40 + {10,11,12,2,2,2,12,12}, the
// spread equals the offsets, and the rolling sample statistics give:
//
//	bar 0,1: window incomplete, z undefined
//	bar 2:   {10,11,12}  z = 1.0       boundary, no short entry (needs > 1)
//	bar 3:   {11,12,2}   z ~= -1.150   long entry (< -1)
//	bar 4:   {12,2,2}    z ~= -0.577   hold
//	bar 5:   {2,2,2}     zero std, z undefined, position carried
//	bar 6:   {2,2,12}    z ~= 1.155    exit (>= 0.5)
//	bar 7:   {2,12,12}   z ~= 0.577    flat, no re-entry
func TestSignalDrivenRoundTrip(t *testing.T) {
	offsets := []float64{10, 11, 12, 2, 2, 2, 12, 12}
	var quotesA, quotesB []domain.Quote
	for i, off := range offsets {
		quotesA = append(quotesA, quoteAt(i, "cu_a", 40+off))
		quotesB = append(quotesB, quoteAt(i, "cu_b", 40))
	}

	series, err := signal.NewBuilder(3, testLogger()).Build("cu_a", "cu_b", quotesA, quotesB, 1.0)
	require.NoError(t, err)
	require.Len(t, series.Bars, 8)

	assert.False(t, series.Bars[1].ZValid)
	require.True(t, series.Bars[2].ZValid)
	assert.InDelta(t, 1.0, series.Bars[2].ZScore, 1e-9)
	require.True(t, series.Bars[3].ZValid)
	assert.Less(t, series.Bars[3].ZScore, -1.0)
	assert.False(t, series.Bars[5].ZValid)
	require.True(t, series.Bars[6].ZValid)
	assert.Greater(t, series.Bars[6].ZScore, 0.5)

	cfg := Config{
		ZEntry:         1.0,
		ZExit:          0.5,
		NotionalPerLeg: 10_000,
		SlippageMode:   SlippageSpread,
	}
	ledger, err := newEngine(t, cfg).Run(series)
	require.NoError(t, err)
	require.Equal(t, 1, ledger.Len())

	trade := ledger.Trades[0]
	assert.Equal(t, domain.DirectionLong, trade.Direction)
	assert.Equal(t, at(3), trade.EntryTimestamp)
	assert.Equal(t, at(6), trade.ExitTimestamp)

	// Fills pay the quoted spread beyond the touch. Entry at bar 3
	// (mid A 42), exit at bar 6 (mid A 52), B pinned at 40.
	entryA := 42.1 + 0.2
	entryB := 39.9 - 0.2
	exitA := 51.9 - 0.2
	exitB := 40.1 + 0.2
	assert.InDelta(t, entryA, trade.EntryPriceA, 1e-12)
	assert.InDelta(t, entryB, trade.EntryPriceB, 1e-12)
	assert.InDelta(t, exitA, trade.ExitPriceA, 1e-12)
	assert.InDelta(t, exitB, trade.ExitPriceB, 1e-12)

	assert.InDelta(t, 10_000/entryA, trade.QtyA, 1e-9)
	assert.InDelta(t, 10_000/entryB, trade.QtyB, 1e-9)

	wantPnL := (10_000/entryA)*(exitA-entryA) + (10_000/entryB)*(entryB-exitB)
	assert.InDelta(t, wantPnL, trade.RealizedPnL, 1e-9)
}
