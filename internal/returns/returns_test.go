package returns

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkorolev/statarb/internal/domain"
)

func ts(i int) time.Time {
	return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Minute)
}

func series(id string, prices ...float64) domain.PriceSeries {
	points := make([]domain.PricePoint, len(prices))
	for i, p := range prices {
		points[i] = domain.PricePoint{Timestamp: ts(i), Value: p}
	}
	return domain.PriceSeries{Instrument: id, Points: points}
}

func TestComputeLogReturns(t *testing.T) {
	matrix, err := Compute([]domain.PriceSeries{series("cu", 100, 110, 99)})
	require.NoError(t, err)

	rs, ok := matrix.Series["cu"]
	require.True(t, ok)
	require.Len(t, rs.Order, 2)

	assert.InDelta(t, math.Log(110.0/100.0), rs.ByTime[ts(1)], 1e-12)
	assert.InDelta(t, math.Log(99.0/110.0), rs.ByTime[ts(2)], 1e-12)
	assert.Equal(t, []time.Time{ts(1), ts(2)}, rs.Order)
}

func TestComputeSkipsShortSeries(t *testing.T) {
	matrix, err := Compute([]domain.PriceSeries{
		series("one", 100),
		series("ok", 100, 101, 102),
	})
	require.NoError(t, err)

	_, ok := matrix.Series["one"]
	assert.False(t, ok)
	_, ok = matrix.Series["ok"]
	assert.True(t, ok)
}

func TestComputeRejectsNonPositivePrice(t *testing.T) {
	_, err := Compute([]domain.PriceSeries{series("bad", 100, 0, 101)})
	require.Error(t, err)

	var dataErr *domain.DataError
	require.ErrorAs(t, err, &dataErr)
	assert.Equal(t, "bad", dataErr.Instrument)
}

func TestComputeRejectsNonMonotonicTimestamps(t *testing.T) {
	s := domain.PriceSeries{
		Instrument: "bad",
		Points: []domain.PricePoint{
			{Timestamp: ts(1), Value: 100},
			{Timestamp: ts(0), Value: 101},
		},
	}
	_, err := Compute([]domain.PriceSeries{s})
	require.Error(t, err)

	var dataErr *domain.DataError
	require.ErrorAs(t, err, &dataErr)
}

func TestOverlapIntersection(t *testing.T) {
	// a has returns at minutes 1..3, b only at minutes 2..3.
	a := series("a", 100, 101, 102, 103)
	b := domain.PriceSeries{
		Instrument: "b",
		Points: []domain.PricePoint{
			{Timestamp: ts(1), Value: 50},
			{Timestamp: ts(2), Value: 51},
			{Timestamp: ts(3), Value: 52},
		},
	}

	matrix, err := Compute([]domain.PriceSeries{a, b})
	require.NoError(t, err)

	times, va, vb := Overlap(matrix.Series["a"], matrix.Series["b"])
	require.Equal(t, []time.Time{ts(2), ts(3)}, times)
	require.Len(t, va, 2)
	require.Len(t, vb, 2)
	assert.InDelta(t, math.Log(102.0/101.0), va[0], 1e-12)
	assert.InDelta(t, math.Log(51.0/50.0), vb[0], 1e-12)
}

func TestOverlapDisjoint(t *testing.T) {
	a := series("a", 100, 101)
	b := domain.PriceSeries{
		Instrument: "b",
		Points: []domain.PricePoint{
			{Timestamp: ts(10), Value: 50},
			{Timestamp: ts(11), Value: 51},
		},
	}

	matrix, err := Compute([]domain.PriceSeries{a, b})
	require.NoError(t, err)

	times, va, vb := Overlap(matrix.Series["a"], matrix.Series["b"])
	assert.Empty(t, times)
	assert.Empty(t, va)
	assert.Empty(t, vb)
}
