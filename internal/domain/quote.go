// Package domain defines the core data model of the statarb research
// pipeline: normalized quotes, pair candidates, signal series, trades, and
// the store interfaces their persistence layers implement.
package domain

import (
	"sort"
	"time"
)

// Quote is one normalized observation for a single instrument. Prices are in
// USD after FX conversion; Spread is the quoted ask-bid width and Mid the
// quote midpoint.
type Quote struct {
	Timestamp  time.Time
	Instrument string
	Bid        float64
	Ask        float64
	Mid        float64
	Spread     float64
}

// PricePoint is a (timestamp, value) observation inside a PriceSeries.
type PricePoint struct {
	Timestamp time.Time
	Value     float64
}

// PriceSeries is the ordered mid-price history of one instrument. Timestamps
// are strictly increasing; duplicates are removed during normalization.
type PriceSeries struct {
	Instrument string
	Points     []PricePoint
}

// Len returns the number of observations in the series.
func (s PriceSeries) Len() int { return len(s.Points) }

// ReturnSeries holds the log returns of one instrument keyed by timestamp.
// A return exists at t only when the instrument has a mid price at t and at
// its immediately preceding observation, so the mapping is sparse and never
// forward-filled.
type ReturnSeries struct {
	Instrument string
	ByTime     map[time.Time]float64
	Order      []time.Time
}

// ReturnMatrix is the per-instrument collection of return series sharing one
// logical timestamp grid. Alignment between two instruments is computed
// pairwise over the intersection of their own timestamps.
type ReturnMatrix struct {
	Series map[string]ReturnSeries
}

// Instruments returns the instrument ids present in the matrix in
// lexicographic order.
func (m ReturnMatrix) Instruments() []string {
	ids := make([]string, 0, len(m.Series))
	for id := range m.Series {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
