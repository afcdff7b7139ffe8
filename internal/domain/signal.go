package domain

import "time"

// SignalBar is one bar of a pair's trading signal. It bundles the model
// spread and its rolling z-score with the executable quotes of both legs, so
// the strategy engine can price fills without a second lookup.
//
// ZValid is false while the rolling window is incomplete or the rolling
// standard deviation is zero; such bars carry no signal and must be skipped,
// never treated as z = 0.
type SignalBar struct {
	Timestamp time.Time

	MidA, MidB     float64
	BidA, AskA     float64
	BidB, AskB     float64
	QuotedSpreadA  float64
	QuotedSpreadB  float64

	Spread float64
	ZScore float64
	ZValid bool
}

// SignalSeries is the ordered signal for one directed pair, produced by the
// signal builder and consumed bar-by-bar by the strategy engine.
type SignalSeries struct {
	InstrumentA string
	InstrumentB string
	Beta        float64
	Window      int
	Bars        []SignalBar
}
