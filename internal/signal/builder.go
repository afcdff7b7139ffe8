// Package signal constructs the spread and rolling z-score series for one
// directed instrument pair. The rolling statistics use a trailing window
// ending at the current bar, never a centered one, so every value is
// computable from past and current data only.
package signal

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/dkorolev/statarb/internal/domain"
)

// Builder turns two normalized quote series and a hedge ratio into a
// SignalSeries.
type Builder struct {
	window int
	logger *slog.Logger
}

// NewBuilder creates a Builder with the given rolling window length.
func NewBuilder(window int, logger *slog.Logger) *Builder {
	return &Builder{
		window: window,
		logger: logger.With(slog.String("component", "signal")),
	}
}

// Build aligns the two quote series on their common timestamps, computes
// spread[t] = mid_A[t] − beta·mid_B[t], and standardizes it against the
// trailing rolling mean and sample standard deviation. Bars inside the first
// window−1 positions, and bars where the rolling standard deviation is zero,
// are marked invalid rather than given a zero z-score.
func (b *Builder) Build(instrumentA, instrumentB string, quotesA, quotesB []domain.Quote, beta float64) (domain.SignalSeries, error) {
	series := domain.SignalSeries{
		InstrumentA: instrumentA,
		InstrumentB: instrumentB,
		Beta:        beta,
		Window:      b.window,
	}

	byTimeB := make(map[time.Time]domain.Quote, len(quotesB))
	for _, q := range quotesB {
		byTimeB[q.Timestamp] = q
	}

	// Common timestamps in A's order; A is normalized, hence sorted.
	common := make([]time.Time, 0, len(quotesA))
	bars := make([]domain.SignalBar, 0, len(quotesA))
	for _, qa := range quotesA {
		qb, ok := byTimeB[qa.Timestamp]
		if !ok {
			continue
		}
		common = append(common, qa.Timestamp)
		bars = append(bars, domain.SignalBar{
			Timestamp:     qa.Timestamp,
			MidA:          qa.Mid,
			MidB:          qb.Mid,
			BidA:          qa.Bid,
			AskA:          qa.Ask,
			BidB:          qb.Bid,
			AskB:          qb.Ask,
			QuotedSpreadA: qa.Spread,
			QuotedSpreadB: qb.Spread,
			Spread:        qa.Mid - beta*qb.Mid,
		})
	}

	if len(bars) == 0 {
		return series, fmt.Errorf("signal: %s/%s have no common timestamps: %w",
			instrumentA, instrumentB, domain.ErrInsufficientHistory)
	}
	if !sort.SliceIsSorted(common, func(i, j int) bool { return common[i].Before(common[j]) }) {
		return series, &domain.DataError{
			Instrument: instrumentA,
			Reason:     "quote timestamps out of order",
		}
	}

	b.roll(bars)

	valid := 0
	for i := range bars {
		if bars[i].ZValid {
			valid++
		}
	}
	b.logger.Info("signal series built",
		slog.String("pair", instrumentA+"/"+instrumentB),
		slog.Float64("beta", beta),
		slog.Int("bars", len(bars)),
		slog.Int("valid_bars", valid),
	)

	series.Bars = bars
	return series, nil
}

// roll fills in the rolling z-score over bars in place, maintaining running
// window sums so the pass stays linear in the number of bars.
func (b *Builder) roll(bars []domain.SignalBar) {
	w := b.window
	var sum, sumSq float64

	for i := range bars {
		s := bars[i].Spread
		sum += s
		sumSq += s * s
		if i >= w {
			old := bars[i-w].Spread
			sum -= old
			sumSq -= old * old
		}

		if i < w-1 {
			continue // window incomplete, z undefined
		}

		n := float64(w)
		mean := sum / n
		// Sample variance over the window; clamp tiny negatives from
		// floating-point cancellation.
		variance := (sumSq - n*mean*mean) / (n - 1)
		if variance < 0 {
			variance = 0
		}
		std := math.Sqrt(variance)
		if std == 0 {
			continue // degenerate window, z undefined
		}

		bars[i].ZScore = (s - mean) / std
		bars[i].ZValid = true
	}
}
