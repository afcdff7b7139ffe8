// Package returns derives per-instrument log-return series from normalized
// mid-price series. Alignment is strictly per instrument: the return at t
// uses the instrument's own immediately preceding observation, never a
// neighboring instrument's grid, which is what keeps the downstream pairwise
// statistics free of lookahead bias.
package returns

import (
	"fmt"
	"math"
	"time"

	"github.com/dkorolev/statarb/internal/domain"
)

// Compute builds a ReturnMatrix from the given price series. Instruments
// with fewer than two observations contribute no return entries. A
// non-positive price or a non-increasing timestamp is a data error that
// aborts the affected instrument's computation.
func Compute(series []domain.PriceSeries) (domain.ReturnMatrix, error) {
	matrix := domain.ReturnMatrix{Series: make(map[string]domain.ReturnSeries, len(series))}

	for _, s := range series {
		if s.Len() < 2 {
			continue
		}

		rs := domain.ReturnSeries{
			Instrument: s.Instrument,
			ByTime:     make(map[time.Time]float64, s.Len()-1),
			Order:      make([]time.Time, 0, s.Len()-1),
		}

		prev := s.Points[0]
		if prev.Value <= 0 {
			return domain.ReturnMatrix{}, &domain.DataError{
				Instrument: s.Instrument,
				Timestamp:  prev.Timestamp,
				Reason:     fmt.Sprintf("non-positive mid price %g", prev.Value),
			}
		}

		for _, p := range s.Points[1:] {
			if !p.Timestamp.After(prev.Timestamp) {
				return domain.ReturnMatrix{}, &domain.DataError{
					Instrument: s.Instrument,
					Timestamp:  p.Timestamp,
					Reason:     "timestamps not strictly increasing",
				}
			}
			if p.Value <= 0 {
				return domain.ReturnMatrix{}, &domain.DataError{
					Instrument: s.Instrument,
					Timestamp:  p.Timestamp,
					Reason:     fmt.Sprintf("non-positive mid price %g", p.Value),
				}
			}

			rs.ByTime[p.Timestamp] = math.Log(p.Value) - math.Log(prev.Value)
			rs.Order = append(rs.Order, p.Timestamp)
			prev = p
		}

		matrix.Series[s.Instrument] = rs
	}

	return matrix, nil
}

// Overlap returns the timestamps at which both instruments have a return,
// in a's observation order, together with the two aligned value slices.
func Overlap(a, b domain.ReturnSeries) (times []time.Time, va, vb []float64) {
	for _, ts := range a.Order {
		rb, ok := b.ByTime[ts]
		if !ok {
			continue
		}
		times = append(times, ts)
		va = append(va, a.ByTime[ts])
		vb = append(vb, rb)
	}
	return times, va, vb
}
