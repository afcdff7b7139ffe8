package dataset

import (
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/dkorolev/statarb/internal/domain"
)

var nan = math.NaN()

// Normalizer converts raw quotes to USD and produces the clean per-instrument
// quote table the rest of the pipeline consumes.
type Normalizer struct {
	convertPrefixes []string
	logger          *slog.Logger
}

// NewNormalizer creates a Normalizer. Instruments whose id starts with one of
// convertPrefixes are converted quote-currency to USD by dividing both sides
// by the prevailing FX bid; all other instruments pass through unchanged.
func NewNormalizer(convertPrefixes []string, logger *slog.Logger) *Normalizer {
	return &Normalizer{
		convertPrefixes: convertPrefixes,
		logger:          logger.With(slog.String("component", "dataset")),
	}
}

// Normalize performs a backward as-of merge of FX bids onto quotes, converts
// the matched prefixes to USD, derives mid and quoted spread, and drops rows
// with a missing bid, ask, or FX rate. The FX requirement applies to every
// row, not only converted ones. The result is grouped by instrument with
// strictly increasing, de-duplicated timestamps per instrument.
func (n *Normalizer) Normalize(raw []RawQuote, fx []FXRate) (map[string][]domain.Quote, error) {
	sorted := make([]RawQuote, len(raw))
	copy(sorted, raw)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	fxSorted := make([]FXRate, len(fx))
	copy(fxSorted, fx)
	sort.SliceStable(fxSorted, func(i, j int) bool {
		return fxSorted[i].Timestamp.Before(fxSorted[j].Timestamp)
	})

	byInstrument := make(map[string][]domain.Quote)
	dropped := 0
	fxIdx := -1
	for _, q := range sorted {
		// Advance the as-of cursor: the last FX observation at or before
		// the quote timestamp.
		for fxIdx+1 < len(fxSorted) && !fxSorted[fxIdx+1].Timestamp.After(q.Timestamp) {
			fxIdx++
		}

		if math.IsNaN(q.Bid) || math.IsNaN(q.Ask) {
			dropped++
			continue
		}
		// Every row requires a prevailing FX observation, converted or
		// not; the as-of merge leaves pre-FX rows incomplete and they
		// are dropped with the NaN rows.
		if fxIdx < 0 || math.IsNaN(fxSorted[fxIdx].Bid) {
			dropped++
			continue
		}

		bid, ask := q.Bid, q.Ask
		if n.needsConversion(q.Instrument) {
			rate := fxSorted[fxIdx].Bid
			bid /= rate
			ask /= rate
		}

		byInstrument[q.Instrument] = append(byInstrument[q.Instrument], domain.Quote{
			Timestamp:  q.Timestamp,
			Instrument: q.Instrument,
			Bid:        bid,
			Ask:        ask,
			Mid:        (ask + bid) / 2,
			Spread:     ask - bid,
		})
	}

	kept := 0
	for id, quotes := range byInstrument {
		deduped, err := dedupe(id, quotes)
		if err != nil {
			return nil, err
		}
		byInstrument[id] = deduped
		kept += len(deduped)
	}

	n.logger.Info("quotes normalized",
		slog.Int("instruments", len(byInstrument)),
		slog.Int("rows", kept),
		slog.Int("dropped", dropped),
	)
	return byInstrument, nil
}

func (n *Normalizer) needsConversion(id string) bool {
	for _, p := range n.convertPrefixes {
		if strings.HasPrefix(id, p) {
			return true
		}
	}
	return false
}

// dedupe keeps the last quote per timestamp and verifies the result is
// strictly increasing. The input is already time-sorted.
func dedupe(instrument string, quotes []domain.Quote) ([]domain.Quote, error) {
	out := quotes[:0]
	for _, q := range quotes {
		if len(out) > 0 && out[len(out)-1].Timestamp.Equal(q.Timestamp) {
			out[len(out)-1] = q
			continue
		}
		if len(out) > 0 && q.Timestamp.Before(out[len(out)-1].Timestamp) {
			return nil, &domain.DataError{
				Instrument: instrument,
				Timestamp:  q.Timestamp,
				Reason:     "timestamps not monotonic",
			}
		}
		out = append(out, q)
	}
	return out, nil
}

// PriceTable extracts the mid-price series per instrument from normalized
// quotes, the input shape the return computer and screener expect.
func PriceTable(byInstrument map[string][]domain.Quote) map[string]domain.PriceSeries {
	table := make(map[string]domain.PriceSeries, len(byInstrument))
	for id, quotes := range byInstrument {
		points := make([]domain.PricePoint, len(quotes))
		for i, q := range quotes {
			points[i] = domain.PricePoint{Timestamp: q.Timestamp, Value: q.Mid}
		}
		table[id] = domain.PriceSeries{Instrument: id, Points: points}
	}
	return table
}
