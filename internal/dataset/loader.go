// Package dataset loads the raw tick table and intraday FX rates, normalizes
// quotes to USD, and writes run artifacts (normalized quotes, signal tables,
// P&L tables, summaries) to disk.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dkorolev/statarb/internal/domain"
)

// RawQuote is one row of the raw tick table before normalization. Bid and Ask
// may be NaN for one-sided rows; those rows are dropped by Normalize.
type RawQuote struct {
	Timestamp  time.Time
	Instrument string
	Bid        float64
	Ask        float64
}

// FXRate is one intraday FX observation. Only the bid side is used for
// conversion.
type FXRate struct {
	Timestamp time.Time
	Bid       float64
}

// ReadQuotesCSV parses the raw tick table. Expected header:
// timestamp,id,bid,ask. Empty bid/ask cells parse as NaN and survive to
// Normalize, which drops them.
func ReadQuotesCSV(path string) ([]RawQuote, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open quotes: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("dataset: read quotes header: %w", err)
	}
	col, err := columnIndex(header, "timestamp", "id", "bid", "ask")
	if err != nil {
		return nil, fmt.Errorf("dataset: quotes %s: %w", path, err)
	}

	var quotes []RawQuote
	line := 1
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataset: quotes line %d: %w", line+1, err)
		}
		line++

		ts, err := parseTimestamp(rec[col["timestamp"]])
		if err != nil {
			return nil, fmt.Errorf("dataset: quotes line %d: %w", line, err)
		}
		quotes = append(quotes, RawQuote{
			Timestamp:  ts,
			Instrument: rec[col["id"]],
			Bid:        parseFloatOrNaN(rec[col["bid"]]),
			Ask:        parseFloatOrNaN(rec[col["ask"]]),
		})
	}
	return quotes, nil
}

// ReadFXCSV parses the intraday FX rate table. Expected header includes
// timestamp and bid; other columns are ignored.
func ReadFXCSV(path string) ([]FXRate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open fx rates: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("dataset: read fx header: %w", err)
	}
	col, err := columnIndex(header, "timestamp", "bid")
	if err != nil {
		return nil, fmt.Errorf("dataset: fx %s: %w", path, err)
	}

	var rates []FXRate
	line := 1
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataset: fx line %d: %w", line+1, err)
		}
		line++

		ts, err := parseTimestamp(rec[col["timestamp"]])
		if err != nil {
			return nil, fmt.Errorf("dataset: fx line %d: %w", line, err)
		}
		rates = append(rates, FXRate{
			Timestamp: ts,
			Bid:       parseFloatOrNaN(rec[col["bid"]]),
		})
	}
	return rates, nil
}

// ReadNormalizedCSV loads a previously written normalized quote table, the
// format produced by WriteNormalizedCSV. Used by the screen and backtest
// modes to skip re-normalization.
func ReadNormalizedCSV(path string) (map[string][]domain.Quote, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open normalized quotes: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("dataset: read normalized header: %w", err)
	}
	col, err := columnIndex(header, "timestamp", "id", "bid_usd", "ask_usd", "mid_usd", "spread_usd")
	if err != nil {
		return nil, fmt.Errorf("dataset: normalized %s: %w", path, err)
	}

	byInstrument := make(map[string][]domain.Quote)
	line := 1
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataset: normalized line %d: %w", line+1, err)
		}
		line++

		ts, err := parseTimestamp(rec[col["timestamp"]])
		if err != nil {
			return nil, fmt.Errorf("dataset: normalized line %d: %w", line, err)
		}
		id := rec[col["id"]]
		byInstrument[id] = append(byInstrument[id], domain.Quote{
			Timestamp:  ts,
			Instrument: id,
			Bid:        parseFloatOrNaN(rec[col["bid_usd"]]),
			Ask:        parseFloatOrNaN(rec[col["ask_usd"]]),
			Mid:        parseFloatOrNaN(rec[col["mid_usd"]]),
			Spread:     parseFloatOrNaN(rec[col["spread_usd"]]),
		})
	}
	return byInstrument, nil
}

// columnIndex maps required column names to their positions in the header.
func columnIndex(header []string, required ...string) (map[string]int, error) {
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, name := range required {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	return col, nil
}

// parseTimestamp accepts RFC 3339 and the common space-separated UTC layout.
func parseTimestamp(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return ts.UTC(), nil
}

func parseFloatOrNaN(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nan
	}
	return v
}
