package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/dkorolev/statarb/internal/domain"
)

// ArtifactWriter writes the run's output tables under a single directory.
type ArtifactWriter struct {
	dir string
}

// NewArtifactWriter creates the artifact directory if needed.
func NewArtifactWriter(dir string) (*ArtifactWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("dataset: create artifact dir: %w", err)
	}
	return &ArtifactWriter{dir: dir}, nil
}

// Dir returns the artifact directory.
func (w *ArtifactWriter) Dir() string { return w.dir }

// WriteNormalizedCSV writes the normalized quote table in a shape
// ReadNormalizedCSV can load back. Rows are ordered by instrument, then
// timestamp.
func (w *ArtifactWriter) WriteNormalizedCSV(name string, byInstrument map[string][]domain.Quote) (string, error) {
	return w.writeCSV(name, normalizedRows(byInstrument))
}

// WriteNormalizedCSVTo writes the normalized quote table to an arbitrary
// path, creating parent directories as needed.
func WriteNormalizedCSVTo(path string, byInstrument map[string][]domain.Quote) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("dataset: create dir for %s: %w", path, err)
		}
	}
	return writeCSVFile(path, normalizedRows(byInstrument))
}

func normalizedRows(byInstrument map[string][]domain.Quote) [][]string {
	ids := make([]string, 0, len(byInstrument))
	for id := range byInstrument {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := [][]string{{"timestamp", "id", "bid_usd", "ask_usd", "mid_usd", "spread_usd"}}
	for _, id := range ids {
		for _, q := range byInstrument[id] {
			rows = append(rows, []string{
				q.Timestamp.Format(time.RFC3339Nano),
				q.Instrument,
				formatFloat(q.Bid),
				formatFloat(q.Ask),
				formatFloat(q.Mid),
				formatFloat(q.Spread),
			})
		}
	}
	return rows
}

// WriteCandidatesCSV writes the ranked screener output.
func (w *ArtifactWriter) WriteCandidatesCSV(name string, candidates []domain.PairCandidate) (string, error) {
	rows := [][]string{{"instrument_a", "instrument_b", "correlation", "beta", "residual_std", "p_value", "overlap"}}
	for _, c := range candidates {
		rows = append(rows, []string{
			c.InstrumentA,
			c.InstrumentB,
			formatFloat(c.Correlation),
			formatFloat(c.Beta),
			formatFloat(c.ResidualStd),
			formatFloat(c.PValue),
			strconv.Itoa(c.Overlap),
		})
	}
	return w.writeCSV(name, rows)
}

// WriteSignalsCSV writes the per-bar signal table for one pair. Bars with an
// undefined z-score get an empty zscore cell rather than a zero.
func (w *ArtifactWriter) WriteSignalsCSV(series domain.SignalSeries) (string, error) {
	name := fmt.Sprintf("spread_signals_%s_%s.csv", series.InstrumentA, series.InstrumentB)
	rows := [][]string{{"timestamp", "mid_a", "mid_b", "spread", "zscore"}}
	for _, bar := range series.Bars {
		z := ""
		if bar.ZValid {
			z = formatFloat(bar.ZScore)
		}
		rows = append(rows, []string{
			bar.Timestamp.Format(time.RFC3339Nano),
			formatFloat(bar.MidA),
			formatFloat(bar.MidB),
			formatFloat(bar.Spread),
			z,
		})
	}
	return w.writeCSV(name, rows)
}

// WritePnLCSV writes the completed trades of one backtest.
func (w *ArtifactWriter) WritePnLCSV(ledger domain.TradeLedger) (string, error) {
	name := fmt.Sprintf("pnl_%s_%s.csv", ledger.InstrumentA, ledger.InstrumentB)
	rows := [][]string{{
		"entry_timestamp", "exit_timestamp", "direction",
		"entry_price_a", "entry_price_b", "exit_price_a", "exit_price_b",
		"qty_a", "qty_b", "realized_pnl",
	}}
	for _, t := range ledger.Trades {
		rows = append(rows, []string{
			t.EntryTimestamp.Format(time.RFC3339Nano),
			t.ExitTimestamp.Format(time.RFC3339Nano),
			string(t.Direction),
			formatFloat(t.EntryPriceA),
			formatFloat(t.EntryPriceB),
			formatFloat(t.ExitPriceA),
			formatFloat(t.ExitPriceB),
			formatFloat(t.QtyA),
			formatFloat(t.QtyB),
			formatFloat(t.RealizedPnL),
		})
	}
	return w.writeCSV(name, rows)
}

// WriteRunJSON writes the backtest run record, parameters and summary
// included, as an indented JSON document.
func (w *ArtifactWriter) WriteRunJSON(run domain.BacktestRun) (string, error) {
	path := filepath.Join(w.dir, fmt.Sprintf("run_%s.json", run.RunID))
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return "", fmt.Errorf("dataset: marshal run: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("dataset: write run json: %w", err)
	}
	return path, nil
}

func (w *ArtifactWriter) writeCSV(name string, rows [][]string) (string, error) {
	path := filepath.Join(w.dir, name)
	if err := writeCSVFile(path, rows); err != nil {
		return "", err
	}
	return path, nil
}

func writeCSVFile(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dataset: create %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("dataset: write %s: %w", path, err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("dataset: flush %s: %w", path, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
