package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkorolev/statarb/internal/config"
	"github.com/dkorolev/statarb/internal/dataset"
	"github.com/dkorolev/statarb/internal/domain"
	"github.com/dkorolev/statarb/internal/notify"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writePipelineInputs produces a small two-instrument universe: aaa drifts
// with a sine wobble, bbb drifts at half the rate. Neither id matches the
// conversion prefix, so the FX table is loaded but left unused.
func writePipelineInputs(t *testing.T, dir string) (quotesPath, fxPath string) {
	t.Helper()

	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	var b strings.Builder
	b.WriteString("timestamp,id,bid,ask\n")
	for i := 0; i < 150; i++ {
		ts := start.Add(time.Duration(i) * time.Second).Format(time.RFC3339Nano)
		midA := 100 + 0.01*float64(i) + 0.3*math.Sin(float64(i)/7)
		midB := 50 + 0.005*float64(i)
		fmt.Fprintf(&b, "%s,aaa,%.6f,%.6f\n", ts, midA-0.05, midA+0.05)
		fmt.Fprintf(&b, "%s,bbb,%.6f,%.6f\n", ts, midB-0.05, midB+0.05)
	}
	quotesPath = filepath.Join(dir, "quotes.csv")
	require.NoError(t, os.WriteFile(quotesPath, []byte(b.String()), 0o644))

	fx := "timestamp,bid\n" +
		start.Add(-time.Minute).Format(time.RFC3339Nano) + ",7.1\n"
	fxPath = filepath.Join(dir, "fx.csv")
	require.NoError(t, os.WriteFile(fxPath, []byte(fx), 0o644))

	return quotesPath, fxPath
}

func pipelineConfig(t *testing.T, dir string) *config.Config {
	t.Helper()

	cfg := config.Defaults()
	cfg.Mode = "full"
	cfg.Data.QuotesCSV, cfg.Data.FXRatesCSV = writePipelineInputs(t, dir)
	cfg.Data.NormalizedCSV = filepath.Join(dir, "normalized.csv")
	cfg.Artifacts.Dir = filepath.Join(dir, "artifacts")
	cfg.Signal.PairA = "aaa"
	cfg.Signal.PairB = "bbb"
	cfg.Signal.Window = 20
	require.NoError(t, cfg.Validate())
	return &cfg
}

func fileOnlyDeps() *Dependencies {
	return &Dependencies{
		Notifier: notify.NewNotifier(nil, nil, testLogger()),
	}
}

func TestFullModeFileOnly(t *testing.T) {
	dir := t.TempDir()
	cfg := pipelineConfig(t, dir)
	a := New(cfg, testLogger())

	require.NoError(t, a.FullMode(context.Background(), fileOnlyDeps()))

	// Normalize stage output, both the artifact copy and the configured
	// pipeline input for later standalone runs.
	assert.FileExists(t, cfg.Data.NormalizedCSV)
	assert.FileExists(t, filepath.Join(cfg.Artifacts.Dir, "normalized_quotes.csv"))

	quotes, err := dataset.ReadNormalizedCSV(cfg.Data.NormalizedCSV)
	require.NoError(t, err)
	require.Len(t, quotes["aaa"], 150)
	require.Len(t, quotes["bbb"], 150)

	// Screen stage artifact. The default overlap floor is well above 150
	// observations, so the candidate table is header-only.
	candidateFiles, err := filepath.Glob(filepath.Join(cfg.Artifacts.Dir, "candidates_*.csv"))
	require.NoError(t, err)
	require.Len(t, candidateFiles, 1)

	// Backtest stage artifacts for the configured pair.
	assert.FileExists(t, filepath.Join(cfg.Artifacts.Dir, "spread_signals_aaa_bbb.csv"))
	assert.FileExists(t, filepath.Join(cfg.Artifacts.Dir, "pnl_aaa_bbb.csv"))

	runFiles, err := filepath.Glob(filepath.Join(cfg.Artifacts.Dir, "run_*.json"))
	require.NoError(t, err)
	require.Len(t, runFiles, 1)

	data, err := os.ReadFile(runFiles[0])
	require.NoError(t, err)
	var run domain.BacktestRun
	require.NoError(t, json.Unmarshal(data, &run))
	assert.Equal(t, "aaa", run.InstrumentA)
	assert.Equal(t, "bbb", run.InstrumentB)
	assert.Equal(t, cfg.Signal.Window, run.Window)
	assert.GreaterOrEqual(t, run.Summary.TotalTrades, 0)
	if run.Summary.TotalTrades == 0 {
		// Undefined statistics must survive the JSON round trip as NaN.
		assert.True(t, math.IsNaN(run.Summary.Sharpe))
		assert.Zero(t, run.Summary.TotalPnL)
	}
}

func TestNormalizeThenScreenStandalone(t *testing.T) {
	dir := t.TempDir()
	cfg := pipelineConfig(t, dir)
	a := New(cfg, testLogger())
	deps := fileOnlyDeps()

	require.NoError(t, a.NormalizeMode(context.Background(), deps))
	require.NoError(t, a.ScreenMode(context.Background(), deps))

	files, err := filepath.Glob(filepath.Join(cfg.Artifacts.Dir, "candidates_*.csv"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestRunRejectsUnknownMode(t *testing.T) {
	dir := t.TempDir()
	cfg := pipelineConfig(t, dir)
	cfg.Mode = "replay"
	a := New(cfg, testLogger())

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported mode")
}
