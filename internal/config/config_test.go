package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "replay"
	cfg.Signal.Window = 1
	cfg.Strategy.ZEntry = -1
	cfg.Strategy.SlippageMode = "vwap"

	err := cfg.Validate()
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "unknown mode")
	assert.Contains(t, msg, "window must be >= 2")
	assert.Contains(t, msg, "z_entry must be > 0")
	assert.Contains(t, msg, "unknown slippage_mode")
}

func TestValidateExitBelowEntry(t *testing.T) {
	cfg := Defaults()
	cfg.Strategy.ZEntry = 2
	cfg.Strategy.ZExit = 3

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "z_exit")
}

func TestValidatePairMustBeSetTogether(t *testing.T) {
	cfg := Defaults()
	cfg.Signal.PairA = "cu_a"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pair_a and pair_b")

	cfg.Signal.PairB = "cu_a"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")
}

func TestValidateTickModeNeedsTickParams(t *testing.T) {
	cfg := Defaults()
	cfg.Strategy.SlippageMode = "tick"
	cfg.Strategy.TickSizeA = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tick sizes")
}

func TestValidateDatabaseOnlyWhenEnabled(t *testing.T) {
	cfg := Defaults()
	cfg.Database.Enabled = false
	cfg.Database.Host = ""
	require.NoError(t, cfg.Validate())

	cfg.Database.Enabled = true
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database: host")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
mode = "screen"

[screener]
min_overlap = 250

[strategy]
z_entry = 4.0
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "screen", cfg.Mode)
	assert.Equal(t, 250, cfg.Screener.MinOverlap)
	assert.InDelta(t, 4.0, cfg.Strategy.ZEntry, 1e-12)
	// Untouched fields keep their defaults.
	assert.InDelta(t, 0.5, cfg.Screener.MinCorrelation, 1e-12)
	assert.Equal(t, 60, cfg.Signal.Window)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`mode = "screen"`), 0o644))

	t.Setenv("STATARB_MODE", "backtest")
	t.Setenv("STATARB_STRATEGY_Z_ENTRY", "3.5")
	t.Setenv("STATARB_DATA_CONVERT_PREFIXES", "shfe, lme")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "backtest", cfg.Mode)
	assert.InDelta(t, 3.5, cfg.Strategy.ZEntry, 1e-12)
	assert.Equal(t, []string{"shfe", "lme"}, cfg.Data.ConvertPrefixes)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}
