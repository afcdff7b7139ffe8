// Package config defines the top-level configuration for the statarb
// pipeline and provides validation helpers.
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by STATARB_* environment
// variables.
type Config struct {
	Data      DataConfig      `toml:"data"`
	Screener  ScreenerConfig  `toml:"screener"`
	Signal    SignalConfig    `toml:"signal"`
	Strategy  StrategyConfig  `toml:"strategy"`
	Report    ReportConfig    `toml:"report"`
	Artifacts ArtifactsConfig `toml:"artifacts"`
	Database  DatabaseConfig  `toml:"database"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// DataConfig describes the raw input files and the normalization rules.
type DataConfig struct {
	// QuotesCSV is the raw tick table with columns timestamp,id,bid,ask.
	QuotesCSV string `toml:"quotes_csv"`
	// FXRatesCSV is the intraday FX table with columns timestamp,bid.
	FXRatesCSV string `toml:"fx_rates_csv"`
	// NormalizedCSV is where the normalized quote table is written (and read
	// back by the screen/backtest modes).
	NormalizedCSV string `toml:"normalized_csv"`
	// ConvertPrefixes lists instrument-id prefixes whose quotes are divided
	// by the FX bid to normalize them to USD.
	ConvertPrefixes []string `toml:"convert_prefixes"`
}

// ScreenerConfig holds the pair screening thresholds.
type ScreenerConfig struct {
	MinCorrelation    float64 `toml:"min_correlation"`
	MinOverlap        int     `toml:"min_overlap"`
	SignificanceLevel float64 `toml:"significance_level"`
	// ADFLags is the number of lagged difference terms in the residual
	// stationarity test. Negative means the Schwert rule based on sample
	// size.
	ADFLags int `toml:"adf_lags"`
	// Workers bounds the parallel pair evaluations. Zero means GOMAXPROCS.
	Workers int `toml:"workers"`
	// MaxInstruments warns when the universe exceeds this size, since the
	// scan is quadratic in instrument count. Zero disables the warning.
	MaxInstruments int `toml:"max_instruments"`
}

// SignalConfig holds the signal construction parameters.
type SignalConfig struct {
	// PairA/PairB select the pair to trade. Empty means the top-ranked
	// screener candidate.
	PairA string `toml:"pair_a"`
	PairB string `toml:"pair_b"`
	// Window is the rolling window length in bars for the z-score.
	Window int `toml:"window"`
}

// StrategyConfig holds the strategy engine parameters.
type StrategyConfig struct {
	ZEntry         float64 `toml:"z_entry"`
	ZExit          float64 `toml:"z_exit"`
	NotionalPerLeg float64 `toml:"notional_per_leg"`
	// SlippageMode is "spread" (every fill pays the full quoted bid/ask
	// width on top of the touch) or "tick" (cost scaled by tick size and
	// value). The spread model is intentionally aggressive; see README.
	SlippageMode string `toml:"slippage_mode"`
	// TickSize/TickValue parameterize the "tick" slippage mode per leg.
	TickSizeA  float64 `toml:"tick_size_a"`
	TickSizeB  float64 `toml:"tick_size_b"`
	TickValueA float64 `toml:"tick_value_a"`
	TickValueB float64 `toml:"tick_value_b"`
	// ForceCloseAtEnd closes any open position at the final bar.
	ForceCloseAtEnd bool `toml:"force_close_at_end"`
}

// ReportConfig holds the metrics aggregation parameters.
type ReportConfig struct {
	// AnnualizationFactor scales the per-trade Sharpe ratio, e.g. 252 for
	// daily-resolution P&L.
	AnnualizationFactor float64 `toml:"annualization_factor"`
}

// ArtifactsConfig controls where run outputs are written.
type ArtifactsConfig struct {
	Dir     string `toml:"dir"`
	Archive bool   `toml:"archive"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled         bool   `toml:"enabled"`
	Addr            string `toml:"addr"`
	Password        string `toml:"password"`
	DB              int    `toml:"db"`
	PoolSize        int    `toml:"pool_size"`
	MaxRetries      int    `toml:"max_retries"`
	TLSEnabled      bool   `toml:"tls_enabled"`
	CacheTTLMinutes int    `toml:"cache_ttl_minutes"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with the documented default values.
func Defaults() Config {
	return Config{
		Data: DataConfig{
			QuotesCSV:       "data/quotes.csv",
			FXRatesCSV:      "data/fx_rates_intraday.csv",
			NormalizedCSV:   "data/normalized_quotes.csv",
			ConvertPrefixes: []string{"shfe"},
		},
		Screener: ScreenerConfig{
			MinCorrelation:    0.5,
			MinOverlap:        500,
			SignificanceLevel: 0.05,
			ADFLags:           -1,
			Workers:           0,
			MaxInstruments:    64,
		},
		Signal: SignalConfig{
			Window: 60,
		},
		Strategy: StrategyConfig{
			ZEntry:          6.0,
			ZExit:           0.0,
			NotionalPerLeg:  100_000,
			SlippageMode:    "spread",
			TickSizeA:       0.01,
			TickSizeB:       0.01,
			TickValueA:      1.0,
			TickValueB:      1.0,
			ForceCloseAtEnd: false,
		},
		Report: ReportConfig{
			AnnualizationFactor: 252,
		},
		Artifacts: ArtifactsConfig{
			Dir:     "artifacts",
			Archive: false,
		},
		Database: DatabaseConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "statarb",
			User:          "statarb",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:         false,
			Addr:            "localhost:6379",
			DB:              0,
			PoolSize:        20,
			MaxRetries:      3,
			CacheTTLMinutes: 60,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "statarb-artifacts",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Notify: NotifyConfig{
			Events: []string{"screen_complete", "backtest_complete", "run_failed"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"normalize": true,
	"screen":    true,
	"backtest":  true,
	"full":      true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validSlippageModes enumerates the accepted slippage models.
var validSlippageModes = map[string]bool{
	"spread": true,
	"tick":   true,
}

// Validate checks Config for invalid or missing values and returns a combined
// error describing every problem found. It runs before any computation, so a
// bad threshold never reaches the pipeline.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: normalize, screen, backtest, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Data
	if c.Data.QuotesCSV == "" && (c.Mode == "normalize" || c.Mode == "full") {
		errs = append(errs, "data: quotes_csv must not be empty for mode "+c.Mode)
	}
	if c.Data.NormalizedCSV == "" {
		errs = append(errs, "data: normalized_csv must not be empty")
	}

	// Screener
	if c.Screener.MinCorrelation < 0 || c.Screener.MinCorrelation >= 1 {
		errs = append(errs, fmt.Sprintf("screener: min_correlation must be in [0, 1), got %g", c.Screener.MinCorrelation))
	}
	if c.Screener.MinOverlap < 2 {
		errs = append(errs, fmt.Sprintf("screener: min_overlap must be >= 2, got %d", c.Screener.MinOverlap))
	}
	if c.Screener.SignificanceLevel <= 0 || c.Screener.SignificanceLevel >= 1 {
		errs = append(errs, fmt.Sprintf("screener: significance_level must be in (0, 1), got %g", c.Screener.SignificanceLevel))
	}
	if c.Screener.Workers < 0 {
		errs = append(errs, fmt.Sprintf("screener: workers must be >= 0, got %d", c.Screener.Workers))
	}

	// Signal
	if c.Signal.Window < 2 {
		errs = append(errs, fmt.Sprintf("signal: window must be >= 2, got %d", c.Signal.Window))
	}
	if (c.Signal.PairA == "") != (c.Signal.PairB == "") {
		errs = append(errs, "signal: pair_a and pair_b must be set together or both left empty")
	}
	if c.Signal.PairA != "" && c.Signal.PairA == c.Signal.PairB {
		errs = append(errs, "signal: pair_a and pair_b must differ")
	}

	// Strategy
	if c.Strategy.ZEntry <= 0 {
		errs = append(errs, fmt.Sprintf("strategy: z_entry must be > 0, got %g", c.Strategy.ZEntry))
	}
	if c.Strategy.ZExit >= c.Strategy.ZEntry {
		errs = append(errs, fmt.Sprintf("strategy: z_exit (%g) must be below z_entry (%g)", c.Strategy.ZExit, c.Strategy.ZEntry))
	}
	if c.Strategy.NotionalPerLeg <= 0 {
		errs = append(errs, fmt.Sprintf("strategy: notional_per_leg must be > 0, got %g", c.Strategy.NotionalPerLeg))
	}
	if !validSlippageModes[c.Strategy.SlippageMode] {
		errs = append(errs, fmt.Sprintf("strategy: unknown slippage_mode %q (valid: spread, tick)", c.Strategy.SlippageMode))
	}
	if c.Strategy.SlippageMode == "tick" {
		if c.Strategy.TickSizeA <= 0 || c.Strategy.TickSizeB <= 0 {
			errs = append(errs, "strategy: tick sizes must be > 0 in tick slippage mode")
		}
		if c.Strategy.TickValueA <= 0 || c.Strategy.TickValueB <= 0 {
			errs = append(errs, "strategy: tick values must be > 0 in tick slippage mode")
		}
	}

	// Report
	if c.Report.AnnualizationFactor <= 0 {
		errs = append(errs, fmt.Sprintf("report: annualization_factor must be > 0, got %g", c.Report.AnnualizationFactor))
	}

	// Artifacts
	if c.Artifacts.Dir == "" {
		errs = append(errs, "artifacts: dir must not be empty")
	}

	// Database
	if c.Database.Enabled {
		if strings.TrimSpace(c.Database.DSN) == "" {
			if c.Database.Host == "" {
				errs = append(errs, "database: host must not be empty (or set database.dsn)")
			}
			if c.Database.Port <= 0 || c.Database.Port > 65535 {
				errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
			}
			if c.Database.Database == "" {
				errs = append(errs, "database: database must not be empty")
			}
		}
		if c.Database.PoolMaxConns < 1 {
			errs = append(errs, "database: pool_max_conns must be >= 1")
		}
		if c.Database.PoolMinConns < 0 {
			errs = append(errs, "database: pool_min_conns must be >= 0")
		}
		if c.Database.PoolMinConns > c.Database.PoolMaxConns {
			errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.Artifacts.Archive {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when artifacts.archive is set")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when artifacts.archive is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
