package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies STATARB_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known STATARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject credentials at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Data ──
	setStr(&cfg.Data.QuotesCSV, "STATARB_DATA_QUOTES_CSV")
	setStr(&cfg.Data.FXRatesCSV, "STATARB_DATA_FX_RATES_CSV")
	setStr(&cfg.Data.NormalizedCSV, "STATARB_DATA_NORMALIZED_CSV")
	setStringSlice(&cfg.Data.ConvertPrefixes, "STATARB_DATA_CONVERT_PREFIXES")

	// ── Screener ──
	setFloat64(&cfg.Screener.MinCorrelation, "STATARB_SCREENER_MIN_CORRELATION")
	setInt(&cfg.Screener.MinOverlap, "STATARB_SCREENER_MIN_OVERLAP")
	setFloat64(&cfg.Screener.SignificanceLevel, "STATARB_SCREENER_SIGNIFICANCE_LEVEL")
	setInt(&cfg.Screener.ADFLags, "STATARB_SCREENER_ADF_LAGS")
	setInt(&cfg.Screener.Workers, "STATARB_SCREENER_WORKERS")
	setInt(&cfg.Screener.MaxInstruments, "STATARB_SCREENER_MAX_INSTRUMENTS")

	// ── Signal ──
	setStr(&cfg.Signal.PairA, "STATARB_SIGNAL_PAIR_A")
	setStr(&cfg.Signal.PairB, "STATARB_SIGNAL_PAIR_B")
	setInt(&cfg.Signal.Window, "STATARB_SIGNAL_WINDOW")

	// ── Strategy ──
	setFloat64(&cfg.Strategy.ZEntry, "STATARB_STRATEGY_Z_ENTRY")
	setFloat64(&cfg.Strategy.ZExit, "STATARB_STRATEGY_Z_EXIT")
	setFloat64(&cfg.Strategy.NotionalPerLeg, "STATARB_STRATEGY_NOTIONAL_PER_LEG")
	setStr(&cfg.Strategy.SlippageMode, "STATARB_STRATEGY_SLIPPAGE_MODE")
	setFloat64(&cfg.Strategy.TickSizeA, "STATARB_STRATEGY_TICK_SIZE_A")
	setFloat64(&cfg.Strategy.TickSizeB, "STATARB_STRATEGY_TICK_SIZE_B")
	setFloat64(&cfg.Strategy.TickValueA, "STATARB_STRATEGY_TICK_VALUE_A")
	setFloat64(&cfg.Strategy.TickValueB, "STATARB_STRATEGY_TICK_VALUE_B")
	setBool(&cfg.Strategy.ForceCloseAtEnd, "STATARB_STRATEGY_FORCE_CLOSE_AT_END")

	// ── Report ──
	setFloat64(&cfg.Report.AnnualizationFactor, "STATARB_REPORT_ANNUALIZATION_FACTOR")

	// ── Artifacts ──
	setStr(&cfg.Artifacts.Dir, "STATARB_ARTIFACTS_DIR")
	setBool(&cfg.Artifacts.Archive, "STATARB_ARTIFACTS_ARCHIVE")

	// ── Database ──
	setBool(&cfg.Database.Enabled, "STATARB_DATABASE_ENABLED")
	setStr(&cfg.Database.DSN, "STATARB_DATABASE_DSN")
	setStr(&cfg.Database.Host, "STATARB_DATABASE_HOST")
	setInt(&cfg.Database.Port, "STATARB_DATABASE_PORT")
	setStr(&cfg.Database.Database, "STATARB_DATABASE_NAME")
	setStr(&cfg.Database.User, "STATARB_DATABASE_USER")
	setStr(&cfg.Database.Password, "STATARB_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "STATARB_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "STATARB_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "STATARB_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "STATARB_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "STATARB_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "STATARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "STATARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "STATARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "STATARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "STATARB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "STATARB_REDIS_TLS_ENABLED")
	setInt(&cfg.Redis.CacheTTLMinutes, "STATARB_REDIS_CACHE_TTL_MINUTES")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "STATARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "STATARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "STATARB_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "STATARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "STATARB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "STATARB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "STATARB_S3_FORCE_PATH_STYLE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "STATARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "STATARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "STATARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "STATARB_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "STATARB_MODE")
	setStr(&cfg.LogLevel, "STATARB_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
