package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/dkorolev/statarb/internal/blob/s3"
	"github.com/dkorolev/statarb/internal/cache/redis"
	"github.com/dkorolev/statarb/internal/config"
	"github.com/dkorolev/statarb/internal/domain"
	"github.com/dkorolev/statarb/internal/notify"
	"github.com/dkorolev/statarb/internal/store/postgres"
)

// Dependencies bundles the infrastructure the pipeline modes use. Every field
// except Notifier may be nil when the corresponding backend is disabled; the
// modes degrade to file-only operation in that case.
type Dependencies struct {
	// Stores (nil unless database.enabled)
	QuoteStore     domain.QuoteStore
	CandidateStore domain.CandidateStore
	LedgerStore    domain.LedgerStore
	RunStore       domain.RunStore

	// Redis (nil unless redis.enabled)
	CandidateCache domain.CandidateCache
	RunBus         domain.RunBus
	CacheTTL       time.Duration

	// Blob storage (nil unless artifacts.archive)
	Archiver domain.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs the concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that must
// be called on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	if cfg.Database.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Database.DSN,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Database,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.PoolMaxConns,
			MinConns: cfg.Database.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Database.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.QuoteStore = postgres.NewQuoteStore(pool)
		deps.CandidateStore = postgres.NewCandidateStore(pool)
		deps.LedgerStore = postgres.NewLedgerStore(pool)
		deps.RunStore = postgres.NewRunStore(pool)
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.CandidateCache = redis.NewCandidateCache(redisClient)
		deps.RunBus = redis.NewRunBus(redisClient)
		if cfg.Redis.CacheTTLMinutes > 0 {
			deps.CacheTTL = time.Duration(cfg.Redis.CacheTTLMinutes) * time.Minute
		}
	}

	// --- S3 blob storage ---
	if cfg.Artifacts.Archive {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		if err := s3Client.Health(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewArchiver(s3Client)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
