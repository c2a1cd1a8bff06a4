package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/mucks/proofmarket/internal/blob/s3"
	"github.com/mucks/proofmarket/internal/bus"
	"github.com/mucks/proofmarket/internal/cache/redis"
	"github.com/mucks/proofmarket/internal/config"
	"github.com/mucks/proofmarket/internal/domain"
	"github.com/mucks/proofmarket/internal/notify"
	"github.com/mucks/proofmarket/internal/server/handler"
	"github.com/mucks/proofmarket/internal/store/memory"
	"github.com/mucks/proofmarket/internal/store/postgres"
	"github.com/mucks/proofmarket/internal/treasury"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Ledger is the selected persistence backend.
	Ledger domain.Ledger

	// Treasury settles claims and keeps the transfer log.
	Treasury *treasury.Treasury

	// Bus carries committed ledger events; Redis pub/sub when available,
	// in-process otherwise.
	Bus domain.EventBus

	// Redis-backed facilities; nil when Redis is disabled.
	MarketCache domain.MarketCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager

	// Archiver uploads settlement snapshots; nil when S3 is disabled.
	Archiver *s3blob.SettlementArchiver

	// Notifier fans resolved/claimed alerts out to chat channels.
	Notifier *notify.Notifier

	// Health check targets, keyed by dependency name.
	HealthChecks map[string]handler.Pinger
}

// pgPinger adapts the pgxpool-backed client to the handler.Pinger shape.
type pgPinger struct{ c *postgres.Client }

func (p pgPinger) Ping(ctx context.Context) error { return p.c.Pool().Ping(ctx) }

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		HealthChecks: make(map[string]handler.Pinger),
	}

	// --- Ledger backend ---
	var pgClient *postgres.Client
	switch cfg.Ledger.Backend {
	case "postgres":
		var err error
		pgClient, err = postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		deps.Ledger = postgres.NewLedger(pgClient.Pool())
		deps.HealthChecks["postgres"] = pgPinger{pgClient}

	case "memory":
		deps.Ledger = memory.NewLedger()

	default:
		cleanup()
		return nil, nil, fmt.Errorf("wire: unknown ledger backend %q", cfg.Ledger.Backend)
	}

	// --- Treasury ---
	deps.Treasury = treasury.New(logger)

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

		deps.Bus = redis.NewEventBus(redisClient)
		deps.MarketCache = redis.NewMarketCache(redisClient, cfg.Ledger.CacheTTL.Duration)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		if cfg.Ledger.DistributedLock {
			deps.LockManager = redis.NewLockManager(redisClient)
		}
		deps.HealthChecks["redis"] = redisClient
	} else {
		deps.Bus = bus.NewMemory()
	}

	// --- S3 settlement archive ---
	if cfg.S3.Enabled {
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
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewSettlementArchiver(
			s3blob.NewWriter(s3Client),
			deps.Ledger,
			deps.Ledger,
			logger,
		)
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
