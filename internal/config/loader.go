package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PROOFMARKET_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
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

// applyEnvOverrides reads well-known PROOFMARKET_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Oracle ──
	setStr(&cfg.Oracle.Address, "PROOFMARKET_ORACLE_ADDRESS")
	setStr(&cfg.Oracle.PrivateKey, "PROOFMARKET_ORACLE_PRIVATE_KEY")
	setStr(&cfg.Oracle.EncryptedKeyPath, "PROOFMARKET_ORACLE_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Oracle.KeyPassword, "PROOFMARKET_ORACLE_KEY_PASSWORD")

	// ── Ledger ──
	setStr(&cfg.Ledger.Backend, "PROOFMARKET_LEDGER_BACKEND")
	setBool(&cfg.Ledger.DistributedLock, "PROOFMARKET_LEDGER_DISTRIBUTED_LOCK")
	setDuration(&cfg.Ledger.LockTTL, "PROOFMARKET_LEDGER_LOCK_TTL")
	setDuration(&cfg.Ledger.CacheTTL, "PROOFMARKET_LEDGER_CACHE_TTL")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "PROOFMARKET_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "PROOFMARKET_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "PROOFMARKET_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "PROOFMARKET_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "PROOFMARKET_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "PROOFMARKET_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "PROOFMARKET_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "PROOFMARKET_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "PROOFMARKET_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "PROOFMARKET_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "PROOFMARKET_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "PROOFMARKET_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PROOFMARKET_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PROOFMARKET_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PROOFMARKET_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PROOFMARKET_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PROOFMARKET_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "PROOFMARKET_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "PROOFMARKET_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PROOFMARKET_S3_REGION")
	setStr(&cfg.S3.Bucket, "PROOFMARKET_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PROOFMARKET_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PROOFMARKET_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PROOFMARKET_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PROOFMARKET_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "PROOFMARKET_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "PROOFMARKET_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "PROOFMARKET_SERVER_CORS_ORIGINS")
	setBool(&cfg.Server.RequireSignature, "PROOFMARKET_SERVER_REQUIRE_SIGNATURE")
	setInt(&cfg.Server.RateLimit, "PROOFMARKET_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "PROOFMARKET_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "PROOFMARKET_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "PROOFMARKET_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "PROOFMARKET_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "PROOFMARKET_NOTIFY_EVENTS")

	// ── Seed ──
	setInt(&cfg.Seed.Markets, "PROOFMARKET_SEED_MARKETS")
	setStr(&cfg.Seed.BetPerSide, "PROOFMARKET_SEED_BET_PER_SIDE")

	// ── Top-level ──
	setStr(&cfg.Mode, "PROOFMARKET_MODE")
	setStr(&cfg.LogLevel, "PROOFMARKET_LOG_LEVEL")
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

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
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
