package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

const testOracle = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsValidateWithOracle(t *testing.T) {
	require := require.New(t)

	cfg := Defaults()
	cfg.Oracle.Address = testOracle
	require.NoError(cfg.Validate())

	require.Equal("serve", cfg.Mode)
	require.Equal("postgres", cfg.Ledger.Backend)
	require.Equal(15*time.Second, cfg.Ledger.LockTTL.Duration)
	require.Equal(30*time.Second, cfg.Ledger.CacheTTL.Duration)
	require.Equal(8000, cfg.Server.Port)
	require.True(cfg.Server.RequireSignature)
}

func TestValidateCollectsAllProblems(t *testing.T) {
	require := require.New(t)

	cfg := Defaults()
	cfg.Mode = "replay"
	cfg.LogLevel = "loud"
	cfg.Ledger.Backend = "sqlite"
	// Oracle address left empty.

	err := cfg.Validate()
	require.Error(err)
	require.Contains(err.Error(), "unknown mode")
	require.Contains(err.Error(), "unknown log_level")
	require.Contains(err.Error(), "unknown backend")
	require.Contains(err.Error(), "oracle: address must not be empty")
}

func TestValidateOracleAddress(t *testing.T) {
	require := require.New(t)

	cfg := Defaults()
	cfg.Oracle.Address = "not-an-address"
	err := cfg.Validate()
	require.Error(err)
	require.Contains(err.Error(), "not a valid hex address")

	cfg.Oracle.Address = testOracle
	require.NoError(cfg.Validate())
	require.Equal(common.HexToAddress(testOracle), cfg.OracleAddress())
}

func TestValidateSeedModeNeedsKey(t *testing.T) {
	require := require.New(t)

	cfg := Defaults()
	cfg.Oracle.Address = testOracle
	cfg.Mode = "seed"

	err := cfg.Validate()
	require.Error(err)
	require.Contains(err.Error(), "private_key or encrypted_key_path")

	cfg.Oracle.EncryptedKeyPath = "/etc/proofmarket/oracle.key.json"
	err = cfg.Validate()
	require.Error(err)
	require.Contains(err.Error(), "key_password is required")

	cfg.Oracle.KeyPassword = "pw"
	require.NoError(cfg.Validate())
}

func TestValidateDistributedLockNeedsRedis(t *testing.T) {
	require := require.New(t)

	cfg := Defaults()
	cfg.Oracle.Address = testOracle
	cfg.Ledger.DistributedLock = true
	cfg.Redis.Enabled = false

	err := cfg.Validate()
	require.Error(err)
	require.Contains(err.Error(), "distributed_lock requires redis")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	require := require.New(t)

	path := writeConfig(t, `
mode = "serve"
log_level = "debug"

[oracle]
address = "`+testOracle+`"

[ledger]
backend = "memory"
cache_ttl = "1m"

[server]
enabled = true
port = 9090
`)

	cfg, err := Load(path)
	require.NoError(err)
	require.NoError(cfg.Validate())

	require.Equal("debug", cfg.LogLevel)
	require.Equal("memory", cfg.Ledger.Backend)
	require.Equal(time.Minute, cfg.Ledger.CacheTTL.Duration)
	require.Equal(9090, cfg.Server.Port)
	// Untouched sections keep their defaults.
	require.Equal(15*time.Second, cfg.Ledger.LockTTL.Duration)
	require.True(cfg.Redis.Enabled)
}

func TestLoadEnvOverrides(t *testing.T) {
	require := require.New(t)

	path := writeConfig(t, `
[oracle]
address = "`+testOracle+`"

[server]
port = 9090
`)

	t.Setenv("PROOFMARKET_SERVER_PORT", "7777")
	t.Setenv("PROOFMARKET_LEDGER_BACKEND", "memory")
	t.Setenv("PROOFMARKET_LEDGER_LOCK_TTL", "45s")
	t.Setenv("PROOFMARKET_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("PROOFMARKET_REDIS_ENABLED", "false")

	cfg, err := Load(path)
	require.NoError(err)

	require.Equal(7777, cfg.Server.Port)
	require.Equal("memory", cfg.Ledger.Backend)
	require.Equal(45*time.Second, cfg.Ledger.LockTTL.Duration)
	require.Equal([]string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	require.False(cfg.Redis.Enabled)
}

func TestLoadMissingFile(t *testing.T) {
	require := require.New(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(err)
}

func TestDurationTextRoundTrip(t *testing.T) {
	require := require.New(t)

	var d duration
	require.NoError(d.UnmarshalText([]byte("90s")))
	require.Equal(90*time.Second, d.Duration)

	text, err := d.MarshalText()
	require.NoError(err)
	require.Equal("1m30s", string(text))

	require.Error(d.UnmarshalText([]byte("soon")))
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	require := require.New(t)

	cfg := Defaults()
	cfg.Oracle.Address = testOracle
	cfg.Oracle.PrivateKey = "supersecret"
	cfg.Postgres.Password = "dbpass"
	cfg.Redis.Password = "redispass"
	cfg.S3.SecretKey = "s3secret"

	red := RedactedConfig(&cfg)
	require.NotContains(red.Oracle.PrivateKey, "supersecret")
	require.NotContains(red.Postgres.Password, "dbpass")
	require.NotContains(red.Redis.Password, "redispass")
	require.NotContains(red.S3.SecretKey, "s3secret")
	// Non-secret fields pass through.
	require.Equal(testOracle, red.Oracle.Address)
}
