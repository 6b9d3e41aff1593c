package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, BackendMemory, cfg.Ledger.Backend)
	assert.Equal(t, "sha256", cfg.Ledger.HashAlgorithm)
	assert.InDelta(t, 0.6, cfg.Identity.ConfidenceThreshold, 1e-9)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("BALLOT_ADDR", ":9090")
	t.Setenv("LEDGER_BACKEND", BackendLevelDB)
	t.Setenv("LEDGER_HASH_ALG", "blake3")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("IDENTITY_FAILURE_WINDOW", "2m")
	t.Setenv("IDENTITY_CONFIDENCE_THRESHOLD", "0.75")
	t.Setenv("IDENTITY_INSECURE_DEV", "true")
	t.Setenv("REDIS_POOL_SIZE", "not-a-number")

	cfg := FromEnv()
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, BackendLevelDB, cfg.Ledger.Backend)
	assert.Equal(t, "blake3", cfg.Ledger.HashAlgorithm)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2*time.Minute, cfg.Identity.FailureWindow)
	assert.InDelta(t, 0.75, cfg.Identity.ConfidenceThreshold, 1e-9)
	assert.True(t, cfg.Identity.InsecureDev)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	base := func() Server {
		cfg := FromEnv()
		cfg.Identity.InsecureDev = true
		return cfg
	}

	t.Run("postgres backend needs a DSN", func(t *testing.T) {
		cfg := base()
		cfg.Ledger.Backend = BackendPostgres
		assert.ErrorContains(t, cfg.Validate(), "DATABASE_URL")
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := base()
		cfg.Ledger.Backend = "s3"
		assert.Error(t, cfg.Validate())
	})

	t.Run("verifier is required outside dev mode", func(t *testing.T) {
		cfg := base()
		cfg.Identity.InsecureDev = false
		assert.ErrorContains(t, cfg.Validate(), "IDENTITY_VERIFIER_URL")
	})

	t.Run("threshold out of range", func(t *testing.T) {
		cfg := base()
		cfg.Identity.ConfidenceThreshold = 1.5
		assert.Error(t, cfg.Validate())
	})
}
