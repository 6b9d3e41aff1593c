package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Ledger backends.
const (
	BackendMemory   = "memory"
	BackendLevelDB  = "leveldb"
	BackendPostgres = "postgres"
)

// Server captures process level configuration.
type Server struct {
	Addr      string
	LogLevel  string
	LogFormat string
	SeedFile  string

	// JWTSigningKey signs identity proofs and admin tokens.
	JWTSigningKey string
	JWTIssuer     string

	ShutdownTimeout time.Duration

	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
	Ledger   LedgerConfig
	Identity IdentityConfig
	Admin    AdminConfig
	// RateLimit throttles public endpoints per client IP. Zero requests disables it.
	RateLimit RateLimitConfig
}

// RedisConfig configures the optional Redis client. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig configures the voter, candidate and journal database.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// KafkaConfig configures block event publishing. No brokers means events are logged.
type KafkaConfig struct {
	Brokers     []string
	Topic       string
	Partitions  int32
	Replication int16
	BufferSize  int
}

// LedgerConfig selects the hash primitive and the journal backend.
type LedgerConfig struct {
	HashAlgorithm string
	Backend       string
	LevelDBPath   string
	TxTimeout     time.Duration
}

// IdentityConfig configures face verification and proof tokens.
type IdentityConfig struct {
	VerifierURL         string
	VerifyTimeout       time.Duration
	InsecureDev         bool
	ConfidenceThreshold float64
	ProofTTL            time.Duration
	MaxFailures         int
	FailureWindow       time.Duration
}

// AdminConfig holds the single administrator account.
type AdminConfig struct {
	Username     string
	PasswordHash string
	TokenTTL     time.Duration
}

// RateLimitConfig sizes the per-IP sliding window.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:            envString("BALLOT_ADDR", ":8080"),
		LogLevel:        envString("LOG_LEVEL", "info"),
		LogFormat:       envString("LOG_FORMAT", "json"),
		SeedFile:        os.Getenv("SEED_FILE"),
		JWTSigningKey:   envString("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:       envString("JWT_ISSUER", "ballot"),
		ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			DSN:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:     envList("KAFKA_BROKERS"),
			Topic:       envString("KAFKA_TOPIC", "ballot.blocks"),
			Partitions:  int32(envInt("KAFKA_PARTITIONS", 1)),
			Replication: int16(envInt("KAFKA_REPLICATION", 1)),
			BufferSize:  envInt("EVENTS_BUFFER_SIZE", 1024),
		},
		Ledger: LedgerConfig{
			HashAlgorithm: envString("LEDGER_HASH_ALG", "sha256"),
			Backend:       envString("LEDGER_BACKEND", BackendMemory),
			LevelDBPath:   envString("LEDGER_LEVELDB_PATH", "data/ledger"),
			TxTimeout:     envDuration("LEDGER_TX_TIMEOUT", 5*time.Second),
		},
		Identity: IdentityConfig{
			VerifierURL:         os.Getenv("IDENTITY_VERIFIER_URL"),
			VerifyTimeout:       envDuration("IDENTITY_VERIFY_TIMEOUT", 10*time.Second),
			InsecureDev:         envBool("IDENTITY_INSECURE_DEV", false),
			ConfidenceThreshold: envFloat("IDENTITY_CONFIDENCE_THRESHOLD", 0.6),
			ProofTTL:            envDuration("IDENTITY_PROOF_TTL", 5*time.Minute),
			MaxFailures:         envInt("IDENTITY_MAX_FAILURES", 5),
			FailureWindow:       envDuration("IDENTITY_FAILURE_WINDOW", 15*time.Minute),
		},
		Admin: AdminConfig{
			Username:     envString("ADMIN_USERNAME", "admin"),
			PasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
			TokenTTL:     envDuration("ADMIN_TOKEN_TTL", time.Hour),
		},
		RateLimit: RateLimitConfig{
			Requests: envInt("RATE_LIMIT_REQUESTS", 60),
			Window:   envDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
	}
}

// Validate rejects configurations the process cannot run with.
func (s Server) Validate() error {
	var errs []error
	switch s.Ledger.Backend {
	case BackendMemory, BackendLevelDB:
	case BackendPostgres:
		if s.Postgres.DSN == "" {
			errs = append(errs, errors.New("LEDGER_BACKEND=postgres requires DATABASE_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ledger backend %q", s.Ledger.Backend))
	}
	if s.Identity.VerifierURL == "" && !s.Identity.InsecureDev {
		errs = append(errs, errors.New("IDENTITY_VERIFIER_URL is required unless IDENTITY_INSECURE_DEV=true"))
	}
	if t := s.Identity.ConfidenceThreshold; t <= 0 || t > 1 {
		errs = append(errs, fmt.Errorf("IDENTITY_CONFIDENCE_THRESHOLD must be in (0, 1], got %v", t))
	}
	if s.RateLimit.Requests > 0 && s.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive when RATE_LIMIT_REQUESTS is set"))
	}
	if s.JWTSigningKey == "" {
		errs = append(errs, errors.New("JWT_SIGNING_KEY must not be empty"))
	}
	return errors.Join(errs...)
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func envList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
