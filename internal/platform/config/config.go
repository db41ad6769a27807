package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration so main stays lean.
type Server struct {
	Addr        string
	Environment string

	// Proof signing key for jwt_vp / sd-jwt-vc envelopes (HMAC for dev,
	// override in production).
	ProofSigningKey string

	// Replay guard entry lifetime. An identical proof submitted within this
	// window is rejected as a replay.
	ReplayTTL time.Duration

	// StatusListCapacity is the bit capacity of one revocation status list.
	StatusListCapacity int

	Ledger   LedgerConfig
	Issuer   IssuerConfig
	Risk     RiskConfig
	Redis    RedisConfig
	Database DatabaseConfig
	Kafka    KafkaConfig
}

// LedgerConfig configures anchoring against the ledger RPC endpoint.
type LedgerConfig struct {
	RPCURL         string
	RequestTimeout time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// IssuerConfig configures revocation lookups against issuer endpoints.
type IssuerConfig struct {
	RequestTimeout time.Duration
}

// RiskConfig holds the risk score threshold bands separating verification
// statuses. Scores below SuspiciousAt are verified; scores from SuspiciousAt
// up to but excluding FailedAt are suspicious; FailedAt and above are failed.
type RiskConfig struct {
	SuspiciousAt int
	FailedAt     int
}

// RedisConfig configures the optional Redis backend for the replay guard.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig configures the optional PostgreSQL store backend.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// KafkaConfig configures the optional audit event stream.
type KafkaConfig struct {
	Brokers    string
	AuditTopic string
}

// FromEnv builds a Server config from environment variables with defaults.
func FromEnv() Server {
	return Server{
		Addr:               envString("VERITAS_ADDR", ":8080"),
		Environment:        envString("VERITAS_ENV", "development"),
		ProofSigningKey:    envString("PROOF_SIGNING_KEY", "dev-secret-key-change-in-production"),
		ReplayTTL:          envDuration("REPLAY_GUARD_TTL", 5*time.Minute),
		StatusListCapacity: envInt("STATUS_LIST_CAPACITY", 131072),
		Ledger: LedgerConfig{
			RPCURL:         os.Getenv("LEDGER_RPC_URL"),
			RequestTimeout: envDuration("LEDGER_RPC_TIMEOUT", 10*time.Second),
			MaxAttempts:    envInt("LEDGER_MAX_ATTEMPTS", 5),
			InitialBackoff: envDuration("LEDGER_INITIAL_BACKOFF", 500*time.Millisecond),
			MaxBackoff:     envDuration("LEDGER_MAX_BACKOFF", 30*time.Second),
		},
		Issuer: IssuerConfig{
			RequestTimeout: envDuration("ISSUER_REQUEST_TIMEOUT", 5*time.Second),
		},
		Risk: RiskConfig{
			SuspiciousAt: envInt("RISK_SUSPICIOUS_AT", 20),
			FailedAt:     envInt("RISK_FAILED_AT", 50),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:    os.Getenv("KAFKA_BROKERS"),
			AuditTopic: envString("KAFKA_AUDIT_TOPIC", "veritas.audit.v1"),
		},
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
