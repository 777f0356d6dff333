package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything main needs to wire the service.
type Config struct {
	Addr string

	PostgresDSN string
	Redis       RedisConfig

	SorobanURL      string
	ContractID      string
	SigningSeed     string
	AccountSequence uint64
	RPCTimeout      time.Duration

	ReconcileAttempts int
	ReconcileDelay    time.Duration

	VaultKey        string
	GradeRangesJSON string
	EnrichURL       string

	KafkaBrokers []string
	AuditTopic   string
}

// RedisConfig tunes the registry lookup cache. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RegistryCacheTTL enforces retention for cached registry entries.
var RegistryCacheTTL = 5 * time.Minute

// FromEnv builds the configuration from environment variables so main stays
// lean.
func FromEnv() Config {
	cfg := Config{
		Addr:            envOr("PAYGUARD_ADDR", ":8080"),
		PostgresDSN:     os.Getenv("PAYGUARD_POSTGRES_DSN"),
		SorobanURL:      envOr("PAYGUARD_SOROBAN_URL", "http://localhost:8000/soroban/rpc"),
		ContractID:      os.Getenv("PAYGUARD_CONTRACT_ID"),
		SigningSeed:     os.Getenv("PAYGUARD_SIGNING_SEED"),
		AccountSequence: envUint("PAYGUARD_ACCOUNT_SEQUENCE", 0),
		RPCTimeout:      envDuration("PAYGUARD_RPC_TIMEOUT", 15*time.Second),

		ReconcileAttempts: envInt("PAYGUARD_RECONCILE_ATTEMPTS", 10),
		ReconcileDelay:    envDuration("PAYGUARD_RECONCILE_DELAY", 3*time.Second),

		VaultKey:        os.Getenv("PAYGUARD_VAULT_KEY"),
		GradeRangesJSON: os.Getenv("PAYGUARD_GRADE_RANGES"),
		EnrichURL:       os.Getenv("PAYGUARD_ENRICH_URL"),

		AuditTopic: envOr("PAYGUARD_AUDIT_TOPIC", "payguard.audit"),

		Redis: RedisConfig{
			URL:          os.Getenv("PAYGUARD_REDIS_URL"),
			PoolSize:     envInt("PAYGUARD_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("PAYGUARD_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("PAYGUARD_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("PAYGUARD_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("PAYGUARD_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}
	if brokers := os.Getenv("PAYGUARD_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitNonEmpty(brokers)
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envUint(key string, fallback uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
