package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	pkgstrings "gatepass/pkg/platform/strings"
)

// RedisConfig captures connection settings for the verification cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server captures process-level configuration. Empty infrastructure URLs mean
// the in-memory implementation is used, which keeps local development to a
// single binary.
type Server struct {
	Addr string

	// DatabaseURL enables the PostgreSQL stores when set.
	DatabaseURL string

	Redis RedisConfig
	// VerifyCacheTTL bounds staleness of cached scan answers.
	VerifyCacheTTL time.Duration

	// KafkaBrokers enables the Kafka notification dispatcher when non-empty.
	KafkaBrokers []string
	KafkaTopic   string

	// Asset renderer endpoint.
	AssetBaseURL string
	AssetAPIKey  string
	AssetTimeout time.Duration

	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	// SingleEntryGuestPasses makes a successful guest-pass scan consume the
	// pass. Off by default.
	SingleEntryGuestPasses bool

	// DevSeed creates a throwaway society, resident, admin and gate device at
	// startup and logs their tokens. In-memory collaborators only.
	DevSeed bool
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:           envOr("GATEPASS_ADDR", ":8080"),
		DatabaseURL:    os.Getenv("GATEPASS_DATABASE_URL"),
		VerifyCacheTTL: envDuration("GATEPASS_VERIFY_CACHE_TTL", 30*time.Second),
		KafkaTopic:     envOr("GATEPASS_KAFKA_TOPIC", "gatepass.notifications"),
		AssetBaseURL:   os.Getenv("GATEPASS_ASSET_BASE_URL"),
		AssetAPIKey:    os.Getenv("GATEPASS_ASSET_API_KEY"),
		AssetTimeout:   envDuration("GATEPASS_ASSET_TIMEOUT", 15*time.Second),
		JWTIssuer:      envOr("GATEPASS_JWT_ISSUER", "gatepass"),
		JWTAudience:    envOr("GATEPASS_JWT_AUDIENCE", "gatepass-api"),

		SingleEntryGuestPasses: os.Getenv("GATEPASS_SINGLE_ENTRY_GUEST_PASSES") == "true",
		DevSeed:                os.Getenv("GATEPASS_DEV_SEED") == "true",

		Redis: RedisConfig{
			URL:          os.Getenv("GATEPASS_REDIS_URL"),
			PoolSize:     envInt("GATEPASS_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("GATEPASS_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("GATEPASS_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("GATEPASS_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("GATEPASS_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}

	if brokers := os.Getenv("GATEPASS_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = pkgstrings.DedupeAndTrim(strings.Split(brokers, ","))
	}

	cfg.JWTSigningKey = os.Getenv("GATEPASS_JWT_SIGNING_KEY")
	if cfg.JWTSigningKey == "" {
		// Use a default for development - should be overridden in production
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
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

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
