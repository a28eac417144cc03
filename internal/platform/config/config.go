package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration for the token host.
type Server struct {
	Addr          string
	JWTSigningKey string

	// Token bootstrap. One token per process; factory wiring lives outside
	// this service.
	TokenName     string
	TokenSymbol   string
	TokenDecimals uint8
	// TokenIdentity is the token's own identity address, the subject of
	// collateral claims. Empty disables the collateral gate.
	TokenIdentity string

	PostgresURL string
	Redis       RedisConfig
	Kafka       KafkaConfig
}

// RedisConfig configures the verification cache. An empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit event stream. Empty brokers disable it.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// VerificationCacheTTL bounds how long a positive identity verification may
// be served from cache before the claims are re-checked.
var VerificationCacheTTL = 5 * time.Minute

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:          envOr("SMARTCORE_ADDR", ":8080"),
		JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		TokenName:     envOr("SMARTCORE_TOKEN_NAME", "SMART Token"),
		TokenSymbol:   envOr("SMARTCORE_TOKEN_SYMBOL", "SMART"),
		TokenDecimals: 18,
		TokenIdentity: os.Getenv("SMARTCORE_TOKEN_IDENTITY"),
		PostgresURL:   os.Getenv("SMARTCORE_POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("SMARTCORE_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic: envOr("SMARTCORE_AUDIT_TOPIC", "smartcore.audit"),
		},
	}
	if d, err := strconv.ParseUint(os.Getenv("SMARTCORE_TOKEN_DECIMALS"), 10, 8); err == nil {
		cfg.TokenDecimals = uint8(d)
	}
	if brokers := os.Getenv("SMARTCORE_KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
