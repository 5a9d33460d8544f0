package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything main needs to wire the engine. Values come from
// the environment so deployments stay twelve-factor.
type Config struct {
	Addr          string
	PostgresURL   string
	Redis         RedisConfig
	KafkaBrokers  []string
	AuditTopic    string
	JWTSigningKey string

	// GatewayBaseURL is the payment gateway endpoint; GatewayTimeout bounds
	// ConfirmPayment's external call so an unresponsive gateway surfaces as a
	// dependency error instead of hanging the escrow.
	GatewayBaseURL string
	GatewayTimeout time.Duration
}

// RedisConfig holds connection tuning for the shared redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	addr := os.Getenv("ENGINE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	gatewayTimeout := 10 * time.Second
	if raw := os.Getenv("GATEWAY_TIMEOUT_SECONDS"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			gatewayTimeout = time.Duration(secs) * time.Second
		}
	}

	auditTopic := os.Getenv("AUDIT_TOPIC")
	if auditTopic == "" {
		auditTopic = "audit.events"
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}

	return Config{
		Addr:           addr,
		PostgresURL:    os.Getenv("POSTGRES_URL"),
		Redis:          redisFromEnv(),
		KafkaBrokers:   brokers,
		AuditTopic:     auditTopic,
		JWTSigningKey:  jwtSigningKey,
		GatewayBaseURL: os.Getenv("PAYMENT_GATEWAY_URL"),
		GatewayTimeout: gatewayTimeout,
	}
}

func redisFromEnv() RedisConfig {
	return RedisConfig{
		URL:          os.Getenv("REDIS_URL"),
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}
