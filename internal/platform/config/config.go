package config

import (
	"os"
	"strings"
	"time"

	platformstrings "selfid/pkg/platform/strings"
)

// Server captures process-level configuration. FromEnv keeps main lean.
type Server struct {
	Addr          string
	JWTSigningKey string
	// OwnerAddress is the registry deployer principal. It is always a trusted
	// verifier and can never be removed from that set.
	OwnerAddress string
	Postgres     PostgresConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
}

// PostgresConfig selects the durable store. An empty URL selects the
// in-memory store (dev and tests only).
type PostgresConfig struct {
	URL string
}

// RedisConfig controls the identity-status read cache. Empty URL disables it.
type RedisConfig struct {
	URL          string
	StatusTTL    time.Duration
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig controls the audit outbox relay. Empty Brokers disables it.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	PollInterval time.Duration
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	addr := os.Getenv("SELFID_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("SELFID_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default - must be overridden in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	topic := os.Getenv("SELFID_KAFKA_AUDIT_TOPIC")
	if topic == "" {
		topic = "selfid.audit.events"
	}

	var brokers []string
	if raw := os.Getenv("SELFID_KAFKA_BROKERS"); raw != "" {
		brokers = platformstrings.DedupeAndTrim(strings.Split(raw, ","))
	}

	return Server{
		Addr:          addr,
		JWTSigningKey: jwtSigningKey,
		OwnerAddress:  os.Getenv("SELFID_OWNER_ADDRESS"),
		Postgres: PostgresConfig{
			URL: os.Getenv("SELFID_POSTGRES_URL"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("SELFID_REDIS_URL"),
			StatusTTL:    30 * time.Second,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:      brokers,
			Topic:        topic,
			PollInterval: time.Second,
		},
	}
}
