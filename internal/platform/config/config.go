package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	LogLevel      string

	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig

	// DocumentsURL is the external document group service; empty runs the
	// in-memory stand-in.
	DocumentsURL     string
	DocumentsTimeout time.Duration

	LockTTL   time.Duration
	TxTimeout time.Duration
}

// DatabaseConfig is empty when the service should run on in-memory stores.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers       []string
	PaymentTopic  string
	AuditTopic    string
	ConsumerGroup string
	RelayInterval time.Duration
}

// Enabled reports whether any broker is configured.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:          getEnv("ARSENAL_ADDR", ":8080"),
		JWTSigningKey: jwtSigningKey,
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: getInt("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns: getInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:       splitList(os.Getenv("KAFKA_BROKERS")),
			PaymentTopic:  getEnv("PAYMENT_TOPIC", "payments.completed"),
			AuditTopic:    getEnv("AUDIT_TOPIC", "arsenal.audit"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "arsenal"),
			RelayInterval: getDuration("AUDIT_RELAY_INTERVAL", time.Second),
		},
		DocumentsURL:     os.Getenv("DOCUMENTS_URL"),
		DocumentsTimeout: getDuration("DOCUMENTS_TIMEOUT", 3*time.Second),
		LockTTL:          getDuration("LOCK_TTL", 30*time.Second),
		TxTimeout:        getDuration("TX_TIMEOUT", 5*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
