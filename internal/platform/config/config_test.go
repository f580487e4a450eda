package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"ARSENAL_ADDR", "DATABASE_URL", "REDIS_URL", "KAFKA_BROKERS", "PAYMENT_TOPIC", "LOCK_TTL"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Empty(t, cfg.Database.URL)
	assert.False(t, cfg.Kafka.Enabled())
	assert.Equal(t, "payments.completed", cfg.Kafka.PaymentTopic)
	assert.Equal(t, "arsenal.audit", cfg.Kafka.AuditTopic)
	assert.Equal(t, 30*time.Second, cfg.LockTTL)
	assert.NotEmpty(t, cfg.JWTSigningKey)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("ARSENAL_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,,")
	t.Setenv("LOCK_TTL", "5s")
	t.Setenv("REDIS_POOL_SIZE", "not-a-number")

	cfg := FromEnv()

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, 5*time.Second, cfg.LockTTL)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
}
