package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"HERITAGE_ADDR", "HERITAGE_ENV", "DATABASE_URL", "REDIS_URL", "KAFKA_BROKERS", "JWT_SIGNING_KEY"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.False(t, cfg.IsProduction())
	assert.Empty(t, cfg.Database.URL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, 10*time.Second, cfg.Redis.LockTTL)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("HERITAGE_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,,")
	t.Setenv("REDIS_LOCK_TTL", "2s")
	t.Setenv("DATABASE_MIGRATE", "false")
	t.Setenv("FAMILY_OPERATION_TIMEOUT", "not-a-duration")

	cfg := FromEnv()
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2*time.Second, cfg.Redis.LockTTL)
	assert.False(t, cfg.Database.Migrate)
	assert.Equal(t, 5*time.Second, cfg.Family.OperationTimeout, "unparsable values fall back")
}

func TestValidate_ProductionNeedsSigningKey(t *testing.T) {
	t.Setenv("HERITAGE_ENV", "production")
	t.Setenv("JWT_SIGNING_KEY", "")
	assert.Error(t, FromEnv().Validate())

	t.Setenv("JWT_SIGNING_KEY", "a-real-secret")
	assert.NoError(t, FromEnv().Validate())
}

func TestValidate_RateLimit(t *testing.T) {
	t.Setenv("RATE_LIMIT_WRITE_REQUESTS", "0")
	assert.Error(t, FromEnv().Validate())

	t.Setenv("RATE_LIMIT_DISABLED", "true")
	cfg := FromEnv()
	assert.True(t, cfg.RateLimit.Disabled)
	assert.NoError(t, cfg.Validate())
}
