package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

const devSigningKey = "dev-secret-key-change-in-production"

// Server captures process level configuration.
type Server struct {
	Addr        string
	Environment string
	LogLevel    string

	JWT       JWTConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	RateLimit RateLimitConfig
	Family    FamilyConfig
}

// JWTConfig describes how principal tokens are verified.
type JWTConfig struct {
	SigningKey string
	Issuer     string
	Audience   string
	TTL        time.Duration
}

// DatabaseConfig selects the persistent member store. An empty URL keeps
// members in memory.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Migrate         bool
}

// RedisConfig enables the cross-instance member write lock. An empty URL falls
// back to an in-process lock.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	LockTTL      time.Duration
}

// KafkaConfig enables member change events. No brokers disables publishing.
type KafkaConfig struct {
	Brokers           []string
	Topic             string
	ClientID          string
	Partitions        int32
	ReplicationFactor int16
}

// RateLimitConfig bounds profile updates per principal. Buckets live in Redis
// when it is configured, in memory otherwise.
type RateLimitConfig struct {
	Disabled      bool
	WriteRequests int
	WriteWindow   time.Duration
}

// FamilyConfig tunes the family engine.
type FamilyConfig struct {
	// SeedFile overrides the embedded seed roster when set.
	SeedFile string
	// OperationTimeout bounds one store round trip issued by the member service.
	OperationTimeout time.Duration
}

// IsProduction reports whether the process runs with production defaults.
func (s Server) IsProduction() bool {
	return s.Environment == "production"
}

// Validate rejects settings that are only acceptable in development.
func (s Server) Validate() error {
	if s.IsProduction() && s.JWT.SigningKey == devSigningKey {
		return errors.New("JWT_SIGNING_KEY must be set in production")
	}
	if s.Kafka.Topic == "" && len(s.Kafka.Brokers) > 0 {
		return errors.New("KAFKA_TOPIC must be set when KAFKA_BROKERS is")
	}
	if !s.RateLimit.Disabled && (s.RateLimit.WriteRequests <= 0 || s.RateLimit.WriteWindow <= 0) {
		return errors.New("RATE_LIMIT_WRITE_REQUESTS and RATE_LIMIT_WRITE_WINDOW must be positive")
	}
	return nil
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:        envString("HERITAGE_ADDR", ":8080"),
		Environment: envString("HERITAGE_ENV", "development"),
		LogLevel:    envString("LOG_LEVEL", "info"),
		JWT: JWTConfig{
			// Use a default for development - should be overridden in production
			SigningKey: envString("JWT_SIGNING_KEY", devSigningKey),
			Issuer:     envString("JWT_ISSUER", "heritage"),
			Audience:   envString("JWT_AUDIENCE", "heritage-web"),
			TTL:        envDuration("JWT_TTL", 24*time.Hour),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
			Migrate:         envBool("DATABASE_MIGRATE", true),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			LockTTL:      envDuration("REDIS_LOCK_TTL", 10*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:           envList("KAFKA_BROKERS"),
			Topic:             envString("KAFKA_TOPIC", "heritage.member-events"),
			ClientID:          envString("KAFKA_CLIENT_ID", "heritage"),
			Partitions:        int32(envInt("KAFKA_PARTITIONS", 3)),
			ReplicationFactor: int16(envInt("KAFKA_REPLICATION_FACTOR", 1)),
		},
		RateLimit: RateLimitConfig{
			Disabled:      envBool("RATE_LIMIT_DISABLED", false),
			WriteRequests: envInt("RATE_LIMIT_WRITE_REQUESTS", 30),
			WriteWindow:   envDuration("RATE_LIMIT_WRITE_WINDOW", time.Minute),
		},
		Family: FamilyConfig{
			SeedFile:         os.Getenv("FAMILY_SEED_FILE"),
			OperationTimeout: envDuration("FAMILY_OPERATION_TIMEOUT", 5*time.Second),
		},
	}
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
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
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
