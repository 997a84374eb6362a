package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	familyhandler "heritage/internal/family/handler"
	familymetrics "heritage/internal/family/metrics"
	familyservice "heritage/internal/family/service"
	jwttoken "heritage/internal/jwt_token"
	"heritage/internal/member/events"
	memberhandler "heritage/internal/member/handler"
	"heritage/internal/member/lock"
	membermetrics "heritage/internal/member/metrics"
	memberservice "heritage/internal/member/service"
	"heritage/internal/member/store/persistent"
	"heritage/internal/member/store/seed"
	"heritage/internal/platform/config"
	"heritage/internal/platform/httpserver"
	"heritage/internal/platform/kafka"
	"heritage/internal/platform/logger"
	"heritage/internal/platform/metrics"
	"heritage/internal/platform/postgres"
	"heritage/internal/platform/redis"
	ratelimit "heritage/internal/ratelimit/middleware"
	"heritage/internal/ratelimit/models"
	"heritage/internal/ratelimit/store/bucket"
	httptransport "heritage/internal/transport/http"
)

const shutdownTimeout = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "heritage: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	log := logger.New(cfg.Environment, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	seeds, err := loadSeed(cfg.Family)
	if err != nil {
		return err
	}
	log.Info("seed roster loaded", "members", seeds.Len())

	m := metrics.New()
	health := map[string]httptransport.HealthCheck{}
	opts := []memberservice.Option{
		memberservice.WithLogger(log),
		memberservice.WithMetrics(membermetrics.New(m.Registerer())),
		memberservice.WithOperationTimeout(cfg.Family.OperationTimeout),
	}

	var store memberservice.PersistentStore = persistent.NewInMemory()
	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		pg := persistent.NewPostgres(db)
		if cfg.Database.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate members schema: %w", err)
			}
		}
		store = pg
		health["postgres"] = db.PingContext
		log.Info("member store: postgres")
	} else {
		log.Warn("DATABASE_URL not set, member edits are kept in memory")
	}

	writeLimit := models.Limit{Requests: cfg.RateLimit.WriteRequests, Window: cfg.RateLimit.WriteWindow}
	limiterOpts := []ratelimit.Option{ratelimit.WithDisabled(cfg.RateLimit.Disabled)}
	var buckets ratelimit.Limiter = bucket.New()

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		opts = append(opts, memberservice.WithLocker(lock.NewRedisLocker(rdb.Client, lock.WithTTL(cfg.Redis.LockTTL))))
		limiterOpts = append(limiterOpts, ratelimit.WithFallback(buckets))
		buckets = bucket.NewRedis(rdb.Client)
		health["redis"] = rdb.Health
		log.Info("member write lock and rate limits: redis")
	}
	limiter := ratelimit.New(buckets, writeLimit, log, limiterOpts...)

	kc, err := kafka.New(ctx, cfg.Kafka)
	if err != nil {
		return err
	}
	if kc != nil {
		defer kc.Close()
		if err := kc.EnsureTopic(ctx, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
			return err
		}
		opts = append(opts, memberservice.WithPublisher(events.NewKafkaPublisher(kc, kc.Topic())))
		health["kafka"] = kc.Health
		log.Info("member events: kafka", "topic", kc.Topic())
	}

	members := memberservice.New(store, seeds, opts...)
	family := familyservice.New(members,
		familyservice.WithLogger(log),
		familyservice.WithMetrics(familymetrics.New(m.Registerer())),
	)

	validator := jwttoken.NewJWTServiceAdapter(
		jwttoken.NewJWTService(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.Audience),
	)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:  log,
		Metrics: m,
		Handlers: []httptransport.Registrar{
			memberhandler.New(members, validator, log,
				memberhandler.WithWriteLimit(limiter.Limit(memberhandler.WriteAction)),
			),
			familyhandler.New(family, log),
		},
		Health: health,
	})
	srv := httpserver.New(cfg.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting heritage", "addr", cfg.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func loadSeed(cfg config.FamilyConfig) (*seed.Store, error) {
	if cfg.SeedFile == "" {
		return seed.Default()
	}
	st, err := seed.LoadFile(cfg.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("load seed file %s: %w", cfg.SeedFile, err)
	}
	if _, err := st.Graph(); err != nil {
		return nil, fmt.Errorf("seed file %s: %w", cfg.SeedFile, err)
	}
	return st, nil
}
