package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"konkursradar_backend/internal/collections"
	"konkursradar_backend/internal/collector"
	"konkursradar_backend/internal/companies"
	"konkursradar_backend/internal/coverage"
	apphttp "konkursradar_backend/internal/http"
	"konkursradar_backend/internal/http/router"
	"konkursradar_backend/internal/kommune"
	"konkursradar_backend/internal/registry/client"
	"konkursradar_backend/internal/scheduler"
	"konkursradar_backend/migrations"
	"konkursradar_backend/platform/config"
	"konkursradar_backend/platform/db"
	"konkursradar_backend/platform/logger"
	"konkursradar_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Shared validator instance for dependency injection
	val := validator.New()

	// Outbound registry client with its shared rate limiter
	registryClient := client.New(cfg, log)

	// Queue client for the schedule endpoints; optional, the synchronous
	// endpoints work without redis.
	var sched *scheduler.Client
	if cfg.GetRedisURL() != "" {
		sched, err = scheduler.NewClient(cfg)
		if err != nil {
			log.Error("failed to initialize scheduler queue client", "error", err)
			panic("failed to initialize scheduler queue client: " + err.Error())
		}
		defer sched.Close()
		log.Info("scheduler queue client initialized")
	} else {
		log.Warn("REDIS_URL not set, schedule endpoints disabled")
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	kommuneModule := kommune.NewModule(pool)
	companiesModule := companies.NewModule(pool, log, val)

	collect := collector.New(
		registryClient,
		collector.NewRepositoryStore(companiesModule.Repository(), companiesModule.Service()),
		collector.NewKommuneList(kommuneModule.Repository()),
		log,
		collector.WithPageSize(cfg.GetRegistryPageSize()),
		collector.WithConcurrency(cfg.GetCollectorConcurrency()),
	)

	collectionsModule := collections.NewModule(collect, kommuneModule.Repository(), companiesModule.Repository(), sched, log, val)
	coverageModule := coverage.NewModule(companiesModule.Repository(), kommuneModule.Repository(), collect, sched, cfg.GetRegistryPageSize(), log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Health: db.NewPoolAdapter(pool),
		Modules: []apphttp.Module{
			kommuneModule,
			companiesModule,
			collectionsModule,
			coverageModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
