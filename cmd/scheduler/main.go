package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	collectionsvc "konkursradar_backend/internal/collections/service"
	"konkursradar_backend/internal/collector"
	companiesrepo "konkursradar_backend/internal/companies/repository"
	companysvc "konkursradar_backend/internal/companies/service"
	"konkursradar_backend/internal/coverage/analysis"
	coveragesvc "konkursradar_backend/internal/coverage/service"
	kommunerepo "konkursradar_backend/internal/kommune/repository"
	"konkursradar_backend/internal/registry/client"
	"konkursradar_backend/internal/scheduler"
	"konkursradar_backend/platform/config"
	"konkursradar_backend/platform/db"
	"konkursradar_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	repo := companiesrepo.New(pool)
	companies := companysvc.New(repo, log)
	kommuner := kommunerepo.New(pool)
	registryClient := client.New(cfg, log)

	collect := collector.New(
		registryClient,
		collector.NewRepositoryStore(repo, companies),
		collector.NewKommuneList(kommuner),
		log,
		collector.WithPageSize(cfg.GetRegistryPageSize()),
		collector.WithConcurrency(cfg.GetCollectorConcurrency()),
	)

	// The worker executes runs itself, so no queue client is wired here.
	collections := collectionsvc.New(collect, kommuner, repo, nil, log)

	analyzer := analysis.NewAnalyzer(repo, nil)
	planner := analysis.NewPlanner(analyzer, cfg.GetRegistryPageSize())
	executor := analysis.NewExecutor(collect, collector.NewKommuneList(kommuner))
	coverage := coveragesvc.New(analyzer, planner, executor, kommuner, nil, log)

	worker, err := scheduler.NewWorker(cfg, collections, coverage, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	periodic, err := scheduler.NewPeriodic(cfg, log)
	if err != nil {
		log.Error("failed to initialize periodic scheduler", "error", err)
		panic("failed to initialize periodic scheduler: " + err.Error())
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		periodic.Run(ctx)
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	wg.Wait()
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
