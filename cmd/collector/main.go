package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	collectionsvc "konkursradar_backend/internal/collections/service"
	"konkursradar_backend/internal/collections/transport"
	"konkursradar_backend/internal/collector"
	companiesrepo "konkursradar_backend/internal/companies/repository"
	companysvc "konkursradar_backend/internal/companies/service"
	kommunerepo "konkursradar_backend/internal/kommune/repository"
	"konkursradar_backend/internal/registry/client"
	"konkursradar_backend/platform/config"
	"konkursradar_backend/platform/db"
	"konkursradar_backend/platform/logger"
)

func main() {
	scope := flag.String("scope", transport.ScopePriority, "collection scope: all, priority or kommune")
	kommuneNumber := flag.String("kommune", "", "kommune number, required when scope=kommune")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting collection run", "scope", *scope, "kommune", *kommuneNumber)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	repo := companiesrepo.New(pool)
	companies := companysvc.New(repo, log)
	kommuner := kommunerepo.New(pool)

	collect := collector.New(
		client.New(cfg, log),
		collector.NewRepositoryStore(repo, companies),
		collector.NewKommuneList(kommuner),
		log,
		collector.WithPageSize(cfg.GetRegistryPageSize()),
		collector.WithConcurrency(cfg.GetCollectorConcurrency()),
	)

	svc := collectionsvc.New(collect, kommuner, repo, nil, log)

	resp, err := svc.Run(ctx, transport.RunRequest{Scope: *scope, Kommune: *kommuneNumber})
	if err != nil {
		log.Error("collection run failed", "error", err)
		os.Exit(1)
	}

	log.Info("collection run finished",
		"runId", resp.RunID,
		"seen", resp.Seen,
		"created", resp.Created,
		"updated", resp.Updated,
		"moved", resp.Moved,
		"unchanged", resp.Unchanged,
		"errors", resp.Errors,
		"failures", resp.Failures,
	)

	if resp.Failures > 0 {
		os.Exit(1)
	}
}
