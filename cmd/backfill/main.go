package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"konkursradar_backend/internal/collector"
	companiesrepo "konkursradar_backend/internal/companies/repository"
	companysvc "konkursradar_backend/internal/companies/service"
	"konkursradar_backend/internal/coverage/analysis"
	coveragesvc "konkursradar_backend/internal/coverage/service"
	kommunerepo "konkursradar_backend/internal/kommune/repository"
	"konkursradar_backend/internal/registry/client"
	"konkursradar_backend/platform/config"
	"konkursradar_backend/platform/db"
	"konkursradar_backend/platform/logger"
)

func main() {
	kommuneNumber := flag.String("kommune", "", "kommune number to backfill")
	planOnly := flag.Bool("plan-only", false, "print the plan without executing it")
	flag.Parse()

	if *kommuneNumber == "" {
		panic("missing required -kommune flag")
	}

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting backfill", "kommune", *kommuneNumber, "planOnly", *planOnly)

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
	)

	analyzer := analysis.NewAnalyzer(repo, nil)
	planner := analysis.NewPlanner(analyzer, cfg.GetRegistryPageSize())
	executor := analysis.NewExecutor(collect, collector.NewKommuneList(kommuner))
	svc := coveragesvc.New(analyzer, planner, executor, kommuner, nil, log)

	if *planOnly {
		plan, err := svc.CreatePlan(ctx, *kommuneNumber)
		if err != nil {
			log.Error("failed to create plan", "error", err)
			os.Exit(1)
		}
		log.Info("backfill plan",
			"kommune", plan.KommuneNumber,
			"strategy", plan.Strategy,
			"missingDays", plan.TotalMissingDays,
			"phases", len(plan.Phases),
			"note", plan.Note,
		)
		for _, phase := range plan.Phases {
			log.Info("phase",
				"from", phase.Start.Format("2006-01-02"),
				"to", phase.End.Format("2006-01-02"),
				"priority", phase.Priority,
				"estimatedApiCalls", phase.EstimatedAPICalls,
			)
		}
		return
	}

	result, err := svc.Backfill(ctx, *kommuneNumber)
	if err != nil {
		log.Error("backfill failed", "error", err)
		os.Exit(1)
	}

	log.Info("backfill finished",
		"kommune", result.KommuneNumber,
		"strategy", result.Strategy,
		"phases", result.PhasesExecuted,
		"seen", result.Stats.Seen,
		"created", result.Stats.Created,
		"updated", result.Stats.Updated,
		"moved", result.Stats.Moved,
		"errors", result.Stats.Errors,
	)
}
