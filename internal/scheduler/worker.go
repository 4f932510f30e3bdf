package scheduler

import (
	"context"
	"fmt"

	collectionsvc "konkursradar_backend/internal/collections/service"
	"konkursradar_backend/internal/collections/transport"
	coveragesvc "konkursradar_backend/internal/coverage/service"
	"konkursradar_backend/platform/config"
	"konkursradar_backend/platform/logger"

	"github.com/hibiken/asynq"
)

type Worker struct {
	server      *asynq.Server
	mux         *asynq.ServeMux
	collections *collectionsvc.Service
	coverage    *coveragesvc.Service
	log         *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, collections *collectionsvc.Service, coverage *coveragesvc.Service, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		// Collection tasks hammer the same upstream rate limit, so the
		// worker stays narrow by default.
		concurrency = 2
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:      server,
		mux:         mux,
		collections: collections,
		coverage:    coverage,
		log:         log,
	}

	mux.HandleFunc(TaskCollectionRun, w.handleCollectionRun)
	mux.HandleFunc(TaskCoverageBackfill, w.handleCoverageBackfill)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleCollectionRun(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseCollectionRunPayload(task)
	if err != nil {
		return err
	}

	resp, err := w.collections.Run(ctx, transport.RunRequest{Scope: payload.Scope, Kommune: payload.Kommune})
	if err != nil {
		return err
	}

	w.log.Info("scheduled collection run finished",
		"runId", resp.RunID,
		"scope", resp.Scope,
		"seen", resp.Seen,
		"created", resp.Created,
		"updated", resp.Updated,
		"moved", resp.Moved,
		"errors", resp.Errors,
		"failures", resp.Failures,
	)
	return nil
}

func (w *Worker) handleCoverageBackfill(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseCoverageBackfillPayload(task)
	if err != nil {
		return err
	}

	result, err := w.coverage.Backfill(ctx, payload.Kommune)
	if err != nil {
		return err
	}

	w.log.Info("scheduled backfill finished",
		"kommune", result.KommuneNumber,
		"strategy", result.Strategy,
		"phases", result.PhasesExecuted,
		"seen", result.Stats.Seen,
		"errors", result.Stats.Errors,
	)
	return nil
}
