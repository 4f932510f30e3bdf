package scheduler

import (
	"context"
	"fmt"

	"konkursradar_backend/internal/collections/transport"
	"konkursradar_backend/platform/config"
	"konkursradar_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Cron entries for recurring collection work. Times are server-local; the
// registry is quietest at night.
const (
	cronNightlyPriorityRun = "0 2 * * *"
	cronWeeklyFullRun      = "0 4 * * 0"
)

// Periodic enqueues the recurring collection tasks on a cron schedule.
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

// NewPeriodic builds the cron scheduler with the nightly priority run and
// the weekly full run registered.
func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
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

	scheduler := asynq.NewScheduler(opt, nil)

	nightly, err := NewCollectionRunTask(CollectionRunPayload{Scope: transport.ScopePriority})
	if err != nil {
		return nil, err
	}
	if _, err := scheduler.Register(cronNightlyPriorityRun, nightly, asynq.Queue(queue)); err != nil {
		return nil, err
	}

	weekly, err := NewCollectionRunTask(CollectionRunPayload{Scope: transport.ScopeAll})
	if err != nil {
		return nil, err
	}
	if _, err := scheduler.Register(cronWeeklyFullRun, weekly, asynq.Queue(queue)); err != nil {
		return nil, err
	}

	return &Periodic{scheduler: scheduler, log: log}, nil
}

// Run blocks until the context is cancelled.
func (p *Periodic) Run(ctx context.Context) {
	if p == nil || p.scheduler == nil {
		return
	}

	go func() {
		<-ctx.Done()
		p.scheduler.Shutdown()
	}()

	if err := p.scheduler.Run(); err != nil {
		p.log.Error("periodic scheduler stopped", "error", err)
	}
}
