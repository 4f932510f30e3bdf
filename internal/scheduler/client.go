package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"konkursradar_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

type Client struct {
	client *asynq.Client
	queue  string
}

// CollectionScheduler enqueues collection work for the worker.
type CollectionScheduler interface {
	ScheduleCollectionRun(ctx context.Context, payload CollectionRunPayload, runAt time.Time) error
	ScheduleCoverageBackfill(ctx context.Context, payload CoverageBackfillPayload, runAt time.Time) error
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
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

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) ScheduleCollectionRun(ctx context.Context, payload CollectionRunPayload, runAt time.Time) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewCollectionRunTask(payload)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.ProcessAt(runAt), asynq.Queue(c.queue))
	return err
}

func (c *Client) ScheduleCoverageBackfill(ctx context.Context, payload CoverageBackfillPayload, runAt time.Time) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewCoverageBackfillTask(payload)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.ProcessAt(runAt), asynq.Queue(c.queue))
	return err
}

// ScheduleRun enqueues a collection run without requiring callers to build
// the payload type. Satisfies the collections service's RunScheduler.
func (c *Client) ScheduleRun(ctx context.Context, scope, kommune string, runAt time.Time) error {
	return c.ScheduleCollectionRun(ctx, CollectionRunPayload{Scope: scope, Kommune: kommune}, runAt)
}

// ScheduleBackfill enqueues a coverage backfill for one municipality.
// Satisfies the coverage service's BackfillScheduler.
func (c *Client) ScheduleBackfill(ctx context.Context, kommuneNumber string, runAt time.Time) error {
	return c.ScheduleCoverageBackfill(ctx, CoverageBackfillPayload{Kommune: kommuneNumber}, runAt)
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
