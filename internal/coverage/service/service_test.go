package service

import (
	"context"
	"testing"
	"time"

	kommunerepo "konkursradar_backend/internal/kommune/repository"
	"konkursradar_backend/platform/apperr"
	"konkursradar_backend/platform/logger"
)

type fakeChecker struct {
	known map[string]bool
}

func (f *fakeChecker) Get(ctx context.Context, number string) (kommunerepo.Kommune, error) {
	if !f.known[number] {
		return kommunerepo.Kommune{}, kommunerepo.ErrNotFound
	}
	return kommunerepo.Kommune{Number: number}, nil
}

type fakeBackfillQueue struct {
	kommuner []string
	runAts   []time.Time
}

func (f *fakeBackfillQueue) ScheduleBackfill(ctx context.Context, kommuneNumber string, runAt time.Time) error {
	f.kommuner = append(f.kommuner, kommuneNumber)
	f.runAts = append(f.runAts, runAt)
	return nil
}

func TestScheduleBackfillEnqueues(t *testing.T) {
	queue := &fakeBackfillQueue{}
	svc := New(nil, nil, nil, &fakeChecker{known: map[string]bool{"0301": true}}, queue, logger.New("test"))

	before := time.Now().UTC()
	runAt, err := svc.ScheduleBackfill(context.Background(), "0301", 2*time.Hour)
	if err != nil {
		t.Fatalf("ScheduleBackfill: %v", err)
	}

	if len(queue.kommuner) != 1 || queue.kommuner[0] != "0301" {
		t.Fatalf("unexpected enqueued backfills: %v", queue.kommuner)
	}
	if runAt.Before(before.Add(2*time.Hour)) || !runAt.Equal(queue.runAts[0]) {
		t.Fatalf("expected run at %v after the delay, enqueued %v", runAt, queue.runAts[0])
	}
}

func TestScheduleBackfillUnknownKommune(t *testing.T) {
	queue := &fakeBackfillQueue{}
	svc := New(nil, nil, nil, &fakeChecker{}, queue, logger.New("test"))

	_, err := svc.ScheduleBackfill(context.Background(), "9999", 0)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	if len(queue.kommuner) != 0 {
		t.Fatal("unknown kommune must not be enqueued")
	}
}

func TestScheduleBackfillWithoutQueueIsUnavailable(t *testing.T) {
	svc := New(nil, nil, nil, &fakeChecker{known: map[string]bool{"0301": true}}, nil, logger.New("test"))

	_, err := svc.ScheduleBackfill(context.Background(), "0301", 0)
	if !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}
