package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskCollectionRun = "collection.run"

const TaskCoverageBackfill = "coverage.backfill"

type CollectionRunPayload struct {
	Scope   string `json:"scope"`
	Kommune string `json:"kommune,omitempty"`
}

type CoverageBackfillPayload struct {
	Kommune string `json:"kommune"`
}

func NewCollectionRunTask(payload CollectionRunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCollectionRun, data), nil
}

func ParseCollectionRunPayload(task *asynq.Task) (CollectionRunPayload, error) {
	var payload CollectionRunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return CollectionRunPayload{}, err
	}
	return payload, nil
}

func NewCoverageBackfillTask(payload CoverageBackfillPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCoverageBackfill, data), nil
}

func ParseCoverageBackfillPayload(task *asynq.Task) (CoverageBackfillPayload, error) {
	var payload CoverageBackfillPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return CoverageBackfillPayload{}, err
	}
	return payload, nil
}
