// Package transport defines request and response DTOs for collection runs.
package transport

import "time"

// Run scopes accepted by the run endpoint.
const (
	ScopeAll      = "all"
	ScopePriority = "priority"
	ScopeKommune  = "kommune"
)

// RunRequest triggers a collection run.
type RunRequest struct {
	Scope   string `json:"scope" validate:"required,oneof=all priority kommune"`
	Kommune string `json:"kommune" validate:"omitempty,len=4,numeric"`
}

// ScheduleRunRequest enqueues a collection run for deferred execution on
// the worker queue instead of running it in the request path.
type ScheduleRunRequest struct {
	Scope        string `json:"scope" validate:"required,oneof=all priority kommune"`
	Kommune      string `json:"kommune" validate:"omitempty,len=4,numeric"`
	DelayMinutes int    `json:"delayMinutes" validate:"omitempty,min=0,max=10080"`
}

// ScheduleRunResponse reports when the enqueued run will execute.
type ScheduleRunResponse struct {
	Scope   string    `json:"scope"`
	Kommune string    `json:"kommune,omitempty"`
	RunAt   time.Time `json:"runAt"`
}

// KommuneStatsResponse reports one municipality within a run.
type KommuneStatsResponse struct {
	KommuneNumber string `json:"kommuneNumber"`
	Seen          int    `json:"seen"`
	Created       int    `json:"created"`
	Updated       int    `json:"updated"`
	Moved         int    `json:"moved"`
	Unchanged     int    `json:"unchanged"`
	Errors        int    `json:"errors"`
	Failed        bool   `json:"failed"`
	Error         string `json:"error,omitempty"`
	ElapsedMs     int64  `json:"elapsedMs"`
}

// RunResponse reports a completed collection run. Partial success is a
// normal outcome: failed municipalities are listed alongside healthy ones.
type RunResponse struct {
	RunID     string                 `json:"runId"`
	Scope     string                 `json:"scope"`
	Seen      int                    `json:"seen"`
	Created   int                    `json:"created"`
	Updated   int                    `json:"updated"`
	Moved     int                    `json:"moved"`
	Unchanged int                    `json:"unchanged"`
	Errors    int                    `json:"errors"`
	Failures  int                    `json:"failures"`
	Kommuner  []KommuneStatsResponse `json:"kommuner"`
}

// RunRecordResponse is one historical run in the run list.
type RunRecordResponse struct {
	ID         string     `json:"id"`
	Scope      string     `json:"scope"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt"`
	Seen       int        `json:"seen"`
	Created    int        `json:"created"`
	Updated    int        `json:"updated"`
	Moved      int        `json:"moved"`
	Unchanged  int        `json:"unchanged"`
	Errors     int        `json:"errors"`
	Notes      string     `json:"notes,omitempty"`
}

// RunListResponse wraps the run history.
type RunListResponse struct {
	Runs []RunRecordResponse `json:"runs"`
}
