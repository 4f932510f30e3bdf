// Package handler exposes coverage analysis and backfill over HTTP.
package handler

import (
	"net/http"
	"regexp"
	"strconv"
	"time"

	"konkursradar_backend/internal/coverage/service"
	"konkursradar_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

var kommunePattern = regexp.MustCompile(`^\d{4}$`)

// Handler handles HTTP requests for coverage analysis and backfills.
type Handler struct {
	svc *service.Service
}

// New creates a new coverage handler.
func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the coverage routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:kommune", h.GetCoverage)
	rg.POST("/:kommune/plan", h.CreatePlan)
	rg.POST("/:kommune/backfill", h.Backfill)
	rg.POST("/:kommune/backfill/schedule", h.ScheduleBackfill)
}

// GetCoverage returns the coverage report for one municipality.
func (h *Handler) GetCoverage(c *gin.Context) {
	kommune, ok := h.kommuneParam(c)
	if !ok {
		return
	}

	report, err := h.svc.GetCoverage(c.Request.Context(), kommune)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, report)
}

// CreatePlan returns an advisory backfill plan for one municipality.
func (h *Handler) CreatePlan(c *gin.Context) {
	kommune, ok := h.kommuneParam(c)
	if !ok {
		return
	}

	plan, err := h.svc.CreatePlan(c.Request.Context(), kommune)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, plan)
}

// Backfill plans and executes a backfill for one municipality. This is a
// synchronous call; large backlogs are better submitted through the
// scheduler queue.
func (h *Handler) Backfill(c *gin.Context) {
	kommune, ok := h.kommuneParam(c)
	if !ok {
		return
	}

	result, err := h.svc.Backfill(c.Request.Context(), kommune)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

type scheduleBackfillResponse struct {
	Kommune string    `json:"kommune"`
	RunAt   time.Time `json:"runAt"`
}

// ScheduleBackfill enqueues a backfill on the worker queue. The optional
// delayMinutes query defers it, e.g. to off-peak hours for strategic fills.
func (h *Handler) ScheduleBackfill(c *gin.Context) {
	kommune, ok := h.kommuneParam(c)
	if !ok {
		return
	}

	delay := 0
	if raw := c.Query("delayMinutes"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 || parsed > 10080 {
			httpkit.Error(c, http.StatusBadRequest, "invalid request", "delayMinutes must be between 0 and 10080")
			return
		}
		delay = parsed
	}

	runAt, err := h.svc.ScheduleBackfill(c.Request.Context(), kommune, time.Duration(delay)*time.Minute)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, scheduleBackfillResponse{Kommune: kommune, RunAt: runAt})
}

func (h *Handler) kommuneParam(c *gin.Context) (string, bool) {
	kommune := c.Param("kommune")
	if !kommunePattern.MatchString(kommune) {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", "kommune must be 4 digits")
		return "", false
	}
	return kommune, true
}
