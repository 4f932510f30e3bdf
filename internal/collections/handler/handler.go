// Package handler exposes collection runs over HTTP.
package handler

import (
	"net/http"
	"strconv"

	"konkursradar_backend/internal/collections/service"
	"konkursradar_backend/internal/collections/transport"
	"konkursradar_backend/platform/httpkit"
	"konkursradar_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for collection runs.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new collections handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the collection routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/run", h.Run)
	rg.POST("/schedule", h.Schedule)
	rg.GET("/runs", h.ListRuns)
}

// Run triggers a synchronous collection run. Large scopes can take minutes;
// the scheduler queue is the better entry point for nightly work.
func (h *Handler) Run(c *gin.Context) {
	var req transport.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	resp, err := h.svc.Run(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, resp)
}

// Schedule enqueues a collection run on the worker queue, optionally after
// a delay.
func (h *Handler) Schedule(c *gin.Context) {
	var req transport.ScheduleRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	resp, err := h.svc.ScheduleRun(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, resp)
}

// ListRuns returns the most recent collection runs.
func (h *Handler) ListRuns(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, "limit must be between 1 and 200")
			return
		}
		limit = parsed
	}

	resp, err := h.svc.ListRuns(c.Request.Context(), limit)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, resp)
}
