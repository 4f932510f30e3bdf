// Package handler exposes the municipality reference data over HTTP.
package handler

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"

	"konkursradar_backend/internal/kommune/repository"
	"konkursradar_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

var kommunePattern = regexp.MustCompile(`^\d{4}$`)

// Handler handles HTTP requests for municipalities.
type Handler struct {
	repo *repository.Repository
}

// New creates a new kommune handler.
func New(repo *repository.Repository) *Handler {
	return &Handler{repo: repo}
}

// RegisterRoutes registers the kommune routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:number", h.Get)
}

type kommuneResponse struct {
	Number       string `json:"number"`
	Name         string `json:"name"`
	County       string `json:"county"`
	PriorityTier int    `json:"priorityTier"`
}

// List returns all municipalities, optionally limited to a priority tier.
func (h *Handler) List(c *gin.Context) {
	var (
		kommuner []repository.Kommune
		err      error
	)
	if raw := c.Query("maxTier"); raw != "" {
		maxTier, parseErr := strconv.Atoi(raw)
		if parseErr != nil || maxTier < 1 {
			httpkit.Error(c, http.StatusBadRequest, "invalid request", "maxTier must be a positive integer")
			return
		}
		kommuner, err = h.repo.ListByTier(c.Request.Context(), maxTier)
	} else {
		kommuner, err = h.repo.List(c.Request.Context())
	}
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]kommuneResponse, 0, len(kommuner))
	for _, k := range kommuner {
		out = append(out, toResponse(k))
	}
	httpkit.OK(c, gin.H{"kommuner": out})
}

// Get returns one municipality by number.
func (h *Handler) Get(c *gin.Context) {
	number := c.Param("number")
	if !kommunePattern.MatchString(number) {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", "number must be 4 digits")
		return
	}

	k, err := h.repo.Get(c.Request.Context(), number)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			httpkit.Error(c, http.StatusNotFound, "kommune not found", nil)
			return
		}
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, toResponse(k))
}

func toResponse(k repository.Kommune) kommuneResponse {
	return kommuneResponse{
		Number:       k.Number,
		Name:         k.Name,
		County:       k.County,
		PriorityTier: k.PriorityTier,
	}
}
