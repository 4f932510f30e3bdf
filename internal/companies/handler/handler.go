// Package handler exposes the companies read API over HTTP.
package handler

import (
	"net/http"
	"regexp"

	"konkursradar_backend/internal/companies/service"
	"konkursradar_backend/internal/companies/transport"
	"konkursradar_backend/platform/httpkit"
	"konkursradar_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

var orgNumberPattern = regexp.MustCompile(`^\d{9}$`)

// Handler handles HTTP requests for companies.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new companies handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the company routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:orgnr", h.GetByOrgNumber)
	rg.GET("/:orgnr/addresses", h.AddressHistory)
}

// List returns companies in a municipality.
func (h *Handler) List(c *gin.Context) {
	var req transport.ListCompaniesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	resp, err := h.svc.ListByKommune(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, resp)
}

// GetByOrgNumber returns one company by organization number.
func (h *Handler) GetByOrgNumber(c *gin.Context) {
	orgNumber := c.Param("orgnr")
	if !orgNumberPattern.MatchString(orgNumber) {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, "orgnr must be 9 digits")
		return
	}

	resp, err := h.svc.GetByOrgNumber(c.Request.Context(), orgNumber)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, resp)
}

// AddressHistory returns the address interval series for one company.
func (h *Handler) AddressHistory(c *gin.Context) {
	orgNumber := c.Param("orgnr")
	if !orgNumberPattern.MatchString(orgNumber) {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, "orgnr must be 9 digits")
		return
	}

	var window transport.HistoryWindowRequest
	if err := c.ShouldBindQuery(&window); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}

	resp, err := h.svc.AddressHistory(c.Request.Context(), orgNumber, window)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, resp)
}
