// Package companies provides the company and address-history domain module.
package companies

import (
	"konkursradar_backend/internal/companies/handler"
	"konkursradar_backend/internal/companies/repository"
	"konkursradar_backend/internal/companies/service"
	apphttp "konkursradar_backend/internal/http"
	"konkursradar_backend/platform/logger"
	"konkursradar_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the companies domain module
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates a new companies module with all dependencies wired
func NewModule(pool *pgxpool.Pool, log *logger.Logger, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "companies"
}

// Service returns the service layer for external use
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the repository for composition by the collector
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes registers the module's routes
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	companies := ctx.V1.Group("/companies")
	m.handler.RegisterRoutes(companies)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
