// Package kommune provides the municipality reference-data module.
package kommune

import (
	apphttp "konkursradar_backend/internal/http"
	"konkursradar_backend/internal/kommune/handler"
	"konkursradar_backend/internal/kommune/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the kommune reference module
type Module struct {
	handler *handler.Handler
	repo    *repository.Repository
}

// NewModule creates a new kommune module
func NewModule(pool *pgxpool.Pool) *Module {
	repo := repository.New(pool)
	h := handler.New(repo)

	return &Module{
		handler: h,
		repo:    repo,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "kommune"
}

// Repository returns the repository for composition by the collector
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes registers the module's routes
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	kommuner := ctx.V1.Group("/kommuner")
	m.handler.RegisterRoutes(kommuner)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
