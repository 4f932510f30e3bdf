// Package collections provides the collection-run domain module: the admin
// surface for triggering runs and reading run history.
package collections

import (
	"konkursradar_backend/internal/collections/handler"
	"konkursradar_backend/internal/collections/service"
	"konkursradar_backend/internal/collector"
	"konkursradar_backend/internal/companies/repository"
	apphttp "konkursradar_backend/internal/http"
	kommunerepo "konkursradar_backend/internal/kommune/repository"
	"konkursradar_backend/internal/scheduler"
	"konkursradar_backend/platform/logger"
	"konkursradar_backend/platform/validator"
)

// Module represents the collections domain module
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates a new collections module with all dependencies wired.
// A nil scheduler client disables the schedule endpoint.
func NewModule(collect *collector.Collector, kommuner *kommunerepo.Repository, repo *repository.Repository, sched *scheduler.Client, log *logger.Logger, val *validator.Validator) *Module {
	var runSched service.RunScheduler
	if sched != nil {
		runSched = sched
	}
	svc := service.New(collect, kommuner, repo, runSched, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "collections"
}

// Service returns the service layer for external use
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes registers the module's routes. Runs mutate collection
// state, so they sit behind admin auth.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	collections := ctx.Admin.Group("/collections")
	m.handler.RegisterRoutes(collections)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
