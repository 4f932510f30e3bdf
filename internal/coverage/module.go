// Package coverage provides the coverage analysis and backfill domain module.
package coverage

import (
	"konkursradar_backend/internal/collector"
	"konkursradar_backend/internal/companies/repository"
	"konkursradar_backend/internal/coverage/analysis"
	"konkursradar_backend/internal/coverage/handler"
	"konkursradar_backend/internal/coverage/service"
	apphttp "konkursradar_backend/internal/http"
	kommunerepo "konkursradar_backend/internal/kommune/repository"
	"konkursradar_backend/internal/scheduler"
	"konkursradar_backend/platform/logger"
)

// Module represents the coverage domain module
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule assembles the analyzer, planner and executor on top of the
// companies repository and the shared collector. A nil scheduler client
// disables the schedule endpoint.
func NewModule(repo *repository.Repository, kommuner *kommunerepo.Repository, collect *collector.Collector, sched *scheduler.Client, pageSize int, log *logger.Logger) *Module {
	var backfillSched service.BackfillScheduler
	if sched != nil {
		backfillSched = sched
	}
	analyzer := analysis.NewAnalyzer(repo, nil)
	planner := analysis.NewPlanner(analyzer, pageSize)
	executor := analysis.NewExecutor(collect, collector.NewKommuneList(kommuner))
	svc := service.New(analyzer, planner, executor, kommuner, backfillSched, log)
	h := handler.New(svc)

	return &Module{
		handler: h,
		service: svc,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "coverage"
}

// Service returns the service layer for external use
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes registers the module's routes. Coverage operations mutate
// collection state, so they sit behind admin auth.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	cov := ctx.Admin.Group("/coverage")
	m.handler.RegisterRoutes(cov)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
