// Package cases provides the case list, case detail and agent edits.
package cases

import (
	"recovery_backend/internal/cases/handler"
	"recovery_backend/internal/cases/repository"
	"recovery_backend/internal/cases/service"
	"recovery_backend/internal/events"
	apphttp "recovery_backend/internal/http"
	"recovery_backend/platform/logger"
	"recovery_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the cases bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the cases module with all its dependencies.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, phoneRegion string, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, eventBus, phoneRegion, log)
	return &Module{handler: handler.New(svc, val), service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "cases"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts case routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/cases"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
