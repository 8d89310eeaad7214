// Package reports serves the daily follow-up and payment reports and the
// cached dashboard rollup.
package reports

import (
	"time"

	casesrepo "recovery_backend/internal/cases/repository"
	"recovery_backend/internal/events"
	apphttp "recovery_backend/internal/http"
	"recovery_backend/internal/reports/handler"
	"recovery_backend/internal/reports/repository"
	"recovery_backend/internal/reports/service"
	"recovery_backend/platform/logger"
	"recovery_backend/platform/redisx"
	"recovery_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the reports module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule creates the reports module and subscribes dashboard invalidation
// to eventBus. cache may be nil.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, cache *redisx.JSONCache, loc *time.Location, fulfilmentWindow time.Duration, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(repository.New(pool), casesrepo.New(pool), cache, loc, fulfilmentWindow, log)
	service.NewInvalidator(cache).Subscribe(eventBus)
	return &Module{handler: handler.New(svc, val)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "reports"
}

// RegisterRoutes mounts report routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/reports"))
}

var _ apphttp.Module = (*Module)(nil)
