// Package followups records field-agent follow-ups and their promises to pay.
package followups

import (
	"time"

	"recovery_backend/internal/adapters/storage"
	"recovery_backend/internal/events"
	"recovery_backend/internal/followups/handler"
	"recovery_backend/internal/followups/repository"
	"recovery_backend/internal/followups/service"
	apphttp "recovery_backend/internal/http"
	"recovery_backend/platform/logger"
	"recovery_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the follow-ups module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule creates the follow-ups module.
func NewModule(
	pool *pgxpool.Pool,
	eventBus events.Bus,
	storageSvc storage.StorageService,
	selfieBucket string,
	loc *time.Location,
	fulfilmentWindow time.Duration,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	svc := service.New(repository.New(pool), eventBus, storageSvc, selfieBucket, loc, fulfilmentWindow, log)
	return &Module{handler: handler.New(svc, val)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "followups"
}

// RegisterRoutes mounts follow-up routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/cases/:caseNo/follow-ups"))
}

var _ apphttp.Module = (*Module)(nil)
