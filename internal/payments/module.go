// Package payments records collections against cases and credits cash to the
// collector's ledger.
package payments

import (
	"recovery_backend/internal/adapters/storage"
	"recovery_backend/internal/events"
	apphttp "recovery_backend/internal/http"
	"recovery_backend/internal/payments/handler"
	"recovery_backend/internal/payments/repository"
	"recovery_backend/internal/payments/service"
	"recovery_backend/platform/logger"
	"recovery_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the payments module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule creates the payments module.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, storageSvc storage.StorageService, selfieBucket string, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(repository.New(pool), eventBus, storageSvc, selfieBucket, log)
	return &Module{handler: handler.New(svc, val)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "payments"
}

// RegisterRoutes mounts payment routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/cases/:caseNo/payments"))
}

var _ apphttp.Module = (*Module)(nil)
