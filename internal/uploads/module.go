// Package uploads accepts bulk case and co-applicant files and exposes the
// revision batches they produce.
package uploads

import (
	"recovery_backend/internal/adapters/storage"
	"recovery_backend/internal/events"
	apphttp "recovery_backend/internal/http"
	"recovery_backend/internal/ingest"
	ingestrepo "recovery_backend/internal/ingest/repository"
	"recovery_backend/internal/uploads/handler"
	"recovery_backend/internal/uploads/repository"
	"recovery_backend/internal/uploads/service"
	"recovery_backend/platform/config"
	"recovery_backend/platform/logger"
	"recovery_backend/platform/redisx"
	"recovery_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewService wires the upload service over Postgres. locker may be nil when
// Redis is not configured. The api and the worker share it.
func NewService(pool *pgxpool.Pool, eventBus events.Bus, storageSvc storage.StorageService, bucket string, cfg config.CollectionsConfig, locker *redisx.Locker, log *logger.Logger) *service.Service {
	store := ingestrepo.New(pool)
	engine := ingest.NewEngine(store, store, cfg.GetLocation(), log)
	normalizer := ingest.NewNormalizer(cfg.GetLocation(), cfg.GetPhoneRegion(), cfg.GetUploadMaxRows())

	svc := service.New(repository.New(pool), engine, normalizer, storageSvc, bucket, eventBus, log).
		WithTimeout(cfg.GetUploadTimeout())
	if locker != nil {
		svc.WithLocker(locker, cfg.GetUploadLockTTL())
	}
	return svc
}

// Module is the uploads module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule creates the uploads module. queue may be nil, in which case
// uploads run inline.
func NewModule(svc *service.Service, queue service.Enqueuer, val *validator.Validator) *Module {
	if queue != nil {
		svc.WithQueue(queue)
	}
	return &Module{handler: handler.New(svc, val)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "uploads"
}

// RegisterRoutes mounts upload and revision routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	var limits []gin.HandlerFunc
	if ctx.UploadRateLimiter != nil {
		limits = append(limits, ctx.UploadRateLimiter.RateLimit())
	}
	m.handler.RegisterRoutes(ctx.Protected, limits...)
}

var _ apphttp.Module = (*Module)(nil)
