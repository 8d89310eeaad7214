// Package actors resolves the acting employee of each request and serves the
// employee's own cash ledger.
package actors

import (
	"recovery_backend/internal/actors/handler"
	"recovery_backend/internal/actors/repository"
	"recovery_backend/internal/actors/resolve"
	apphttp "recovery_backend/internal/http"
	"recovery_backend/platform/logger"
	"recovery_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the actors module implementing http.Module.
type Module struct {
	handler *handler.Handler
	repo    *repository.Repo
	log     *logger.Logger
}

// NewModule creates the actors module.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	return &Module{handler: handler.New(repo, val), repo: repo, log: log}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "actors"
}

// Repository exposes employee lookups to other modules.
func (m *Module) Repository() *repository.Repo {
	return m.repo
}

// Middleware resolves the acting employee. It must run after authentication.
func (m *Module) Middleware() gin.HandlerFunc {
	return resolve.Middleware(m.repo, m.log)
}

// RegisterRoutes mounts /me routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/me"))
}

var _ apphttp.Module = (*Module)(nil)
