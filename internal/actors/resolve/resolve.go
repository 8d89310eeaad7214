// Package resolve loads the acting employee for a request and exposes it as
// a visibility.Actor to the handlers that follow.
package resolve

import (
	"context"
	"net/http"

	"recovery_backend/internal/actors/repository"
	"recovery_backend/internal/visibility"
	"recovery_backend/platform/apperr"
	"recovery_backend/platform/httpkit"
	"recovery_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const contextActorKey = "actor"

// EmployeeReader is the part of the actors repository the resolver needs.
type EmployeeReader interface {
	GetEmployee(ctx context.Context, organizationID, employeeID uuid.UUID) (repository.Employee, error)
}

// Actor converts an employee row.
func Actor(e repository.Employee) visibility.Actor {
	perms := make([]visibility.Permission, 0, len(e.Permissions))
	for _, p := range e.Permissions {
		perms = append(perms, visibility.Permission(p))
	}
	return visibility.Actor{
		OrganizationID: e.OrganizationID,
		EmployeeID:     e.ID,
		Name:           e.Name,
		Branches:       e.Branches,
		Permissions:    perms,
		SuperAdmin:     e.IsSuperAdmin,
	}
}

// Middleware resolves the caller. Tokens whose subject is not an employee of
// the token's organization are rejected with 403.
func Middleware(reader EmployeeReader, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, ok := httpkit.MustGetTenantID(c)
		if !ok {
			return
		}
		userID := httpkit.GetIdentity(c).UserID()

		employee, err := reader.GetEmployee(c.Request.Context(), tenantID, userID)
		if apperr.Is(err, apperr.KindNotFound) {
			log.AccessDenied(tenantID.String(), userID.String(), "not an employee of organization")
			c.AbortWithStatusJSON(http.StatusForbidden, httpkit.ErrorResponse{Error: "forbidden", Code: "forbidden"})
			return
		}
		if err != nil {
			httpkit.HandleError(c, err)
			c.Abort()
			return
		}

		c.Set(contextActorKey, Actor(employee))
		c.Next()
	}
}

// Set stores actor on the gin context. Used by tests and by the CLI-driven
// handlers that resolve actors themselves.
func Set(c *gin.Context, actor visibility.Actor) {
	c.Set(contextActorKey, actor)
}

// MustGetActor returns the resolved actor or aborts with 401.
func MustGetActor(c *gin.Context) (visibility.Actor, bool) {
	raw, ok := c.Get(contextActorKey)
	if ok {
		if actor, ok := raw.(visibility.Actor); ok {
			return actor, true
		}
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, httpkit.ErrorResponse{Error: "unauthorized", Code: "unauthorized"})
	return visibility.Actor{}, false
}
