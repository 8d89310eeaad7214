package resolve

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"recovery_backend/internal/actors/repository"
	"recovery_backend/internal/visibility"
	"recovery_backend/platform/apperr"
	"recovery_backend/platform/httpkit"
	"recovery_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type fakeReader struct {
	employees map[uuid.UUID]repository.Employee
}

func (f fakeReader) GetEmployee(ctx context.Context, organizationID, employeeID uuid.UUID) (repository.Employee, error) {
	e, ok := f.employees[employeeID]
	if !ok || e.OrganizationID != organizationID {
		return repository.Employee{}, apperr.NotFound("employee not found")
	}
	return e, nil
}

func newRouter(reader EmployeeReader, userID, tenantID uuid.UUID, got *visibility.Actor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, userID)
		c.Set(httpkit.ContextTenantIDKey, tenantID)
	})
	r.Use(Middleware(reader, logger.Nop()))
	r.GET("/", func(c *gin.Context) {
		actor, ok := MustGetActor(c)
		if !ok {
			return
		}
		*got = actor
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestMiddlewareResolvesActor(t *testing.T) {
	org := uuid.New()
	emp := repository.Employee{
		ID:             uuid.New(),
		OrganizationID: org,
		Name:           "Meera",
		Branches:       []string{"PUNE"},
		Permissions:    []string{"view_area", "view_self"},
	}
	var got visibility.Actor
	r := newRouter(fakeReader{employees: map[uuid.UUID]repository.Employee{emp.ID: emp}}, emp.ID, org, &got)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got.EmployeeID != emp.ID || !got.Has(visibility.PermViewArea) || got.Has(visibility.PermViewOthers) {
		t.Fatalf("unexpected actor %+v", got)
	}
}

func TestMiddlewareRejectsForeignEmployee(t *testing.T) {
	emp := repository.Employee{ID: uuid.New(), OrganizationID: uuid.New()}
	var got visibility.Actor
	r := newRouter(fakeReader{employees: map[uuid.UUID]repository.Employee{emp.ID: emp}}, emp.ID, uuid.New(), &got)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}
