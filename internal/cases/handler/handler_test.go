package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"recovery_backend/internal/actors/resolve"
	"recovery_backend/internal/cases/repository"
	"recovery_backend/internal/cases/service"
	"recovery_backend/internal/events"
	"recovery_backend/internal/visibility"
	"recovery_backend/platform/apperr"
	"recovery_backend/platform/httpkit"
	"recovery_backend/platform/logger"
	"recovery_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type stubRepo struct {
	c repository.Case
}

func (s *stubRepo) List(ctx context.Context, params repository.ListParams) ([]repository.Case, int64, error) {
	return []repository.Case{s.c}, 1, nil
}

func (s *stubRepo) Get(ctx context.Context, scope visibility.Scope, caseNo string) (repository.Case, error) {
	if caseNo != s.c.CaseNo {
		return repository.Case{}, apperr.NotFound("case not found")
	}
	return s.c, nil
}

func (s *stubRepo) Histories(ctx context.Context, organizationID uuid.UUID, caseNos []string) (map[string]repository.History, error) {
	return map[string]repository.History{}, nil
}

func (s *stubRepo) Mutate(ctx context.Context, scope visibility.Scope, caseNo string, fn func(*repository.Case) error) (repository.Case, error) {
	c, err := s.Get(ctx, scope, caseNo)
	if err != nil {
		return c, err
	}
	if err := fn(&c); err != nil {
		return repository.Case{}, err
	}
	s.c = c
	return c, nil
}

func (s *stubRepo) EmployeeExists(ctx context.Context, organizationID, employeeID uuid.UUID) (bool, error) {
	return true, nil
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	org := uuid.New()
	repo := &stubRepo{c: repository.Case{
		OrganizationID: org, CaseNo: "LN001", LoanType: "PL", Area: "PUNE",
		EmiAmount: decimal.NewFromInt(1000), DueEmiAmount: decimal.NewNullDecimal(decimal.Zero),
	}}
	svc := service.New(repo, events.NewInMemoryBus(logger.Nop()), "IN", logger.Nop())
	h := New(svc, validator.New())

	r := gin.New()
	r.Use(func(c *gin.Context) {
		resolve.Set(c, visibility.Actor{OrganizationID: org, EmployeeID: uuid.New(), SuperAdmin: true})
	})
	h.RegisterRoutes(r.Group("/cases"))
	return r
}

func TestListCases(t *testing.T) {
	r := newRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cases?page=1&pageSize=10", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Items []struct {
			CaseNo string `json:"caseNo"`
			Stage  string `json:"stage"`
			Label  string `json:"label"`
		} `json:"items"`
		Total int64 `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || resp.Items[0].Stage != "completed" || resp.Items[0].Label != "Paid" {
		t.Fatalf("unexpected response %s", rec.Body.String())
	}
}

func TestListCasesRejectsUnknownStage(t *testing.T) {
	r := newRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cases?stage=lost", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetMissingCaseIs404(t *testing.T) {
	r := newRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cases/OTHER", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var body httpkit.ErrorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Code != apperr.CodeNotFound {
		t.Fatalf("unexpected code %q", body.Code)
	}
}

func TestAddRemarkValidatesBody(t *testing.T) {
	r := newRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cases/LN001/remarks", strings.NewReader(`{"text":""}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cases/LN001/remarks", strings.NewReader(`{"text":"called twice"}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSetLocationRejectsOutOfRange(t *testing.T) {
	r := newRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/cases/LN001/location", strings.NewReader(`{"latitude":123,"longitude":10}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
