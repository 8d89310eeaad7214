package handler

import (
	"context"
	"net/http"

	"recovery_backend/internal/actors/repository"
	"recovery_backend/internal/actors/resolve"
	"recovery_backend/internal/actors/transport"
	"recovery_backend/platform/httpkit"
	"recovery_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"

	defaultPageSize = 50
)

// LedgerReader is the read side of the employee ledger.
type LedgerReader interface {
	GetEmployee(ctx context.Context, organizationID, employeeID uuid.UUID) (repository.Employee, error)
	ListLedgerEntries(ctx context.Context, organizationID, employeeID uuid.UUID, limit, offset int) ([]repository.LedgerEntry, int64, error)
}

// Handler serves the acting employee's own data.
type Handler struct {
	repo LedgerReader
	val  *validator.Validator
}

// New creates a new actors handler.
func New(repo LedgerReader, val *validator.Validator) *Handler {
	return &Handler{repo: repo, val: val}
}

// RegisterRoutes registers /me routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ledger", h.Ledger)
}

func (h *Handler) Ledger(c *gin.Context) {
	var req transport.LedgerQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	actor, ok := resolve.MustGetActor(c)
	if !ok {
		return
	}

	page, pageSize := req.Page, req.PageSize
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = defaultPageSize
	}

	ctx := c.Request.Context()
	employee, err := h.repo.GetEmployee(ctx, actor.OrganizationID, actor.EmployeeID)
	if httpkit.HandleError(c, err) {
		return
	}
	entries, total, err := h.repo.ListLedgerEntries(ctx, actor.OrganizationID, actor.EmployeeID, pageSize, (page-1)*pageSize)
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.LedgerResponse{
		EmployeeID: employee.ID.String(),
		Name:       employee.Name,
		Balance:    employee.LedgerBalance,
		Entries:    make([]transport.LedgerEntryResponse, 0, len(entries)),
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, transport.LedgerEntryResponse{
			ID:           e.ID.String(),
			CaseNo:       e.CaseNo,
			PaymentID:    e.PaymentID.String(),
			Amount:       e.Amount,
			BalanceAfter: e.BalanceAfter,
			Description:  e.Description,
			CreatedAt:    e.CreatedAt,
		})
	}
	httpkit.OK(c, resp)
}
