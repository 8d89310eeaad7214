package handler

import (
	"net/http"

	"recovery_backend/internal/actors/resolve"
	"recovery_backend/internal/reports/service"
	"recovery_backend/internal/reports/transport"
	"recovery_backend/platform/httpkit"
	"recovery_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"

	formatCSV = "csv"
)

// Handler handles report requests.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new reports handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers report routes on a /reports group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/follow-ups/daily", h.DailyFollowUps)
	rg.GET("/payments/daily", h.DailyPayments)
	rg.GET("/dashboard", h.Dashboard)
}

func (h *Handler) bindDaily(c *gin.Context) (transport.DailyReportRequest, bool) {
	var req transport.DailyReportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return req, false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return req, false
	}
	// CSV is always a full export.
	if req.Format == formatCSV {
		req.Export = true
	}
	return req, true
}

func (h *Handler) DailyFollowUps(c *gin.Context) {
	req, ok := h.bindDaily(c)
	if !ok {
		return
	}
	actor, ok := resolve.MustGetActor(c)
	if !ok {
		return
	}

	report, err := h.svc.FollowUps(c.Request.Context(), actor, req)
	if httpkit.HandleError(c, err) {
		return
	}
	if req.Format == formatCSV {
		writeCSV(c, "follow-ups-"+report.Day+".csv", followUpHeaders, followUpRecords(report.Items))
		return
	}
	httpkit.OK(c, report)
}

func (h *Handler) DailyPayments(c *gin.Context) {
	req, ok := h.bindDaily(c)
	if !ok {
		return
	}
	actor, ok := resolve.MustGetActor(c)
	if !ok {
		return
	}

	report, err := h.svc.Payments(c.Request.Context(), actor, req)
	if httpkit.HandleError(c, err) {
		return
	}
	if req.Format == formatCSV {
		writeCSV(c, "payments-"+report.Day+".csv", paymentHeaders, paymentRecords(report.Items))
		return
	}
	httpkit.OK(c, report)
}

func (h *Handler) Dashboard(c *gin.Context) {
	actor, ok := resolve.MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.svc.Dashboard(c.Request.Context(), actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
