package handler

import (
	"net/http"
	"strings"

	"recovery_backend/internal/actors/resolve"
	"recovery_backend/internal/cases/service"
	"recovery_backend/internal/cases/transport"
	"recovery_backend/platform/httpkit"
	"recovery_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for cases.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new cases handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers case routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:caseNo", h.Get)
	rg.PUT("/:caseNo/assignee", h.Assign)
	rg.POST("/:caseNo/remarks", h.AddRemark)
	rg.DELETE("/:caseNo/remarks/:remarkId", h.DeleteRemark)
	rg.POST("/:caseNo/contacts", h.AddContacts)
	rg.PUT("/:caseNo/location", h.SetLocation)
	rg.PUT("/:caseNo/area", h.SetArea)
}

func caseNoParam(c *gin.Context) string {
	return strings.TrimSpace(c.Param("caseNo"))
}

func (h *Handler) List(c *gin.Context) {
	var req transport.ListCasesRequest
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

	result, err := h.svc.List(c.Request.Context(), actor, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) Get(c *gin.Context) {
	actor, ok := resolve.MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.svc.Get(c.Request.Context(), actor, caseNoParam(c))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) Assign(c *gin.Context) {
	var req transport.AssignRequest
	if !h.bindJSON(c, &req) {
		return
	}
	actor, ok := resolve.MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.svc.Assign(c.Request.Context(), actor, caseNoParam(c), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) AddRemark(c *gin.Context) {
	var req transport.AddRemarkRequest
	if !h.bindJSON(c, &req) {
		return
	}
	actor, ok := resolve.MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.svc.AddRemark(c.Request.Context(), actor, caseNoParam(c), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

func (h *Handler) DeleteRemark(c *gin.Context) {
	remarkID, err := uuid.Parse(c.Param("remarkId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	actor, ok := resolve.MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.svc.DeleteRemark(c.Request.Context(), actor, caseNoParam(c), remarkID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) AddContacts(c *gin.Context) {
	var req transport.AddContactsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	actor, ok := resolve.MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.svc.AddContacts(c.Request.Context(), actor, caseNoParam(c), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) SetLocation(c *gin.Context) {
	var req transport.SetLocationRequest
	if !h.bindJSON(c, &req) {
		return
	}
	actor, ok := resolve.MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.svc.SetLocation(c.Request.Context(), actor, caseNoParam(c), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) SetArea(c *gin.Context) {
	var req transport.SetAreaRequest
	if !h.bindJSON(c, &req) {
		return
	}
	actor, ok := resolve.MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.svc.SetArea(c.Request.Context(), actor, caseNoParam(c), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return false
	}
	return true
}
