package handler

import (
	"errors"
	"net/http"
	"strings"

	"recovery_backend/internal/actors/resolve"
	"recovery_backend/internal/adapters/storage"
	"recovery_backend/internal/followups/service"
	"recovery_backend/internal/followups/transport"
	"recovery_backend/platform/httpkit"
	"recovery_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"

	selfieField = "selfie"
)

// Handler handles HTTP requests for follow-ups.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new follow-ups handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers follow-up routes on a /cases/:caseNo/follow-ups group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
}

func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateFollowUpRequest
	var selfie *storage.Attachment

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBind(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
		fh, err := c.FormFile(selfieField)
		if err != nil && !errors.Is(err, http.ErrMissingFile) {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
		selfie = storage.AttachmentFromHeader(fh)
	} else if err := c.ShouldBindJSON(&req); err != nil {
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

	result, err := h.svc.Create(c.Request.Context(), actor, strings.TrimSpace(c.Param("caseNo")), req, selfie)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

func (h *Handler) List(c *gin.Context) {
	actor, ok := resolve.MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.svc.List(c.Request.Context(), actor, strings.TrimSpace(c.Param("caseNo")))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
