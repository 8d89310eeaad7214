package handler

import (
	"net/http"
	"strings"

	"recovery_backend/internal/actors/resolve"
	"recovery_backend/internal/adapters/storage"
	"recovery_backend/internal/uploads/repository"
	"recovery_backend/internal/uploads/service"
	"recovery_backend/internal/uploads/transport"
	"recovery_backend/platform/httpkit"
	"recovery_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"

	fileField = "file"
)

// Handler handles HTTP requests for uploads and revisions.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new uploads handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers upload and revision routes on the protected
// group. uploadLimits run before the upload submission only.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, uploadLimits ...gin.HandlerFunc) {
	uploads := rg.Group("/cases/uploads")
	uploads.POST("", append(uploadLimits, h.Submit)...)
	uploads.GET("/:jobId", h.GetJob)

	revisions := rg.Group("/revisions")
	revisions.GET("", h.ListRevisions)
	revisions.GET("/:revisionId/cases", h.RevisionCases)
}

func (h *Handler) Submit(c *gin.Context) {
	var req transport.UploadRequest
	if err := c.ShouldBind(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	fh, err := c.FormFile(fileField)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, "file is required")
		return
	}

	actor, ok := resolve.MustGetActor(c)
	if !ok {
		return
	}

	job, err := h.svc.Submit(c.Request.Context(), actor, req.Type, storage.AttachmentFromHeader(fh))
	if httpkit.HandleError(c, err) {
		return
	}
	if job.Status == repository.StatusPending {
		httpkit.JSON(c, http.StatusAccepted, job)
		return
	}
	httpkit.OK(c, job)
}

func (h *Handler) GetJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("jobId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, "invalid job id")
		return
	}

	actor, ok := resolve.MustGetActor(c)
	if !ok {
		return
	}

	job, err := h.svc.GetJob(c.Request.Context(), actor, jobID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, job)
}

func (h *Handler) bindPage(c *gin.Context) (transport.PageRequest, bool) {
	var req transport.PageRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return req, false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return req, false
	}
	req.Search = strings.TrimSpace(req.Search)
	return req, true
}

func (h *Handler) ListRevisions(c *gin.Context) {
	req, ok := h.bindPage(c)
	if !ok {
		return
	}
	actor, ok := resolve.MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.svc.ListRevisions(c.Request.Context(), actor, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) RevisionCases(c *gin.Context) {
	req, ok := h.bindPage(c)
	if !ok {
		return
	}
	actor, ok := resolve.MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.svc.RevisionCases(c.Request.Context(), actor, strings.TrimSpace(c.Param("revisionId")), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
