// Package handler exposes attendance reconciliation over HTTP.
package handler

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"summercamp_backend/internal/adapters/storage"
	"summercamp_backend/internal/attendance/service"
	"summercamp_backend/internal/attendance/transport"
	"summercamp_backend/platform/httpkit"
	"summercamp_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"

	// ReplayHeader marks a response served from the idempotency cache.
	ReplayHeader = "Idempotent-Replay"
)

// Reconciler is the attendance service used by the handler.
type Reconciler interface {
	ProcessCallback(ctx context.Context, cb service.Callback) ([]byte, bool, error)
	RecognizeActivityPhoto(ctx context.Context, scheduleID int64, groupID *int64, fileName, contentType string, data []byte) (service.PhotoResult, error)
}

// Handler handles attendance HTTP requests.
type Handler struct {
	svc Reconciler
	val *validator.Validator
}

// New creates a new attendance handler.
func New(svc Reconciler, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterWebhookRoutes mounts the recognition callback on a service-token group.
func (h *Handler) RegisterWebhookRoutes(rg *gin.RouterGroup) {
	rg.POST("/face-recognition/results", h.RecognitionCallback)
}

// RegisterRoutes mounts the staff routes. Expected group: /admin/attendance
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/schedules/:scheduleId/recognize", h.RecognizePhoto)
}

// RecognitionCallback applies an asynchronous recognition result once per requestId.
func (h *Handler) RecognitionCallback(c *gin.Context) {
	var req transport.RecognitionCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	body, replay, err := h.svc.ProcessCallback(c.Request.Context(), req.ToCallback())
	if httpkit.HandleError(c, err) {
		return
	}
	if replay {
		c.Header(ReplayHeader, "true")
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// RecognizePhoto runs recognition on a photo uploaded by staff and applies the result.
func (h *Handler) RecognizePhoto(c *gin.Context) {
	scheduleID, err := strconv.ParseInt(c.Param("scheduleId"), 10, 64)
	if err != nil || scheduleID <= 0 {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var form transport.RecognizePhotoForm
	if err := c.ShouldBind(&form); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(form); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	file, err := c.FormFile("photo")
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "photo is required", nil)
		return
	}
	contentType := file.Header.Get("Content-Type")
	if err := storage.CheckPhoto(contentType, file.Size); err != nil {
		msg := storage.ErrUnsupportedType.Error()
		switch {
		case errors.Is(err, storage.ErrFileTooLarge):
			msg = storage.ErrFileTooLarge.Error()
		case errors.Is(err, storage.ErrEmptyFile):
			msg = storage.ErrEmptyFile.Error()
		}
		httpkit.Error(c, http.StatusBadRequest, msg, nil)
		return
	}

	data, err := readUpload(file)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "failed to read photo", nil)
		return
	}

	result, err := h.svc.RecognizeActivityPhoto(c.Request.Context(), scheduleID, form.CamperGroupID, file.Filename, contentType, data)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

var errPhotoTooLarge = errors.New("photo exceeds size limit")

func readUpload(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, storage.MaxPhotoSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > storage.MaxPhotoSize {
		return nil, errPhotoTooLarge
	}
	return data, nil
}
