package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"labtable/internal/domain"
	"labtable/internal/service"
)

// UploadHandler handles photo uploads.
type UploadHandler struct {
	uploadService service.UploadService
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(uploadService service.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

// Upload handles POST /api/v1/uploads
func (h *UploadHandler) Upload(c *gin.Context) {
	accountID, ok := extractAccountID(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, string(domain.KindInvalidRequest), "file field is required")
		return
	}
	defer func() { _ = file.Close() }()

	result, err := h.uploadService.UploadImage(c.Request.Context(), service.ImageUploadInput{
		AccountID: accountID,
		IP:        c.ClientIP(),
		File:      file,
		Size:      header.Size,
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, result)
}
