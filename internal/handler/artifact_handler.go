package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"labtable/internal/domain"
	"labtable/internal/service"
)

// ArtifactHandler handles history, artifact retrieval, plot and export endpoints.
type ArtifactHandler struct {
	artifactService service.ArtifactService
}

// NewArtifactHandler creates a new ArtifactHandler.
func NewArtifactHandler(artifactService service.ArtifactService) *ArtifactHandler {
	return &ArtifactHandler{artifactService: artifactService}
}

// History handles GET /api/v1/artifacts
func (h *ArtifactHandler) History(c *gin.Context) {
	accountID, ok := extractAccountID(c)
	if !ok {
		return
	}

	items, err := h.artifactService.History(c.Request.Context(), accountID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, items)
}

// Get handles GET /api/v1/artifacts/:id
func (h *ArtifactHandler) Get(c *gin.Context) {
	accountID, ok := extractAccountID(c)
	if !ok {
		return
	}
	id, ok := parseArtifactID(c)
	if !ok {
		return
	}

	artifact, err := h.artifactService.Get(c.Request.Context(), accountID, id)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, artifact)
}

// Image handles GET /api/v1/artifacts/:id/image
func (h *ArtifactHandler) Image(c *gin.Context) {
	accountID, ok := extractAccountID(c)
	if !ok {
		return
	}
	id, ok := parseArtifactID(c)
	if !ok {
		return
	}

	url, err := h.artifactService.ImageURL(c.Request.Context(), accountID, id)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, gin.H{"download_url": url})
}

// Plot handles GET /api/v1/artifacts/:id/plot
func (h *ArtifactHandler) Plot(c *gin.Context) {
	accountID, ok := extractAccountID(c)
	if !ok {
		return
	}
	id, ok := parseArtifactID(c)
	if !ok {
		return
	}

	url, err := h.artifactService.PlotURL(c.Request.Context(), accountID, id)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, gin.H{"download_url": url})
}

// AttachPlot handles POST /api/v1/artifacts/:id/plot
func (h *ArtifactHandler) AttachPlot(c *gin.Context) {
	accountID, ok := extractAccountID(c)
	if !ok {
		return
	}
	id, ok := parseArtifactID(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, string(domain.KindInvalidRequest), "file field is required")
		return
	}
	defer func() { _ = file.Close() }()

	artifact, err := h.artifactService.AttachPlot(c.Request.Context(), service.PlotUploadInput{
		AccountID:  accountID,
		ArtifactID: id,
		Body:       file,
		Size:       header.Size,
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, artifact)
}

// Series handles GET /api/v1/artifacts/:id/series
func (h *ArtifactHandler) Series(c *gin.Context) {
	accountID, ok := extractAccountID(c)
	if !ok {
		return
	}
	id, ok := parseArtifactID(c)
	if !ok {
		return
	}

	series, err := h.artifactService.Series(c.Request.Context(), accountID, id)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, series)
}

// Export handles GET /api/v1/artifacts/:id/export?format=xlsx|csv&table=...
func (h *ArtifactHandler) Export(c *gin.Context) {
	accountID, ok := extractAccountID(c)
	if !ok {
		return
	}
	id, ok := parseArtifactID(c)
	if !ok {
		return
	}

	format := service.ExportFormat(c.DefaultQuery("format", string(service.ExportXLSX)))
	file, err := h.artifactService.Export(c.Request.Context(), accountID, id, format, c.Query("table"))
	if err != nil {
		HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
