package handler

import (
	"github.com/gin-gonic/gin"

	"labtable/internal/domain"
	"labtable/internal/service"
)

// ExtractionHandler handles extraction and normalize preview endpoints.
type ExtractionHandler struct {
	extractionService service.ExtractionService
}

// NewExtractionHandler creates a new ExtractionHandler.
func NewExtractionHandler(extractionService service.ExtractionService) *ExtractionHandler {
	return &ExtractionHandler{extractionService: extractionService}
}

// Extract handles POST /api/v1/extract
func (h *ExtractionHandler) Extract(c *gin.Context) {
	accountID, ok := extractAccountID(c)
	if !ok {
		return
	}

	var input service.ExtractInput
	if err := c.ShouldBindJSON(&input); err != nil {
		validationError(c, err)
		return
	}
	input.AccountID = accountID
	input.IP = c.ClientIP()

	result, err := h.extractionService.Extract(c.Request.Context(), input)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, result)
}

// Preview handles POST /api/v1/experiments/:expId/normalize
func (h *ExtractionHandler) Preview(c *gin.Context) {
	var payload domain.Payload
	if err := c.ShouldBindJSON(&payload); err != nil {
		validationError(c, err)
		return
	}

	out, err := h.extractionService.Preview(c.Param("expId"), payload)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, out)
}
