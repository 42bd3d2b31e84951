package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"labtable/internal/service"
)

// Sweeper runs one retention pass.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// GenerateCodesRequest is the body of POST /api/v1/admin/codes.
type GenerateCodesRequest struct {
	Count  int   `json:"count" binding:"omitempty,min=1,max=10000"`
	Length int   `json:"length" binding:"omitempty,min=8,max=64"`
	Amount int64 `json:"amount" binding:"omitempty,min=1"`
}

// AdminHandler handles operator endpoints guarded by the admin secret.
type AdminHandler struct {
	codeService service.CodeService
	sweeper     Sweeper
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(codeService service.CodeService, sweeper Sweeper) *AdminHandler {
	return &AdminHandler{codeService: codeService, sweeper: sweeper}
}

// GenerateCodes handles POST /api/v1/admin/codes
func (h *AdminHandler) GenerateCodes(c *gin.Context) {
	req := GenerateCodesRequest{Count: 10, Length: 18, Amount: 10}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			validationError(c, err)
			return
		}
	}

	codes, err := h.codeService.Generate(c.Request.Context(), service.GenerateCodesInput{
		Count:  req.Count,
		Length: req.Length,
		Amount: req.Amount,
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, codes)
}

// Sweep handles POST /api/v1/admin/retention/sweep
func (h *AdminHandler) Sweep(c *gin.Context) {
	n, err := h.sweeper.Sweep(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, gin.H{"deleted": n})
}
