package handler

import (
	"github.com/gin-gonic/gin"

	"labtable/internal/service"
)

// AccountHandler handles balance, usage and redeem endpoints.
type AccountHandler struct {
	accountService service.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountService service.AccountService) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

// Me handles GET /api/v1/me
func (h *AccountHandler) Me(c *gin.Context) {
	accountID, ok := extractAccountID(c)
	if !ok {
		return
	}

	me, err := h.accountService.Me(c.Request.Context(), accountID)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, me)
}

// Usage handles GET /api/v1/me/usage
func (h *AccountHandler) Usage(c *gin.Context) {
	accountID, ok := extractAccountID(c)
	if !ok {
		return
	}
	offset, limit := parsePagination(c)

	entries, total, err := h.accountService.Usage(c.Request.Context(), accountID, offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondPaginated(c, entries, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// Redeem handles POST /api/v1/redeem
func (h *AccountHandler) Redeem(c *gin.Context) {
	accountID, ok := extractAccountID(c)
	if !ok {
		return
	}

	var input service.RedeemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		validationError(c, err)
		return
	}

	result, err := h.accountService.Redeem(c.Request.Context(), accountID, input.Code, c.ClientIP())
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, result)
}
