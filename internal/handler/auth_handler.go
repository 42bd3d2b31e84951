package handler

import (
	"github.com/gin-gonic/gin"

	"labtable/internal/service"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register handles POST /api/v1/admin/accounts
func (h *AuthHandler) Register(c *gin.Context) {
	var input service.RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		validationError(c, err)
		return
	}

	account, err := h.authService.Register(c.Request.Context(), input)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, gin.H{"account_id": account.ID, "balance": account.Balance})
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var input service.LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		validationError(c, err)
		return
	}
	input.IP = c.ClientIP()

	result, err := h.authService.Login(c.Request.Context(), input)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, result)
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	accountID, ok := extractAccountID(c)
	if !ok {
		return
	}

	if err := h.authService.Logout(c.Request.Context(), accountID, c.ClientIP()); err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, gin.H{"message": "logged out"})
}
