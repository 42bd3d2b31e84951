package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"labtable/internal/domain"
	"labtable/internal/service"
)

const (
	ContextKeyAccountID = "account_id"
	ContextKeyClaims    = "claims"
)

// AuthMiddleware returns Gin middleware that validates JWT tokens and injects
// the account id.
func AuthMiddleware(authService service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid authorization header")
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := authService.ValidateToken(token)
		if err != nil {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
			return
		}

		c.Set(ContextKeyAccountID, claims.AccountID)
		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// RequireAdminSecret guards operator endpoints with the shared X-Admin-Secret
// header. An empty configured secret disables the endpoints entirely.
func RequireAdminSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			abort(c, http.StatusNotFound, "NOT_FOUND", "admin endpoints are disabled")
			return
		}
		got := c.GetHeader("X-Admin-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			abort(c, http.StatusForbidden, "FORBIDDEN", "invalid admin secret")
			return
		}
		c.Next()
	}
}

// GetAccountID extracts the account ID from the Gin context.
func GetAccountID(c *gin.Context) (string, error) {
	val, exists := c.Get(ContextKeyAccountID)
	if !exists {
		return "", domain.ErrUnauthorized
	}
	id, ok := val.(string)
	if !ok || id == "" {
		return "", domain.ErrUnauthorized
	}
	return id, nil
}

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   gin.H{"code": code, "message": msg},
	})
}
