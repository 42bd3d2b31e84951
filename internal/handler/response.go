package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"labtable/internal/domain"
	"labtable/internal/middleware"
)

// APIResponse is the standard envelope for all API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *PagMeta    `json:"meta,omitempty"`
}

// APIError holds error details in the response. Code is the stable error kind.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PagMeta holds pagination metadata.
type PagMeta struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondCreated sends a 201 success response.
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// RespondPaginated sends a 200 success response with pagination metadata.
func RespondPaginated(c *gin.Context, data interface{}, meta PagMeta) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data, Meta: &meta})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// MapDomainError translates an error kind to an HTTP status, code and message.
func MapDomainError(err error) (status int, code, msg string) {
	kind := domain.Kind(err)
	code = string(kind)
	switch kind {
	case domain.KindInsufficientBalance:
		return http.StatusPaymentRequired, code, "insufficient balance"
	case domain.KindAccountNotFound:
		return http.StatusNotFound, code, "account not found"
	case domain.KindCodeNotFound:
		return http.StatusNotFound, code, "redeem code not found"
	case domain.KindCodeAlreadyUsed:
		return http.StatusConflict, code, "redeem code already used"
	case domain.KindUnknownExperiment:
		return http.StatusBadRequest, code, "unknown experiment"
	case domain.KindForbidden:
		return http.StatusForbidden, code, "forbidden"
	case domain.KindUpstreamFailure:
		return http.StatusBadGateway, code, "recognition failed, the charge has been refunded"
	case domain.KindStorageFailure:
		return http.StatusServiceUnavailable, code, "storage temporarily unavailable"
	case domain.KindNotFound:
		return http.StatusNotFound, code, "resource not found"
	case domain.KindUnauthorized:
		return http.StatusUnauthorized, code, "unauthorized"
	case domain.KindInvalidCredentials:
		return http.StatusUnauthorized, code, "invalid account or password"
	case domain.KindAccountLocked:
		return http.StatusLocked, code, "too many failed logins, try again later"
	case domain.KindAccountExists:
		return http.StatusConflict, code, "account already exists"
	case domain.KindInvalidRequest:
		return http.StatusBadRequest, code, err.Error()
	case domain.KindExpired:
		return http.StatusGone, code, "artifact expired"
	case domain.KindConflict:
		return http.StatusConflict, code, "plot already attached"
	case domain.KindImageTooLarge:
		return http.StatusRequestEntityTooLarge, code, "image exceeds maximum allowed size"
	case domain.KindRateLimited:
		return http.StatusTooManyRequests, code, "too many requests"
	case domain.KindUnavailable:
		return http.StatusServiceUnavailable, code, "service is shutting down"
	default:
		return http.StatusInternalServerError, string(domain.KindInternal), "an internal error occurred"
	}
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, err error) {
	status, code, msg := MapDomainError(err)
	if status >= 500 {
		zap.L().Error("request failed",
			zap.String("request_id", c.GetString("request_id")),
			zap.String("path", c.FullPath()),
			zap.String("kind", code),
			zap.Error(err))
	}
	if domain.Kind(err) == domain.KindUpstreamFailure && isRefundFailure(err) {
		msg = "recognition failed and the refund is pending"
	}
	RespondError(c, status, code, msg)
}

// extractAccountID reads the authenticated account. Returns false if the auth
// context is missing (error response already written).
func extractAccountID(c *gin.Context) (string, bool) {
	id, err := middleware.GetAccountID(c)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, string(domain.KindUnauthorized), "missing account context")
		return "", false
	}
	return id, true
}

func parseArtifactID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, string(domain.KindInvalidRequest), "invalid artifact ID")
		return uuid.Nil, false
	}
	return id, true
}

// parsePagination extracts offset and limit from query params with defaults.
func parsePagination(c *gin.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}

func validationError(c *gin.Context, err error) {
	RespondError(c, http.StatusBadRequest, string(domain.KindInvalidRequest), err.Error())
}

func isRefundFailure(err error) bool {
	var rf *domain.RefundFailedError
	return errors.As(err, &rf)
}
