package router_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"labtable/internal/handler"
	"labtable/internal/middleware"
	"labtable/internal/router"
	"labtable/internal/service"
	"labtable/mocks"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(authSvc *mocks.MockAuthService, accountSvc *mocks.MockAccountService, limiter *middleware.RateLimiter) *gin.Engine {
	return router.Setup(authSvc, router.Handlers{
		Auth:       handler.NewAuthHandler(authSvc),
		Account:    handler.NewAccountHandler(accountSvc),
		Upload:     handler.NewUploadHandler(new(mocks.MockUploadService)),
		Extraction: handler.NewExtractionHandler(new(mocks.MockExtractionService)),
		Artifact:   handler.NewArtifactHandler(new(mocks.MockArtifactService)),
		Admin:      handler.NewAdminHandler(new(mocks.MockCodeService), nil),
		Health:     handler.NewHealthHandler(),
	}, router.Options{
		AdminSecret: "s3cret",
		Limiter:     limiter,
	})
}

func TestRouter_LoginLimitedPerAccount(t *testing.T) {
	authSvc := new(mocks.MockAuthService)
	authSvc.On("Login", mock.Anything, mock.AnythingOfType("service.LoginInput")).
		Return(&service.LoginResult{AccessToken: "tok"}, nil)
	r := newTestRouter(authSvc, new(mocks.MockAccountService), middleware.NewRateLimiter(5, 1))

	login := func(account string) int {
		w := httptest.NewRecorder()
		body := fmt.Sprintf(`{"account_id":%q,"password":"pw"}`, account)
		req, _ := http.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		return w.Code
	}

	for i := 1; i <= 6; i++ {
		assert.Equal(t, http.StatusOK, login(fmt.Sprintf("s%d", i)))
	}
	assert.Equal(t, http.StatusTooManyRequests, login("s1"))
	authSvc.AssertNumberOfCalls(t, "Login", 6)
}

func TestRouter_ProtectedRoutes(t *testing.T) {
	authSvc := new(mocks.MockAuthService)
	accountSvc := new(mocks.MockAccountService)
	authSvc.On("ValidateToken", "good").Return(&service.Claims{AccountID: "alice"}, nil)
	accountSvc.On("Me", mock.Anything, "alice").Return(&service.MeResult{AccountID: "alice", Balance: 2}, nil)

	r := newTestRouter(authSvc, accountSvc, middleware.NewRateLimiter(5, 5))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/me", http.NoBody)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/api/v1/me", http.NoBody)
	req.Header.Set("Authorization", "Bearer good")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodPost, "/api/v1/admin/codes", http.NoBody)
	req.Header.Set("Authorization", "Bearer good")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
