package router

import (
	"github.com/gin-gonic/gin"

	"labtable/internal/handler"
	"labtable/internal/middleware"
	"labtable/internal/service"
)

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Auth       *handler.AuthHandler
	Account    *handler.AccountHandler
	Upload     *handler.UploadHandler
	Extraction *handler.ExtractionHandler
	Artifact   *handler.ArtifactHandler
	Admin      *handler.AdminHandler
	Health     *handler.HealthHandler
}

// Options carries the middleware settings of the router.
type Options struct {
	AllowedOrigins []string
	AdminSecret    string
	Limiter        *middleware.RateLimiter
}

// Setup configures the Gin engine with all routes and middleware.
func Setup(authSvc service.AuthService, h Handlers, opts Options) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(opts.AllowedOrigins))

	// Health checks
	r.GET("/healthz", h.Health.Liveness)
	r.GET("/readyz", h.Health.Readiness)

	limited := opts.Limiter.Middleware()

	v1 := r.Group("/api/v1")

	// Public auth routes
	auth := v1.Group("/auth")
	auth.POST("/login", middleware.SubjectFromBody("account_id"), limited, h.Auth.Login)

	// Protected routes - require valid JWT
	protected := v1.Group("")
	protected.Use(middleware.AuthMiddleware(authSvc))

	protected.POST("/auth/logout", h.Auth.Logout)
	protected.GET("/me", h.Account.Me)
	protected.GET("/me/usage", h.Account.Usage)
	protected.POST("/redeem", limited, h.Account.Redeem)

	protected.POST("/uploads", h.Upload.Upload)
	protected.POST("/extract", limited, h.Extraction.Extract)
	protected.POST("/experiments/:expId/normalize", h.Extraction.Preview)

	artifacts := protected.Group("/artifacts")
	artifacts.GET("", h.Artifact.History)
	artifacts.GET("/:id", h.Artifact.Get)
	artifacts.GET("/:id/image", h.Artifact.Image)
	artifacts.GET("/:id/plot", h.Artifact.Plot)
	artifacts.POST("/:id/plot", h.Artifact.AttachPlot)
	artifacts.GET("/:id/series", h.Artifact.Series)
	artifacts.GET("/:id/export", h.Artifact.Export)

	// Operator routes - require the admin secret
	admin := v1.Group("/admin")
	admin.Use(middleware.RequireAdminSecret(opts.AdminSecret))
	admin.POST("/accounts", h.Auth.Register)
	admin.POST("/codes", h.Admin.GenerateCodes)
	admin.POST("/retention/sweep", h.Admin.Sweep)

	return r
}
