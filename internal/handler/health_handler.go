package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const probeTimeout = 2 * time.Second

// HealthCheck probes one dependency the API needs before it takes traffic.
type HealthCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

// PingCheck wraps anything with PingContext, such as *sqlx.DB.
func PingCheck(name string, p interface{ PingContext(context.Context) error }) HealthCheck {
	return HealthCheck{Name: name, Probe: p.PingContext}
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	checks []HealthCheck
}

// NewHealthHandler creates a HealthHandler running checks in order on readiness.
func NewHealthHandler(checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Liveness handles GET /healthz
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness handles GET /readyz. Every check gets its own short deadline and
// the body names the ones that failed.
func (h *HealthHandler) Readiness(c *gin.Context) {
	results := make(gin.H, len(h.checks))
	ready := true
	for _, chk := range h.checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
		err := chk.Probe(ctx)
		cancel()
		if err != nil {
			ready = false
			results[chk.Name] = "unavailable"
			zap.L().Warn("readiness check failed", zap.String("check", chk.Name), zap.Error(err))
			continue
		}
		results[chk.Name] = "ok"
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "checks": results})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": results})
}
