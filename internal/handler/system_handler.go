package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/agep/exam-backend/internal/response"
)

const readinessTimeout = 3 * time.Second

// Check probes one dependency.
type Check func(ctx context.Context) error

// SystemHandler reports liveness and dependency readiness.
type SystemHandler struct {
	checks    map[string]Check
	startTime time.Time
	log       zerolog.Logger
}

// NewSystemHandler creates a new SystemHandler. checks are keyed by the
// dependency name reported back to the caller.
func NewSystemHandler(checks map[string]Check, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		checks:    checks,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

// Health godoc
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{
		"status":     "ok",
		"uptime":     time.Since(h.startTime).Round(time.Second).String(),
		"goroutines": runtime.NumGoroutine(),
	})
}

// Ready godoc
// GET /health/ready
// 503 when any dependency fails its probe.
func (h *SystemHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.log.Warn().Err(err).Str("dependency", name).Msg("Readiness probe failed")
			results[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "up"
	}

	response.Success(c, status, gin.H{"dependencies": results})
}
