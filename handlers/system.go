package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/johnwmail/pastelite/internal/services"
)

// SystemHandler handles system endpoints
type SystemHandler struct {
	service *services.PasteService
	version string
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(service *services.PasteService, version string) *SystemHandler {
	return &SystemHandler{
		service: service,
		version: version,
	}
}

// Root describes the API via GET /
func (h *SystemHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pastelite API",
		"version": h.version,
		"endpoints": gin.H{
			"health":      "GET /api/healthz",
			"createPaste": "POST /api/pastes",
			"getPaste":    "GET /api/pastes/:id",
			"viewPaste":   "GET /p/:id",
		},
	})
}

// Health handles liveness checks via GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "pastelite",
	})
}

// Healthz reports storage connectivity via GET /api/healthz
func (h *SystemHandler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	ok := h.service.Ping(ctx) == nil
	status, database := http.StatusOK, "connected"
	if !ok {
		status, database = http.StatusServiceUnavailable, "disconnected"
	}
	c.JSON(status, gin.H{
		"ok":        ok,
		"timestamp": isoTime(time.Now()),
		"database":  database,
	})
}
