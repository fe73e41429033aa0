package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/johnwmail/pastelite/handlers"
	"github.com/johnwmail/pastelite/internal/config"
	"github.com/johnwmail/pastelite/internal/metrics"
	"github.com/johnwmail/pastelite/internal/services"
)

// RouterOptions carries what NewRouter needs besides the configuration
type RouterOptions struct {
	Service  *services.PasteService
	Logger   *slog.Logger
	Version  string
	Gatherer prometheus.Gatherer // serves /metrics when EnableMetrics is set
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, opts RouterOptions) *gin.Engine {
	pasteHandler := handlers.NewPasteHandler(opts.Service, cfg, opts.Logger)
	systemHandler := handlers.NewSystemHandler(opts.Service, opts.Version)

	router := gin.New()
	router.Use(jsonRecovery(opts.Logger))
	router.Use(requestLogger(opts.Logger))
	router.Use(corsMiddleware(cfg.CORSOrigins))
	if cfg.EnableMetrics {
		router.Use(metrics.Middleware())
	}

	router.SetHTMLTemplate(handlers.Templates())

	router.GET("/", systemHandler.Root)
	router.GET("/health", systemHandler.Health)

	api := router.Group("/api")
	{
		api.GET("/healthz", systemHandler.Healthz)
		api.POST("/pastes", pasteHandler.Create)
		api.GET("/pastes/:id", pasteHandler.Get)
	}

	router.GET("/p/:id", pasteHandler.View)

	if cfg.EnableMetrics && opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	// Global 404 handler
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
	})

	return router
}
