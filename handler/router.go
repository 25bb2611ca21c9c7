package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AnTengye/contractlens/config"
	"github.com/AnTengye/contractlens/middleware"
	"github.com/AnTengye/contractlens/pipeline"
	"github.com/AnTengye/contractlens/report"
)

// Deps is what the HTTP API serves.
type Deps struct {
	Config   *config.Config
	Manager  *pipeline.Manager
	Exporter *report.Exporter
	// Callback receives MinerU task notifications; nil disables the route.
	Callback CallbackReceiver
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(d Deps) *gin.Engine {
	cfg := d.Config
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Metrics())
	router.Use(middleware.CORS())
	router.Use(middleware.NoStore())
	router.Use(middleware.RateLimit(cfg.Server.RateLimitPerMin, cfg.Server.RateLimitBurst))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authHandler := NewAuthHandler(cfg)
	analysisHandler := NewAnalysisHandler(d.Manager, d.Exporter, cfg.Ingest.MaxBytes)

	// Public routes
	api := router.Group("/api")
	api.POST("/auth/login", authHandler.Login)
	if d.Callback != nil {
		callbackHandler := NewCallbackHandler(d.Callback, cfg.Mineru.UID)
		api.POST("/mineru/callback", callbackHandler.HandleCallback)
	}

	// Protected routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)
		protected.POST("/analyses", analysisHandler.Submit)
		protected.GET("/analyses", analysisHandler.List)
		protected.GET("/analyses/:id", analysisHandler.Get)
		protected.GET("/analyses/:id/progress", analysisHandler.Progress)
		protected.GET("/analyses/:id/result", analysisHandler.Result)
		protected.POST("/analyses/:id/cancel", analysisHandler.Cancel)
		protected.DELETE("/analyses/:id", analysisHandler.Delete)
		protected.GET("/analyses/:id/export", analysisHandler.Export)
	}

	return router
}
