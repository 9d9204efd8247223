package http

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/fhsinchy/geb-deals/config"
	"github.com/fhsinchy/geb-deals/internal/infrastructure/cache"
	"github.com/fhsinchy/geb-deals/internal/infrastructure/metrics"
)

// RouterOptions carries the optional collaborators of the router
type RouterOptions struct {
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
	Limiters *cache.MemoryStore[*rate.Limiter]
}

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, opts RouterOptions) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Only listed proxies may supply the client address through
	// X-Forwarded-For; with none, the peer address is used.
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		opts.Logger.Warn().Err(err).Msg("Ignoring invalid trusted proxies")
		_ = router.SetTrustedProxies(nil)
	}

	// Global middleware
	router.Use(RequestIDMiddleware(opts.Logger))
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	if cfg.Metrics.Enabled {
		router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(opts.Limiters, cfg.RateLimit.PerIP, cfg.RateLimit.Burst))
	{
		books := v1.Group("/books")
		{
			books.GET("/search", handler.SearchBooks)
		}
	}

	return router
}
