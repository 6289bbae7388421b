package api_gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/genluna-medchain/internal/api_gateway/handler"
	"github.com/genluna-medchain/internal/api_gateway/middleware"
	"github.com/genluna-medchain/internal/config"
	"github.com/genluna-medchain/internal/domain/record"
	"github.com/genluna-medchain/internal/metrics"
)

const healthCheckTimeout = 2 * time.Second

// HealthChecker is a dependency probed by the health endpoint
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// setupRouter configures API routes and middleware for the application
func setupRouter(
	ctx context.Context,
	logger *slog.Logger,
	cfg *config.Config,
	r *gin.Engine,
	recordHandler *handler.RecordHandler,
	ledgerHandler *handler.LedgerHandler,
	checks map[string]HealthChecker,
) {
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	if len(cfg.CORS.AllowedOrigins) > 0 {
		r.Use(cors.New(corsConfig(cfg.CORS.AllowedOrigins)))
	}

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	if cfg.RateLimit.Enabled {
		v1.Use(middleware.NewRateLimiter(ctx, cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst).Middleware())
	}
	{
		v1.POST("/hash/:kind", ledgerHandler.Hash)

		// One resource group per ledgerable kind: /api/v1/stocks, /api/v1/removals
		for _, kind := range record.Kinds {
			records := v1.Group("/"+kind.Collection(), handler.WithKind(kind))
			{
				records.POST("", recordHandler.Create)
				records.POST("/:id/sync", recordHandler.Resync)
				records.GET("/:id/attempts", recordHandler.Attempts)

				records.GET("/:id/verify", ledgerHandler.Verify)
				records.GET("/:id/ledger", ledgerHandler.Read)
				records.DELETE("/:id/ledger", ledgerHandler.Remove)
				records.GET("/ledger/count", ledgerHandler.Count)
			}
		}
	}

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Health check endpoint for monitoring; 503 when any dependency is down
	r.GET("/health", func(c *gin.Context) {
		probeCtx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		status, code := "ok", http.StatusOK
		deps := make(gin.H, len(checks))
		for name, check := range checks {
			if err := check.Ping(probeCtx); err != nil {
				logger.Warn("Health check failed", "dependency", name, "error", err)
				deps[name] = err.Error()
				status, code = "degraded", http.StatusServiceUnavailable
				continue
			}
			deps[name] = "ok"
		}
		c.JSON(code, gin.H{"status": status, "dependencies": deps, "timestamp": time.Now().UTC()})
	})
}

func corsConfig(origins []string) cors.Config {
	wildcard := false
	for _, o := range origins {
		if o == "*" {
			wildcard = true
		}
	}
	return cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.CorrelationIDHeader},
		ExposeHeaders:    []string{middleware.CorrelationIDHeader},
		AllowCredentials: !wildcard,
		MaxAge:           12 * time.Hour,
	}
}
