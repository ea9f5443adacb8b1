package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/use-agent/pagesift/api/handler"
	"github.com/use-agent/pagesift/api/middleware"
	"github.com/use-agent/pagesift/config"
	"github.com/use-agent/pagesift/jobs"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger → Metrics
//	API:     Auth (if enabled) → RateLimit (if enabled)
//
// Health and /metrics sit outside auth so probes and scrapers always work.
// ctx bounds the limiter's background eviction.
func NewRouter(ctx context.Context, eng handler.Engine, runner *handler.Runner, ledger *jobs.Ledger, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	r.Use(middleware.Metrics())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/health", handler.Health(eng, startTime))

	protected := api.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	if cfg.RateLimit.Enabled {
		protected.Use(middleware.RateLimit(ctx, cfg.RateLimit))
	}

	protected.POST("/scrape", handler.Scrape(eng))
	protected.POST("/scrape/async", handler.ScrapeAsync(runner))
	protected.POST("/scrape/batch", handler.ScrapeBatch(runner))

	protected.GET("/jobs", handler.ListJobs(ledger))
	protected.GET("/jobs/:jobId", handler.GetJob(ledger))

	return r
}
