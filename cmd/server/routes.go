package main

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/feedbackbot/internal/config"
	"github.com/huangang/feedbackbot/internal/handlers"
	"github.com/huangang/feedbackbot/internal/middleware"
	"github.com/huangang/feedbackbot/internal/models"
	"github.com/huangang/feedbackbot/pkg/logger"
)

const webhookPath = "/telegram/webhook"

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, cfg *config.Config, svc *appServices) {
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false

	db := models.GetDB()
	r.GET("/health", handlers.NewHealthHandler(db, svc.queue, cfg.Telegram.Mode).CheckHealth)
	r.GET("/metrics", handlers.NewMetricsHandler(db, svc.flows, svc.queue).Metrics)

	if cfg.Telegram.Mode == config.ModeWebhook {
		webhook := handlers.NewWebhookHandler(svc.runner)
		r.POST(webhookPath, middleware.TelegramSecret(cfg.Telegram.WebhookSecret), webhook.Handle)
	}

	if cfg.JWT.Secret == "" {
		return
	}

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	svc.limiter = limiter
	api := r.Group("/api",
		middleware.CORS(cfg.Server.CORSOrigins),
		limiter.Middleware(),
		middleware.AuthRequired(),
		middleware.AdminRequired(),
	)
	{
		stats := handlers.NewStatsHandler(svc.analytics, svc.events, svc.reports)
		api.GET("/stats", stats.General)
		api.GET("/events", stats.ListEvents)
		api.GET("/events/:id/stats", stats.EventStats)
		api.GET("/events/:id/report", stats.Report)

		api.GET("/logs", handlers.NewSystemLogHandler(db).List)
	}
}
