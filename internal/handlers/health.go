package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/feedbackbot/internal/services"
	"gorm.io/gorm"
)

// HealthHandler reports whether the bot can reach its database.
type HealthHandler struct {
	db    *gorm.DB
	queue services.NotificationQueue
	mode  string
}

func NewHealthHandler(db *gorm.DB, queue services.NotificationQueue, mode string) *HealthHandler {
	return &HealthHandler{db: db, queue: queue, mode: mode}
}

func (h *HealthHandler) CheckHealth(c *gin.Context) {
	status, code := "healthy", http.StatusOK

	dbStatus := "ok"
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if sqlDB, err := h.db.DB(); err != nil {
		dbStatus = "error: " + err.Error()
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "error: " + err.Error()
	}
	if dbStatus != "ok" {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	queueMode := "sync"
	if h.queue != nil && h.queue.IsAsync() {
		queueMode = "async (Redis)"
	}

	c.JSON(code, gin.H{
		"status":  status,
		"service": "feedbackbot",
		"components": gin.H{
			"database":      dbStatus,
			"queue_mode":    queueMode,
			"telegram_mode": h.mode,
		},
	})
}
