package handlers

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/feedbackbot/internal/models"
	"github.com/huangang/feedbackbot/internal/services"
	"gorm.io/gorm"
)

var startTime = time.Now()

// MetricsHandler renders Prometheus text-format gauges.
type MetricsHandler struct {
	db    *gorm.DB
	flows services.FlowStore
	queue services.NotificationQueue
}

func NewMetricsHandler(db *gorm.DB, flows services.FlowStore, queue services.NotificationQueue) *MetricsHandler {
	return &MetricsHandler{db: db, flows: flows, queue: queue}
}

func (h *MetricsHandler) Metrics(c *gin.Context) {
	var b strings.Builder

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	writeGauge(&b, "feedbackbot_uptime_seconds", "Time since server start in seconds", time.Since(startTime).Seconds())
	writeGauge(&b, "feedbackbot_goroutines", "Number of active goroutines", float64(runtime.NumGoroutine()))
	writeGauge(&b, "feedbackbot_memory_alloc_bytes", "Current heap allocation in bytes", float64(m.Alloc))

	if sqlDB, err := h.db.DB(); err == nil {
		stats := sqlDB.Stats()
		writeGauge(&b, "feedbackbot_db_open_connections", "Number of open DB connections", float64(stats.OpenConnections))
		writeGauge(&b, "feedbackbot_db_in_use_connections", "Number of in-use DB connections", float64(stats.InUse))
	}

	if h.flows != nil {
		writeGauge(&b, "feedbackbot_pending_flows", "Users in the middle of a dialogue", float64(h.flows.Len()))
	}
	queueAsync := 0.0
	if h.queue != nil && h.queue.IsAsync() {
		queueAsync = 1.0
	}
	writeGauge(&b, "feedbackbot_queue_async_enabled", "Whether the Redis notification queue is enabled (1=yes, 0=no)", queueAsync)

	db := h.db.WithContext(c.Request.Context())
	var activeEvents, closedEvents, pending, answered, ratings, users, staff int64
	db.Model(&models.Event{}).Where("status = ?", models.EventActive).Count(&activeEvents)
	db.Model(&models.Event{}).Where("status = ?", models.EventClosed).Count(&closedEvents)
	db.Model(&models.Feedback{}).Where("status <> ?", models.FeedbackAnswered).Count(&pending)
	db.Model(&models.Feedback{}).Where("status = ?", models.FeedbackAnswered).Count(&answered)
	db.Model(&models.Rating{}).Count(&ratings)
	db.Model(&models.User{}).Count(&users)
	db.Model(&models.User{}).Where("role IN ?", []string{models.RoleAdmin, models.RoleManager}).Count(&staff)

	writeGauge(&b, "feedbackbot_events_active", "Number of active events", float64(activeEvents))
	writeGauge(&b, "feedbackbot_events_closed", "Number of closed events", float64(closedEvents))
	writeGauge(&b, "feedbackbot_questions_unanswered", "Questions without a staff answer", float64(pending))
	writeGauge(&b, "feedbackbot_questions_answered", "Questions answered by staff", float64(answered))
	writeGauge(&b, "feedbackbot_ratings_total", "Number of event ratings", float64(ratings))
	writeGauge(&b, "feedbackbot_users_total", "Number of known users", float64(users))
	writeGauge(&b, "feedbackbot_staff_total", "Number of admins and managers", float64(staff))

	c.Data(200, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
}

func writeGauge(b *strings.Builder, name, help string, value float64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s gauge\n", name)
	fmt.Fprintf(b, "%s %g\n\n", name, value)
}
