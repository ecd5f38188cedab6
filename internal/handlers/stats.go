package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/feedbackbot/internal/services"
	"github.com/huangang/feedbackbot/pkg/logger"
	"github.com/huangang/feedbackbot/pkg/response"
)

// StatsHandler serves the read-only analytics API.
type StatsHandler struct {
	analytics *services.AnalyticsService
	events    *services.EventService
	reports   *services.ReportService
}

func NewStatsHandler(analytics *services.AnalyticsService, events *services.EventService, reports *services.ReportService) *StatsHandler {
	return &StatsHandler{analytics: analytics, events: events, reports: reports}
}

func (h *StatsHandler) General(c *gin.Context) {
	stats, err := h.analytics.GeneralStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}

func (h *StatsHandler) ListEvents(c *gin.Context) {
	summaries, err := h.events.ListSummaries(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, summaries)
}

func (h *StatsHandler) EventStats(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	stats, err := h.analytics.EventStats(c.Request.Context(), id)
	if errors.Is(err, services.ErrNotFound) {
		response.NotFound(c, "event not found")
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}

// Report streams the PDF for one event, or for all events when :id is "all".
func (h *StatsHandler) Report(c *gin.Context) {
	var id uint
	if c.Param("id") != "all" {
		var ok bool
		if id, ok = eventID(c); !ok {
			return
		}
		if _, err := h.events.Get(c.Request.Context(), id); err != nil {
			if errors.Is(err, services.ErrNotFound) {
				response.NotFound(c, "event not found")
				return
			}
			response.Error(c, err)
			return
		}
	}

	var buf bytes.Buffer
	if err := h.reports.Write(c.Request.Context(), &buf, id); err != nil {
		logger.Error().Err(err).Uint("event_id", id).Msg("[Stats] Report failed")
		response.Error(c, err)
		return
	}
	name := services.ReportFileName(id, time.Now())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

func eventID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid event id")
		return 0, false
	}
	return uint(id), true
}
