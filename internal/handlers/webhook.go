package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/huangang/feedbackbot/internal/telegram"
	"github.com/huangang/feedbackbot/pkg/logger"
)

// UpdateSink accepts an update for asynchronous handling. It reports false when the
// update could not be queued.
type UpdateSink interface {
	Submit(u telegram.Update) bool
}

// WebhookHandler receives updates pushed by Telegram. The secret header is checked
// by middleware before the request gets here.
type WebhookHandler struct {
	sink UpdateSink
}

func NewWebhookHandler(sink UpdateSink) *WebhookHandler {
	return &WebhookHandler{sink: sink}
}

func (h *WebhookHandler) Handle(c *gin.Context) {
	var u telegram.Update
	if err := c.ShouldBindJSON(&u); err != nil {
		// a malformed update will never parse; acknowledge so Telegram stops retrying it
		logger.Warn().Err(err).Str("ip", c.ClientIP()).Msg("[Webhook] Undecodable update")
		c.Status(http.StatusOK)
		return
	}

	if !h.sink.Submit(u) {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	c.Status(http.StatusOK)
}
