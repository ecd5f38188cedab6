package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/huangang/feedbackbot/internal/services"
	"github.com/huangang/feedbackbot/pkg/response"
	"gorm.io/gorm"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 100
)

// SystemLogHandler exposes the audit trail of staff actions.
type SystemLogHandler struct {
	systemLogService *services.SystemLogService
}

func NewSystemLogHandler(db *gorm.DB) *SystemLogHandler {
	return &SystemLogHandler{systemLogService: services.NewSystemLogService(db)}
}

// List returns the newest entries, optionally filtered by ?module=.
func (h *SystemLogHandler) List(c *gin.Context) {
	limit := defaultLogLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			response.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = min(n, maxLogLimit)
	}

	logs, err := h.systemLogService.Recent(c.Query("module"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, logs)
}
