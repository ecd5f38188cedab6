package services

import (
	"encoding/json"
	"time"

	"github.com/huangang/feedbackbot/internal/models"
	"github.com/huangang/feedbackbot/pkg/logger"
	"gorm.io/gorm"
)

var globalDB *gorm.DB

// InitSystemLogger enables the audit trail. Before it is called the Log* helpers are no-ops.
func InitSystemLogger(db *gorm.DB) {
	globalDB = db
}

// Audit modules.
const (
	ModuleEvent   = "event"
	ModuleUser    = "user"
	ModuleSetting = "setting"
	ModuleReport  = "report"
)

func LogInfo(module, action, message string, userID *uint, extra interface{}) {
	writeLog("info", module, action, message, userID, extra)
}

func LogWarning(module, action, message string, userID *uint, extra interface{}) {
	writeLog("warning", module, action, message, userID, extra)
}

func LogError(module, action, message string, userID *uint, extra interface{}) {
	writeLog("error", module, action, message, userID, extra)
}

// writeLog must not be called inside a transaction: it uses its own connection.
func writeLog(level, module, action, message string, userID *uint, extra interface{}) {
	if globalDB == nil {
		return
	}

	var extraStr string
	if extra != nil {
		if b, err := json.Marshal(extra); err == nil {
			extraStr = string(b)
		}
	}

	entry := &models.SystemLog{
		Level:     level,
		Module:    module,
		Action:    action,
		Message:   message,
		UserID:    userID,
		Extra:     extraStr,
		CreatedAt: time.Now(),
	}
	if err := globalDB.Create(entry).Error; err != nil {
		logger.Warn().Err(err).Str("module", module).Str("action", action).Msg("[SystemLog] Failed to write audit entry")
	}
}

type SystemLogService struct {
	db *gorm.DB
}

func NewSystemLogService(db *gorm.DB) *SystemLogService {
	return &SystemLogService{db: db}
}

// Recent returns the newest audit entries, optionally filtered by module.
func (s *SystemLogService) Recent(module string, limit int) ([]models.SystemLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := s.db.Model(&models.SystemLog{})
	if module != "" {
		query = query.Where("module = ?", module)
	}
	var logs []models.SystemLog
	if err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// CleanupOldLogs deletes logs older than the specified number of days
// Returns the number of deleted records
func (s *SystemLogService) CleanupOldLogs(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	cutoffTime := time.Now().AddDate(0, 0, -retentionDays)
	result := s.db.Where("created_at < ?", cutoffTime).Delete(&models.SystemLog{})
	if result.Error != nil {
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

func runLogCleanup(service *SystemLogService, retentionDays int) {
	if retentionDays <= 0 {
		logger.Debug().Msg("[SystemLog] Log cleanup disabled (retention_days <= 0)")
		return
	}

	deleted, err := service.CleanupOldLogs(retentionDays)
	if err != nil {
		logger.Errorf("[SystemLog] Failed to cleanup old logs: %v", err)
		return
	}

	if deleted > 0 {
		logger.Infof("[SystemLog] Cleaned up %d logs older than %d days", deleted, retentionDays)
	}
}
