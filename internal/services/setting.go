package services

import (
	"context"
	"errors"
	"strings"

	"github.com/huangang/feedbackbot/internal/models"
	"gorm.io/gorm"
)

// SettingService reads and writes admin-editable bot texts.
type SettingService struct {
	db *gorm.DB
}

func NewSettingService(db *gorm.DB) *SettingService {
	return &SettingService{db: db}
}

// IsEditable reports whether key is a known setting.
func IsEditable(key string) bool {
	for _, s := range models.DefaultSettings {
		if s.Key == key {
			return true
		}
	}
	return false
}

func (s *SettingService) Get(ctx context.Context, key string) (string, error) {
	var setting models.BotSetting
	if err := s.db.WithContext(ctx).Where(&models.BotSetting{Key: key}).First(&setting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return setting.Value, nil
}

// Value returns the stored value, falling back to the built-in default when unset or blank.
func (s *SettingService) Value(ctx context.Context, key string) string {
	value, err := s.Get(ctx, key)
	if err != nil || strings.TrimSpace(value) == "" {
		return models.DefaultSettingValue(key)
	}
	return value
}

// Set stores value under key, recording who changed it.
func (s *SettingService) Set(ctx context.Context, key, value string, updatedBy *uint) error {
	if !IsEditable(key) {
		return invalid("key", "unknown setting %q", key)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return invalid("value", "the text must not be empty")
	}
	if len([]rune(value)) > 4000 {
		return invalid("value", "the text is longer than 4000 characters")
	}

	var setting models.BotSetting
	err := s.db.WithContext(ctx).Where(&models.BotSetting{Key: key}).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		setting = models.BotSetting{Key: key, Value: value, UpdatedBy: updatedBy}
		return s.db.WithContext(ctx).Create(&setting).Error
	}
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&setting).Updates(map[string]interface{}{
		"value":      value,
		"updated_by": updatedBy,
	}).Error
}

// SettingView is one row of the settings overview.
type SettingView struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// All lists every known setting with its effective value.
func (s *SettingService) All(ctx context.Context) []SettingView {
	out := make([]SettingView, 0, len(models.DefaultSettings))
	for _, d := range models.DefaultSettings {
		out = append(out, SettingView{Key: d.Key, Label: d.Label, Value: s.Value(ctx, d.Key)})
	}
	return out
}
