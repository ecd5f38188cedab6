package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/huangang/feedbackbot/internal/models"
)

func TestSettingService_DefaultsAndOverride(t *testing.T) {
	db := newTestDB(t)
	svc := NewSettingService(db)
	ctx := context.Background()

	if got := svc.Value(ctx, models.SettingNoEventsMessage); got != models.DefaultSettingValue(models.SettingNoEventsMessage) {
		t.Errorf("Value() before seed = %q, expected the default", got)
	}

	adminID := uint(7)
	if err := svc.Set(ctx, models.SettingNoEventsMessage, "  Nothing today, check back tomorrow.  ", &adminID); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got := svc.Value(ctx, models.SettingNoEventsMessage); got != "Nothing today, check back tomorrow." {
		t.Errorf("Value() = %q", got)
	}

	var stored models.BotSetting
	db.Where(&models.BotSetting{Key: models.SettingNoEventsMessage}).First(&stored)
	if stored.UpdatedBy == nil || *stored.UpdatedBy != adminID {
		t.Errorf("UpdatedBy = %v", stored.UpdatedBy)
	}

	if err := svc.Set(ctx, models.SettingNoEventsMessage, "Second edit", nil); err != nil {
		t.Fatal(err)
	}
	var count int64
	db.Model(&models.BotSetting{}).Where(&models.BotSetting{Key: models.SettingNoEventsMessage}).Count(&count)
	if count != 1 {
		t.Errorf("rows for key = %d, expected 1", count)
	}
}

func TestSettingService_SetValidation(t *testing.T) {
	svc := NewSettingService(newTestDB(t))
	ctx := context.Background()

	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown key", "daily_report_time", "18:00"},
		{"blank value", models.SettingWelcomeMessage, "   "},
		{"too long", models.SettingWelcomeMessage, strings.Repeat("x", 4001)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.Set(ctx, tt.key, tt.value, nil); !errors.Is(err, ErrValidation) {
				t.Errorf("Set() error = %v, expected ErrValidation", err)
			}
		})
	}
}

func TestSettingService_All(t *testing.T) {
	db := newTestDB(t)
	if err := models.Seed(db); err != nil {
		t.Fatal(err)
	}
	svc := NewSettingService(db)

	views := svc.All(context.Background())
	if len(views) != len(models.DefaultSettings) {
		t.Fatalf("All() returned %d settings", len(views))
	}
	for _, v := range views {
		if v.Value == "" || v.Label == "" {
			t.Errorf("setting %q has empty value or label", v.Key)
		}
		if !IsEditable(v.Key) {
			t.Errorf("IsEditable(%q) = false", v.Key)
		}
	}
}
