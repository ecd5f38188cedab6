package models

import "time"

const (
	SettingNoEventsMessage = "no_events_message"
	SettingWelcomeMessage  = "welcome_message"
)

// BotSetting is an admin-editable text stored in the database.
type BotSetting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"column:key;uniqueIndex;size:100;not null" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	Label     string    `gorm:"size:200" json:"label"`
	UpdatedBy *uint     `json:"updated_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (BotSetting) TableName() string { return "bot_settings" }

// DefaultSettings are seeded on first start and served whenever a key has no row.
var DefaultSettings = []BotSetting{
	{
		Key:   SettingNoEventsMessage,
		Label: "Message shown when there are no active events",
		Value: "📭 There are no active events right now.\n\nWe will let you know as soon as a new event starts!",
	},
	{
		Key:   SettingWelcomeMessage,
		Label: "Greeting shown on /start",
		Value: "👋 Welcome!\n\nThis bot collects your questions and feedback about our events.\n\n" +
			"❓ Ask a question about an active event\n⭐ Rate an event once it is over",
	},
}

// DefaultSettingValue returns the built-in value for key, or "".
func DefaultSettingValue(key string) string {
	for _, s := range DefaultSettings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}
