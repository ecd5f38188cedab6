package models

import "time"

const (
	EventActive = "active"
	EventClosed = "closed"
)

// Event is a session that collects questions in its own work-group forum topic.
type Event struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Name        string     `gorm:"size:500;not null" json:"name"`
	Description string     `gorm:"type:text" json:"description,omitempty"`
	TopicID     int64      `gorm:"index" json:"topic_id"`
	Status      string     `gorm:"size:20;default:active;index;not null" json:"status"` // active, closed
	CreatedBy   *uint      `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	ClosedAt    *time.Time `json:"closed_at"`
}

func (Event) TableName() string { return "events" }

func (e *Event) IsActive() bool { return e.Status == EventActive }
