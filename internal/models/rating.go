package models

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

// Rating is a single attendee's score for a closed event.
type Rating struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex:idx_ratings_user_event;not null" json:"user_id"`
	EventID   uint      `gorm:"uniqueIndex:idx_ratings_user_event;index;not null" json:"event_id"`
	Value     int       `gorm:"column:rating;not null;check:rating >= 1 AND rating <= 5" json:"rating"`
	Comment   *string   `gorm:"type:text" json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (Rating) TableName() string { return "ratings" }
