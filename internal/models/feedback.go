package models

import "time"

const (
	FeedbackNew        = "new"
	FeedbackInProgress = "in_progress"
	FeedbackAnswered   = "answered"
	FeedbackClosed     = "closed"
)

// Feedback is one question asked by an attendee. TopicMessageID is the id of the
// copy posted in the event topic and is how staff replies are matched back.
type Feedback struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         uint       `gorm:"index;not null" json:"user_id"`
	EventID        uint       `gorm:"index;not null" json:"event_id"`
	MessageText    string     `gorm:"type:text;not null" json:"message_text"`
	PhotoFileID    string     `gorm:"size:255" json:"photo_file_id,omitempty"`
	Status         string     `gorm:"size:20;default:new;index;not null" json:"status"`
	TopicMessageID *int64     `gorm:"index" json:"topic_message_id"`
	CreatedAt      time.Time  `json:"created_at"`
	AnsweredAt     *time.Time `json:"answered_at"`
	AnsweredBy     *uint      `json:"answered_by"`
}

func (Feedback) TableName() string { return "feedbacks" }
