package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/huangang/feedbackbot/internal/models"
	"github.com/huangang/feedbackbot/pkg/logger"
	"gorm.io/gorm"
)

// Question bodies leave room for the header added by questionText within Telegram's
// 4096 character message and 1024 character caption limits.
const (
	MaxQuestionLength      = 3500
	MaxPhotoQuestionLength = 700
)

// Question is an attendee's submission for one event.
type Question struct {
	EventID     uint
	Asker       *models.User
	Text        string
	PhotoFileID string
}

// FeedbackService routes questions into event topics and staff replies back to askers.
type FeedbackService struct {
	db          *gorm.DB
	messenger   Messenger
	workGroupID int64
}

func NewFeedbackService(db *gorm.DB, messenger Messenger, workGroupID int64) *FeedbackService {
	return &FeedbackService{db: db, messenger: messenger, workGroupID: workGroupID}
}

// Submit stores the question and posts its copy into the event topic. The row is only
// committed if the copy was delivered; on failure nothing is stored.
func (s *FeedbackService) Submit(ctx context.Context, q Question) (*models.Feedback, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		if q.PhotoFileID == "" {
			return nil, invalid("text", "the question must not be empty")
		}
		text = photoQuestionPlaceholder
	}
	limit := MaxQuestionLength
	if q.PhotoFileID != "" {
		limit = MaxPhotoQuestionLength
	}
	if n := utf8.RuneCountInString(text); n > limit {
		return nil, invalid("text", "the question is too long (%d characters, at most %d)", n, limit)
	}

	var feedback models.Feedback
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event models.Event
		if err := tx.First(&event, q.EventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if !event.IsActive() {
			return ErrEventClosed
		}

		feedback = models.Feedback{
			UserID:      q.Asker.ID,
			EventID:     event.ID,
			MessageText: text,
			PhotoFileID: q.PhotoFileID,
			Status:      models.FeedbackNew,
		}
		if err := tx.Create(&feedback).Error; err != nil {
			return fmt.Errorf("create feedback: %w", err)
		}

		body := questionText(&feedback, q.Asker, &event)
		var (
			msgID int64
			err   error
		)
		if q.PhotoFileID != "" {
			msgID, err = s.messenger.SendPhoto(ctx, s.workGroupID, event.TopicID, q.PhotoFileID, body)
		} else {
			msgID, err = s.messenger.SendText(ctx, s.workGroupID, event.TopicID, body, nil)
		}
		if err != nil {
			return deliveryError("route question", err)
		}

		feedback.TopicMessageID = &msgID
		feedback.Status = models.FeedbackInProgress
		return tx.Model(&feedback).Updates(map[string]interface{}{
			"topic_message_id": msgID,
			"status":           models.FeedbackInProgress,
		}).Error
	})
	if err != nil {
		if errors.Is(err, ErrDeliveryFailed) {
			logger.Error().Err(err).Uint("event_id", q.EventID).Int64("telegram_id", q.Asker.TelegramID).Msg("[Feedback] Question not routed")
		}
		return nil, err
	}

	logger.Info().Uint("feedback_id", feedback.ID).Uint("event_id", feedback.EventID).Msg("[Feedback] Question routed")
	return &feedback, nil
}

// ReplyResult identifies the question a staff reply answered.
type ReplyResult struct {
	Feedback models.Feedback
	Asker    models.User
	Event    models.Event
}

// RouteReply matches a reply in the work group to the question copy it answers, marks the
// question answered and forwards the reply to the asker. Replies to anything else yield
// ErrNotTracked. A delivery failure is returned as ErrDeliveryFailed; the answer stamp stays.
func (s *FeedbackService) RouteReply(ctx context.Context, topicMessageID int64, text string, manager *models.User) (*ReplyResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalid("text", "the answer must not be empty")
	}

	var result ReplyResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("topic_message_id = ?", topicMessageID).First(&result.Feedback).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotTracked
			}
			return err
		}
		if err := tx.First(&result.Asker, result.Feedback.UserID).Error; err != nil {
			return fmt.Errorf("load asker: %w", err)
		}
		if err := tx.First(&result.Event, result.Feedback.EventID).Error; err != nil {
			return fmt.Errorf("load event: %w", err)
		}

		now := time.Now()
		result.Feedback.Status = models.FeedbackAnswered
		result.Feedback.AnsweredAt = &now
		result.Feedback.AnsweredBy = &manager.ID
		return tx.Model(&result.Feedback).Updates(map[string]interface{}{
			"status":      models.FeedbackAnswered,
			"answered_at": now,
			"answered_by": manager.ID,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.messenger.SendText(ctx, result.Asker.TelegramID, 0, answerText(manager, &result.Event, text), nil); err != nil {
		logger.Warn().Err(err).Uint("feedback_id", result.Feedback.ID).Int64("telegram_id", result.Asker.TelegramID).Msg("[Feedback] Answer not delivered")
		return &result, deliveryError("deliver answer", err)
	}

	logger.Info().Uint("feedback_id", result.Feedback.ID).Uint("answered_by", manager.ID).Msg("[Feedback] Answer delivered")
	return &result, nil
}

// Tracked reports whether topicMessageID is the copy of a stored question.
func (s *FeedbackService) Tracked(ctx context.Context, topicMessageID int64) bool {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Feedback{}).Where("topic_message_id = ?", topicMessageID).Count(&n).Error; err != nil {
		logger.Warn().Err(err).Int64("message_id", topicMessageID).Msg("[Feedback] Tracked lookup failed")
		return false
	}
	return n > 0
}

// ListByEvent returns an event's questions, oldest first.
func (s *FeedbackService) ListByEvent(ctx context.Context, eventID uint) ([]models.Feedback, error) {
	var items []models.Feedback
	err := s.db.WithContext(ctx).Where("event_id = ?", eventID).Order("created_at ASC").Order("id ASC").Find(&items).Error
	return items, err
}
