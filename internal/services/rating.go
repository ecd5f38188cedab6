package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/huangang/feedbackbot/internal/models"
	"github.com/huangang/feedbackbot/pkg/logger"
	"gorm.io/gorm"
)

const maxCommentLength = 2000

// RatingService records one rating per user per closed event.
type RatingService struct {
	db *gorm.DB
}

func NewRatingService(db *gorm.DB) *RatingService {
	return &RatingService{db: db}
}

// Rate stores value for the event. The event must be closed and the user must not have
// rated it before; the unique index is the final arbiter under concurrent presses.
func (s *RatingService) Rate(ctx context.Context, user *models.User, eventID uint, value int) (*models.Rating, error) {
	if value < models.MinRating || value > models.MaxRating {
		return nil, invalid("rating", "must be between %d and %d", models.MinRating, models.MaxRating)
	}

	var rating models.Rating
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event models.Event
		if err := tx.First(&event, eventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if event.IsActive() {
			return ErrEventNotClosed
		}

		var existing int64
		if err := tx.Model(&models.Rating{}).Where("user_id = ? AND event_id = ?", user.ID, eventID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadyRated
		}

		rating = models.Rating{UserID: user.ID, EventID: eventID, Value: value}
		if err := tx.Create(&rating).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyRated
			}
			return fmt.Errorf("create rating: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info().Uint("rating_id", rating.ID).Uint("event_id", eventID).Int("rating", value).Msg("[Rating] Saved")
	return &rating, nil
}

// AddComment attaches a comment to the caller's own rating.
func (s *RatingService) AddComment(ctx context.Context, user *models.User, ratingID uint, comment string) error {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return invalid("comment", "the comment must not be empty")
	}
	if r := []rune(comment); len(r) > maxCommentLength {
		comment = string(r[:maxCommentLength])
	}

	res := s.db.WithContext(ctx).Model(&models.Rating{}).
		Where("id = ? AND user_id = ?", ratingID, user.ID).
		Update("comment", comment)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UnratedClosedEvents lists closed events the user has not rated yet, newest first.
func (s *RatingService) UnratedClosedEvents(ctx context.Context, user *models.User) ([]models.Event, error) {
	var events []models.Event
	rated := s.db.Model(&models.Rating{}).Select("event_id").Where("user_id = ?", user.ID)
	err := s.db.WithContext(ctx).
		Where("status = ?", models.EventClosed).
		Where("id NOT IN (?)", rated).
		Order("closed_at DESC").Order("id DESC").
		Find(&events).Error
	return events, err
}
