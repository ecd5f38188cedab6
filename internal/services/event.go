package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/huangang/feedbackbot/internal/menu"
	"github.com/huangang/feedbackbot/internal/models"
	"github.com/huangang/feedbackbot/pkg/logger"
	"gorm.io/gorm"
)

// MaxEventNameLength is counted in characters, not bytes.
const MaxEventNameLength = 128

// ValidateEventName trims name and checks it is non-empty and short enough.
func ValidateEventName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", invalid("name", "the event name must not be empty")
	}
	if n := utf8.RuneCountInString(name); n > MaxEventNameLength {
		return "", invalid("name", "the event name is too long (%d characters, at most %d)", n, MaxEventNameLength)
	}
	return name, nil
}

// EventService owns the event lifecycle: creation with its topic, closing and the rating fan-out.
type EventService struct {
	db          *gorm.DB
	messenger   Messenger
	dispatcher  *Dispatcher
	workGroupID int64
}

func NewEventService(db *gorm.DB, messenger Messenger, dispatcher *Dispatcher, workGroupID int64) *EventService {
	return &EventService{db: db, messenger: messenger, dispatcher: dispatcher, workGroupID: workGroupID}
}

// Create allocates the forum topic first; if that fails no event row is written.
func (s *EventService) Create(ctx context.Context, name, description string, creator *models.User) (*models.Event, error) {
	name, err := ValidateEventName(name)
	if err != nil {
		return nil, err
	}

	topicID, err := s.messenger.CreateThread(ctx, s.workGroupID, name)
	if err != nil {
		return nil, deliveryError("create topic", err)
	}

	event := &models.Event{
		Name:        name,
		Description: strings.TrimSpace(description),
		TopicID:     topicID,
		Status:      models.EventActive,
	}
	if creator != nil {
		event.CreatedBy = &creator.ID
	}
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		logger.Error().Err(err).Int64("topic_id", topicID).Msg("[Event] Topic created but event row failed")
		return nil, fmt.Errorf("create event: %w", err)
	}

	if _, err := s.messenger.SendText(ctx, s.workGroupID, topicID, announcementText(event), nil); err != nil {
		logger.Warn().Err(err).Uint("event_id", event.ID).Msg("[Event] Failed to post announcement")
	}

	logger.Info().Uint("event_id", event.ID).Int64("topic_id", topicID).Str("name", event.Name).Msg("[Event] Created")
	LogInfo(ModuleEvent, "create", fmt.Sprintf("Event %q created", event.Name), event.CreatedBy, map[string]interface{}{
		"event_id": event.ID,
		"topic_id": topicID,
	})
	return event, nil
}

func (s *EventService) Get(ctx context.Context, id uint) (*models.Event, error) {
	var event models.Event
	if err := s.db.WithContext(ctx).First(&event, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &event, nil
}

func (s *EventService) ListActive(ctx context.Context) ([]models.Event, error) {
	return s.listByStatus(ctx, models.EventActive)
}

func (s *EventService) ListClosed(ctx context.Context) ([]models.Event, error) {
	return s.listByStatus(ctx, models.EventClosed)
}

func (s *EventService) listByStatus(ctx context.Context, status string) ([]models.Event, error) {
	var events []models.Event
	err := s.db.WithContext(ctx).Where("status = ?", status).Order("created_at DESC").Order("id DESC").Find(&events).Error
	return events, err
}

// EventSummary is an event with its feedback and rating totals.
type EventSummary struct {
	models.Event
	Questions int64   `json:"questions"`
	Answered  int64   `json:"answered"`
	Ratings   int64   `json:"ratings"`
	AvgRating float64 `json:"avg_rating"`
}

// ListSummaries returns every event, newest first, with its totals.
func (s *EventService) ListSummaries(ctx context.Context) ([]EventSummary, error) {
	db := s.db.WithContext(ctx)

	var events []models.Event
	if err := db.Order("created_at DESC").Order("id DESC").Find(&events).Error; err != nil {
		return nil, err
	}

	type feedbackRow struct {
		EventID  uint
		Total    int64
		Answered int64
	}
	var feedbackRows []feedbackRow
	if err := db.Model(&models.Feedback{}).
		Select("event_id, COUNT(*) AS total, SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS answered", models.FeedbackAnswered).
		Group("event_id").Scan(&feedbackRows).Error; err != nil {
		return nil, err
	}

	type ratingRow struct {
		EventID uint
		Total   int64
		Avg     float64
	}
	var ratingRows []ratingRow
	if err := db.Model(&models.Rating{}).
		Select("event_id, COUNT(*) AS total, AVG(rating) AS avg").
		Group("event_id").Scan(&ratingRows).Error; err != nil {
		return nil, err
	}

	feedback := make(map[uint]feedbackRow, len(feedbackRows))
	for _, r := range feedbackRows {
		feedback[r.EventID] = r
	}
	ratings := make(map[uint]ratingRow, len(ratingRows))
	for _, r := range ratingRows {
		ratings[r.EventID] = r
	}

	out := make([]EventSummary, 0, len(events))
	for _, e := range events {
		out = append(out, EventSummary{
			Event:     e,
			Questions: feedback[e.ID].Total,
			Answered:  feedback[e.ID].Answered,
			Ratings:   ratings[e.ID].Total,
			AvgRating: ratings[e.ID].Avg,
		})
	}
	return out, nil
}

// CloseResult describes what closing an event did.
type CloseResult struct {
	Event          models.Event
	Questions      int64
	Askers         []uint
	RatingRequests int
}

// Close moves an active event to closed, posts the summary to its topic and asks every
// asker who has not rated it yet for a rating. Closing a closed event returns ErrEventClosed
// and sends nothing.
func (s *EventService) Close(ctx context.Context, eventID uint, actor *models.User) (*CloseResult, error) {
	result := &CloseResult{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&result.Event, eventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if !result.Event.IsActive() {
			return ErrEventClosed
		}

		if err := tx.Model(&models.Feedback{}).Where("event_id = ?", eventID).Count(&result.Questions).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Feedback{}).Where("event_id = ?", eventID).
			Distinct().Order("user_id").Pluck("user_id", &result.Askers).Error; err != nil {
			return err
		}

		now := time.Now()
		res := tx.Model(&models.Event{}).
			Where("id = ? AND status = ?", eventID, models.EventActive).
			Updates(map[string]interface{}{"status": models.EventClosed, "closed_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrEventClosed
		}
		result.Event.Status = models.EventClosed
		result.Event.ClosedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	event := &result.Event
	logger.Info().Uint("event_id", event.ID).Int64("questions", result.Questions).Int("askers", len(result.Askers)).Msg("[Event] Closed")

	if _, err := s.messenger.SendText(ctx, s.workGroupID, event.TopicID, closingSummaryText(result.Questions), nil); err != nil {
		logger.Warn().Err(err).Uint("event_id", event.ID).Msg("[Event] Failed to post closing summary")
	}

	result.RatingRequests = s.RequestRatings(ctx, event, result.Askers)

	var actorID *uint
	if actor != nil {
		actorID = &actor.ID
	}
	LogInfo(ModuleEvent, "close", fmt.Sprintf("Event %q closed", event.Name), actorID, map[string]interface{}{
		"event_id":        event.ID,
		"questions":       result.Questions,
		"rating_requests": result.RatingRequests,
	})
	return result, nil
}

// CloseAllActive closes every active event. Events closed concurrently by someone else are skipped.
func (s *EventService) CloseAllActive(ctx context.Context, actor *models.User) ([]CloseResult, error) {
	events, err := s.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	var (
		results []CloseResult
		errs    []error
	)
	for _, e := range events {
		res, err := s.Close(ctx, e.ID, actor)
		if errors.Is(err, ErrEventClosed) {
			continue
		}
		if err != nil {
			logger.Error().Err(err).Uint("event_id", e.ID).Msg("[Event] Failed to close")
			errs = append(errs, fmt.Errorf("event %d: %w", e.ID, err))
			continue
		}
		results = append(results, *res)
	}
	return results, errors.Join(errs...)
}

// RequestRatings sends a rating request to each asker that still resolves and has not
// rated the event. It returns the number of requests attempted.
func (s *EventService) RequestRatings(ctx context.Context, event *models.Event, askerIDs []uint) int {
	db := s.db.WithContext(ctx)
	attempted := 0
	for _, userID := range askerIDs {
		var user models.User
		if err := db.First(&user, userID).Error; err != nil {
			logger.Warn().Err(err).Uint("user_id", userID).Uint("event_id", event.ID).Msg("[Event] Asker no longer resolves, skipping")
			continue
		}

		var rated int64
		if err := db.Model(&models.Rating{}).Where("user_id = ? AND event_id = ?", userID, event.ID).Count(&rated).Error; err != nil {
			logger.Warn().Err(err).Uint("user_id", userID).Msg("[Event] Rating lookup failed, skipping")
			continue
		}
		if rated > 0 {
			continue
		}

		attempted++
		s.dispatcher.Notify(ctx, &Notification{
			Kind:    NotifyRatingRequest,
			ChatID:  user.TelegramID,
			Text:    ratingRequestText(event),
			Markup:  menu.Rating(event.ID),
			EventID: event.ID,
			UserID:  user.ID,
		})
	}
	return attempted
}
