package services

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/huangang/feedbackbot/internal/models"
	"gorm.io/gorm"
)

// AnalyticsService is the read side: aggregate numbers for the stats menu, the API and reports.
type AnalyticsService struct {
	db *gorm.DB
}

func NewAnalyticsService(db *gorm.DB) *AnalyticsService {
	return &AnalyticsService{db: db}
}

type TopEvent struct {
	EventID   uint    `json:"event_id"`
	Name      string  `json:"name"`
	AvgRating float64 `json:"avg_rating"`
	Count     int64   `json:"count"`
}

type GeneralStats struct {
	TotalEvents    int64      `json:"total_events"`
	ActiveEvents   int64      `json:"active_events"`
	ClosedEvents   int64      `json:"closed_events"`
	TotalFeedbacks int64      `json:"total_feedbacks"`
	TotalRatings   int64      `json:"total_ratings"`
	AvgRating      float64    `json:"avg_rating"`
	TotalUsers     int64      `json:"total_users"`
	TotalManagers  int64      `json:"total_managers"`
	TotalAdmins    int64      `json:"total_admins"`
	TopEvents      []TopEvent `json:"top_events"`
}

// minRatingsForTop is how many ratings an event needs before it can appear in the top list.
const minRatingsForTop = 3

func (s *AnalyticsService) GeneralStats(ctx context.Context) (*GeneralStats, error) {
	db := s.db.WithContext(ctx)
	var stats GeneralStats

	db.Model(&models.Event{}).Count(&stats.TotalEvents)
	db.Model(&models.Event{}).Where("status = ?", models.EventActive).Count(&stats.ActiveEvents)
	db.Model(&models.Event{}).Where("status = ?", models.EventClosed).Count(&stats.ClosedEvents)
	db.Model(&models.Feedback{}).Count(&stats.TotalFeedbacks)
	db.Model(&models.Rating{}).Count(&stats.TotalRatings)
	db.Model(&models.Rating{}).Select("COALESCE(AVG(rating), 0)").Scan(&stats.AvgRating)
	db.Model(&models.User{}).Count(&stats.TotalUsers)
	db.Model(&models.User{}).Where("role = ?", models.RoleManager).Count(&stats.TotalManagers)
	db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&stats.TotalAdmins)

	err := db.Model(&models.Rating{}).
		Select("events.id AS event_id, events.name AS name, AVG(ratings.rating) AS avg_rating, COUNT(ratings.id) AS count").
		Joins("JOIN events ON events.id = ratings.event_id").
		Group("events.id, events.name").
		Having("COUNT(ratings.id) >= ?", minRatingsForTop).
		Order("avg_rating DESC").
		Limit(3).
		Scan(&stats.TopEvents).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

type ManagerAnswers struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

type RatingComment struct {
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

type EventStats struct {
	Event              models.Event     `json:"event"`
	TotalFeedbacks     int              `json:"total_feedbacks"`
	TotalRatings       int              `json:"total_ratings"`
	AvgRating          float64          `json:"avg_rating"`
	RatingDistribution map[int]int      `json:"rating_distribution"`
	FeedbackStatuses   map[string]int   `json:"feedback_statuses"`
	AvgResponseHours   float64          `json:"avg_response_hours"`
	TopManagers        []ManagerAnswers `json:"top_managers"`
	Comments           []RatingComment  `json:"comments"`
	FeedbackByDay      []DayCount       `json:"feedback_by_day"`
	NPS                NPS              `json:"nps"`
}

func (s *AnalyticsService) EventStats(ctx context.Context, eventID uint) (*EventStats, error) {
	db := s.db.WithContext(ctx)

	stats := &EventStats{
		RatingDistribution: make(map[int]int),
		FeedbackStatuses:   make(map[string]int),
	}
	if err := db.First(&stats.Event, eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var feedbacks []models.Feedback
	if err := db.Where("event_id = ?", eventID).Order("created_at ASC").Find(&feedbacks).Error; err != nil {
		return nil, err
	}
	var ratings []models.Rating
	if err := db.Where("event_id = ?", eventID).Order("created_at ASC").Find(&ratings).Error; err != nil {
		return nil, err
	}

	stats.TotalFeedbacks = len(feedbacks)
	stats.TotalRatings = len(ratings)

	var responseTotal time.Duration
	var answered int
	perDay := make(map[string]int)
	for _, f := range feedbacks {
		stats.FeedbackStatuses[f.Status]++
		if f.AnsweredAt != nil {
			responseTotal += f.AnsweredAt.Sub(f.CreatedAt)
			answered++
		}
		perDay[f.CreatedAt.Format("2006-01-02")]++
	}
	if answered > 0 {
		stats.AvgResponseHours = (responseTotal / time.Duration(answered)).Hours()
	}
	for day, n := range perDay {
		stats.FeedbackByDay = append(stats.FeedbackByDay, DayCount{Day: day, Count: n})
	}
	sort.Slice(stats.FeedbackByDay, func(i, j int) bool { return stats.FeedbackByDay[i].Day < stats.FeedbackByDay[j].Day })

	values := make([]int, 0, len(ratings))
	sum := 0
	for _, r := range ratings {
		values = append(values, r.Value)
		sum += r.Value
		stats.RatingDistribution[r.Value]++
		if r.Comment != nil && *r.Comment != "" {
			stats.Comments = append(stats.Comments, RatingComment{Rating: r.Value, Comment: *r.Comment, CreatedAt: r.CreatedAt})
		}
	}
	if len(ratings) > 0 {
		stats.AvgRating = float64(sum) / float64(len(ratings))
	}
	stats.NPS = CalculateNPS(values)

	type managerRow struct {
		FullName string
		Username string
		Count    int64
	}
	var rows []managerRow
	if err := db.Model(&models.Feedback{}).
		Select("users.full_name AS full_name, users.username AS username, COUNT(feedbacks.id) AS count").
		Joins("JOIN users ON users.id = feedbacks.answered_by").
		Where("feedbacks.event_id = ?", eventID).
		Group("users.id, users.full_name, users.username").
		Order("count DESC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		u := models.User{FullName: r.FullName, Username: r.Username}
		name := u.DisplayName()
		if r.FullName == "" && r.Username == "" {
			name = "Unknown"
		}
		stats.TopManagers = append(stats.TopManagers, ManagerAnswers{Name: name, Count: r.Count})
	}

	return stats, nil
}

// AllEventStats returns EventStats for every event, newest first.
func (s *AnalyticsService) AllEventStats(ctx context.Context) ([]EventStats, error) {
	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.Event{}).Order("created_at DESC").Order("id DESC").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	out := make([]EventStats, 0, len(ids))
	for _, id := range ids {
		st, err := s.EventStats(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, nil
}

// NPS is the net promoter score over 1..5 ratings: 5 promotes, 4 is passive, 3 and below detract.
type NPS struct {
	Score         float64 `json:"nps"`
	Promoters     int     `json:"promoters"`
	Passives      int     `json:"passives"`
	Detractors    int     `json:"detractors"`
	PromotersPct  float64 `json:"promoters_pct"`
	PassivesPct   float64 `json:"passives_pct"`
	DetractorsPct float64 `json:"detractors_pct"`
}

func CalculateNPS(ratings []int) NPS {
	var n NPS
	if len(ratings) == 0 {
		return n
	}
	for _, r := range ratings {
		switch {
		case r >= 5:
			n.Promoters++
		case r == 4:
			n.Passives++
		default:
			n.Detractors++
		}
	}
	total := float64(len(ratings))
	n.Score = round1(float64(n.Promoters-n.Detractors) / total * 100)
	n.PromotersPct = round1(float64(n.Promoters) / total * 100)
	n.PassivesPct = round1(float64(n.Passives) / total * 100)
	n.DetractorsPct = round1(float64(n.Detractors) / total * 100)
	return n
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
