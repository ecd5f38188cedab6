package services

import (
	"context"
	"testing"

	"github.com/huangang/feedbackbot/internal/models"
)

func TestCalculateNPS(t *testing.T) {
	tests := []struct {
		name    string
		ratings []int
		want    NPS
	}{
		{"empty", nil, NPS{}},
		{"all promoters", []int{5, 5}, NPS{Score: 100, Promoters: 2, PromotersPct: 100}},
		{"mixed", []int{5, 4, 3, 1}, NPS{Score: -25, Promoters: 1, Passives: 1, Detractors: 2, PromotersPct: 25, PassivesPct: 25, DetractorsPct: 50}},
		{"thirds", []int{5, 4, 2}, NPS{Score: 0, Promoters: 1, Passives: 1, Detractors: 1, PromotersPct: 33.3, PassivesPct: 33.3, DetractorsPct: 33.3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateNPS(tt.ratings); got != tt.want {
				t.Errorf("CalculateNPS() = %+v, expected %+v", got, tt.want)
			}
		})
	}
}

func TestGeneralStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	popular := env.event(t, "Popular")
	quiet := env.event(t, "Quiet")
	env.event(t, "Still open")

	var raters []*models.User
	for i := int64(0); i < 3; i++ {
		u := env.user(t, 100+i, models.RoleUser)
		raters = append(raters, u)
		env.ask(t, popular, u, "q")
	}
	env.events.Close(ctx, popular.ID, nil)
	env.events.Close(ctx, quiet.ID, nil)
	for _, u := range raters {
		if _, err := env.ratings.Rate(ctx, u, popular.ID, 4); err != nil {
			t.Fatal(err)
		}
	}
	env.ratings.Rate(ctx, raters[0], quiet.ID, 5)

	stats, err := NewAnalyticsService(env.db).GeneralStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalEvents != 3 || stats.ActiveEvents != 1 || stats.ClosedEvents != 2 {
		t.Errorf("event counts = %+v", stats)
	}
	if stats.TotalFeedbacks != 3 || stats.TotalRatings != 4 || stats.AvgRating != 4.25 {
		t.Errorf("feedback/rating counts = %+v", stats)
	}
	if len(stats.TopEvents) != 1 || stats.TopEvents[0].Name != "Popular" {
		t.Errorf("TopEvents = %+v, expected only the event with 3 ratings", stats.TopEvents)
	}
}

func TestEventStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ev := env.event(t, "Launch")
	manager := env.user(t, 2, models.RoleManager)
	u1 := env.user(t, 100, models.RoleUser)
	u2 := env.user(t, 101, models.RoleUser)

	f := env.ask(t, ev, u1, "q1")
	env.ask(t, ev, u2, "q2")
	if _, err := env.feedback.RouteReply(ctx, *f.TopicMessageID, "a1", manager); err != nil {
		t.Fatal(err)
	}
	env.events.Close(ctx, ev.ID, nil)
	r, _ := env.ratings.Rate(ctx, u1, ev.ID, 5)
	env.ratings.AddComment(ctx, u1, r.ID, "Loved it")
	env.ratings.Rate(ctx, u2, ev.ID, 3)

	stats, err := NewAnalyticsService(env.db).EventStats(ctx, ev.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalFeedbacks != 2 || stats.FeedbackStatuses[models.FeedbackAnswered] != 1 || stats.FeedbackStatuses[models.FeedbackInProgress] != 1 {
		t.Errorf("feedback stats = %+v", stats.FeedbackStatuses)
	}
	if stats.AvgRating != 4 || stats.RatingDistribution[5] != 1 || stats.RatingDistribution[3] != 1 {
		t.Errorf("rating stats = %v / %v", stats.AvgRating, stats.RatingDistribution)
	}
	if len(stats.TopManagers) != 1 || stats.TopManagers[0].Count != 1 {
		t.Errorf("TopManagers = %+v", stats.TopManagers)
	}
	if len(stats.Comments) != 1 || stats.Comments[0].Comment != "Loved it" {
		t.Errorf("Comments = %+v", stats.Comments)
	}
	if stats.NPS.Promoters != 1 || stats.NPS.Detractors != 1 {
		t.Errorf("NPS = %+v", stats.NPS)
	}
}
