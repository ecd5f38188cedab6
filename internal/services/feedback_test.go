package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/huangang/feedbackbot/internal/models"
	"github.com/huangang/feedbackbot/internal/telegram/telegramtest"
)

func TestSubmit_ClosedEventRejected(t *testing.T) {
	env := newTestEnv(t)
	ev := env.closedEvent(t, "Launch")
	asker := env.user(t, 100, models.RoleUser)
	env.rec.Reset()

	_, err := env.feedback.Submit(context.Background(), Question{EventID: ev.ID, Asker: asker, Text: "late question"})
	if !errors.Is(err, ErrEventClosed) {
		t.Fatalf("Submit() error = %v, expected ErrEventClosed", err)
	}
	if n := env.count(t, &models.Feedback{}, ""); n != 0 {
		t.Errorf("feedback rows = %d, expected none", n)
	}
	if len(env.rec.Messages) != 0 {
		t.Error("nothing should be posted for a closed event")
	}
}

func TestSubmit_MissingEvent(t *testing.T) {
	env := newTestEnv(t)
	asker := env.user(t, 100, models.RoleUser)
	_, err := env.feedback.Submit(context.Background(), Question{EventID: 42, Asker: asker, Text: "hello"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Submit() error = %v, expected ErrNotFound", err)
	}
}

func TestSubmit_DeliveryFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ev := env.event(t, "Launch")
	asker := env.user(t, 100, models.RoleUser)
	env.rec.Fail(testWorkGroup, errors.New("topic deleted"))

	_, err := env.feedback.Submit(context.Background(), Question{EventID: ev.ID, Asker: asker, Text: "hello"})
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("Submit() error = %v, expected ErrDeliveryFailed", err)
	}
	if n := env.count(t, &models.Feedback{}, ""); n != 0 {
		t.Errorf("feedback rows = %d, expected the insert to be rolled back", n)
	}
}

func TestSubmit_PostsIntoTopic(t *testing.T) {
	env := newTestEnv(t)
	ev := env.event(t, "Launch")
	asker := &models.User{TelegramID: 100, Username: "alice", FullName: "Alice <A>", Role: models.RoleUser}
	env.db.Create(asker)

	f := env.ask(t, ev, asker, "  Where is hall B?  ")
	if f.Status != models.FeedbackInProgress || f.TopicMessageID == nil {
		t.Fatalf("feedback = %+v", f)
	}
	msg, _ := env.rec.Last(testWorkGroup)
	if msg.ID != *f.TopicMessageID || msg.ThreadID != ev.TopicID {
		t.Errorf("topic message = %+v, feedback topic_message_id = %d", msg, *f.TopicMessageID)
	}
	for _, want := range []string{"Where is hall B?", "Alice &lt;A&gt;", "@alice", "Launch"} {
		if !strings.Contains(msg.Text, want) {
			t.Errorf("topic message %q does not contain %q", msg.Text, want)
		}
	}

	var stored models.Feedback
	env.db.First(&stored, f.ID)
	if stored.MessageText != "Where is hall B?" || stored.TopicMessageID == nil || *stored.TopicMessageID != msg.ID {
		t.Errorf("stored = %+v", stored)
	}
}

func TestSubmit_PhotoWithoutCaption(t *testing.T) {
	env := newTestEnv(t)
	ev := env.event(t, "Launch")
	asker := env.user(t, 100, models.RoleUser)

	f, err := env.feedback.Submit(context.Background(), Question{EventID: ev.ID, Asker: asker, PhotoFileID: "photo-1"})
	if err != nil {
		t.Fatal(err)
	}
	if f.MessageText != photoQuestionPlaceholder || f.PhotoFileID != "photo-1" {
		t.Errorf("feedback = %+v", f)
	}
	msg, _ := env.rec.Last(testWorkGroup)
	if msg.PhotoID != "photo-1" {
		t.Errorf("photo not forwarded: %+v", msg)
	}
}

func TestSubmit_EmptyText(t *testing.T) {
	env := newTestEnv(t)
	ev := env.event(t, "Launch")
	asker := env.user(t, 100, models.RoleUser)
	_, err := env.feedback.Submit(context.Background(), Question{EventID: ev.ID, Asker: asker, Text: "  "})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Submit() error = %v, expected ErrValidation", err)
	}
}

func TestSubmit_LengthLimits(t *testing.T) {
	env := newTestEnv(t)
	ev := env.event(t, "Launch")
	asker := env.user(t, 100, models.RoleUser)

	tests := []struct {
		name    string
		text    string
		photo   string
		wantErr bool
	}{
		{"text at limit", strings.Repeat("q", MaxQuestionLength), "", false},
		{"text over limit", strings.Repeat("q", MaxQuestionLength+1), "", true},
		{"caption at limit", strings.Repeat("ф", MaxPhotoQuestionLength), "photo-1", false},
		{"caption over limit", strings.Repeat("ф", MaxPhotoQuestionLength+1), "photo-2", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(env.rec.SentTo(testWorkGroup))
			_, err := env.feedback.Submit(context.Background(), Question{
				EventID:     ev.ID,
				Asker:       asker,
				Text:        tt.text,
				PhotoFileID: tt.photo,
			})
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Errorf("Submit() error = %v, expected ErrValidation", err)
				}
				if got := len(env.rec.SentTo(testWorkGroup)); got != before {
					t.Error("an over-long question must not reach the topic")
				}
				return
			}
			if err != nil {
				t.Fatalf("Submit() error = %v", err)
			}
		})
	}

	var count int64
	env.db.Model(&models.Feedback{}).Count(&count)
	if count != 2 {
		t.Errorf("feedback rows = %d, expected 2", count)
	}
}

func TestRoundTrip_CreateAskReply(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.user(t, 1, models.RoleAdmin)
	manager := env.user(t, 2, models.RoleManager)
	asker := env.user(t, 100, models.RoleUser)

	ev, err := env.events.Create(ctx, "Launch", "", admin)
	if err != nil {
		t.Fatal(err)
	}
	f := env.ask(t, ev, asker, "Is there parking?")

	res, err := env.feedback.RouteReply(ctx, *f.TopicMessageID, "Yes, level -1.", manager)
	if err != nil {
		t.Fatalf("RouteReply() error = %v", err)
	}
	if res.Asker.ID != asker.ID || res.Event.ID != ev.ID {
		t.Errorf("RouteReply() = %+v", res)
	}

	msg, ok := env.rec.Last(asker.TelegramID)
	if !ok || !strings.Contains(msg.Text, "Yes, level -1.") || !strings.Contains(msg.Text, manager.DisplayName()) {
		t.Errorf("answer delivered = %+v", msg)
	}

	var stored models.Feedback
	env.db.First(&stored, f.ID)
	if stored.Status != models.FeedbackAnswered || stored.AnsweredBy == nil || *stored.AnsweredBy != manager.ID || stored.AnsweredAt == nil {
		t.Errorf("stored = %+v", stored)
	}
}

func TestRouteReply_Untracked(t *testing.T) {
	env := newTestEnv(t)
	manager := env.user(t, 2, models.RoleManager)
	_, err := env.feedback.RouteReply(context.Background(), 555, "hi", manager)
	if !errors.Is(err, ErrNotTracked) {
		t.Errorf("RouteReply() error = %v, expected ErrNotTracked", err)
	}
}

func TestRouteReply_DeliveryFailureKeepsStamp(t *testing.T) {
	env := newTestEnv(t)
	ev := env.event(t, "Launch")
	manager := env.user(t, 2, models.RoleManager)
	asker := env.user(t, 100, models.RoleUser)
	f := env.ask(t, ev, asker, "q")
	env.rec.Fail(asker.TelegramID, telegramtest.ErrBlocked)

	_, err := env.feedback.RouteReply(context.Background(), *f.TopicMessageID, "answer", manager)
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("RouteReply() error = %v, expected ErrDeliveryFailed", err)
	}
	var stored models.Feedback
	env.db.First(&stored, f.ID)
	if stored.Status != models.FeedbackAnswered {
		t.Errorf("status = %q, expected answered", stored.Status)
	}
}
