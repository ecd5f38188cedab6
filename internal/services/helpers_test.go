package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/huangang/feedbackbot/internal/config"
	"github.com/huangang/feedbackbot/internal/models"
	"github.com/huangang/feedbackbot/internal/telegram/telegramtest"
	"gorm.io/gorm"
)

const testWorkGroup int64 = -1001234567890

type testEnv struct {
	db         *gorm.DB
	rec        *telegramtest.Recorder
	dispatcher *Dispatcher
	access     *AccessService
	events     *EventService
	feedback   *FeedbackService
	ratings    *RatingService
	users      *UserService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := models.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name),
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	rec := telegramtest.NewRecorder()
	dispatcher := NewDispatcher(rec)
	return &testEnv{
		db:         db,
		rec:        rec,
		dispatcher: dispatcher,
		access:     NewAccessService(db, 1),
		events:     NewEventService(db, rec, dispatcher, testWorkGroup),
		feedback:   NewFeedbackService(db, rec, testWorkGroup),
		ratings:    NewRatingService(db),
		users:      NewUserService(db, dispatcher),
	}
}

func (e *testEnv) user(t *testing.T, telegramID int64, role string) *models.User {
	t.Helper()
	u := &models.User{TelegramID: telegramID, FullName: fmt.Sprintf("User %d", telegramID), Role: role}
	if err := e.db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (e *testEnv) event(t *testing.T, name string) *models.Event {
	t.Helper()
	ev, err := e.events.Create(context.Background(), name, "", nil)
	if err != nil {
		t.Fatalf("Create(%q) error = %v", name, err)
	}
	return ev
}

func (e *testEnv) ask(t *testing.T, ev *models.Event, asker *models.User, text string) *models.Feedback {
	t.Helper()
	f, err := e.feedback.Submit(context.Background(), Question{EventID: ev.ID, Asker: asker, Text: text})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	return f
}

func (e *testEnv) closedEvent(t *testing.T, name string) *models.Event {
	t.Helper()
	ev := e.event(t, name)
	if _, err := e.events.Close(context.Background(), ev.ID, nil); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return ev
}

func (e *testEnv) count(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := e.db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatal(err)
	}
	return n
}
