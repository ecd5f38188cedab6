package services

import (
	"sync"
	"testing"
	"time"
)

func TestFlowStore_Supersession(t *testing.T) {
	s := NewMemoryFlowStore(0)

	s.Set(7, Flow{Kind: FlowQuestion, EventID: 3})
	s.Set(7, Flow{Kind: FlowCreatingEvent})

	f, ok := s.Get(7)
	if !ok {
		t.Fatal("Get() found nothing")
	}
	if f.Kind != FlowCreatingEvent || f.EventID != 0 {
		t.Errorf("Get() = %+v, expected only the creation flow", f)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, expected 1", s.Len())
	}
}

func TestFlowStore_PerUser(t *testing.T) {
	s := NewMemoryFlowStore(0)
	s.Set(1, Flow{Kind: FlowAddingAdmin})
	s.Set(2, Flow{Kind: FlowRatingComment, RatingID: 9})

	s.Clear(1)
	if _, ok := s.Get(1); ok {
		t.Error("user 1 flow should be cleared")
	}
	if f, ok := s.Get(2); !ok || f.RatingID != 9 {
		t.Errorf("user 2 flow = %+v, %v", f, ok)
	}
}

func TestFlowStore_Expiry(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryFlowStore(30 * time.Minute)
	s.now = func() time.Time { return now }

	s.Set(1, Flow{Kind: FlowEditingSetting, SettingKey: "welcome_message"})
	now = now.Add(29 * time.Minute)
	if _, ok := s.Get(1); !ok {
		t.Fatal("flow expired too early")
	}
	now = now.Add(2 * time.Minute)
	if _, ok := s.Get(1); ok {
		t.Error("flow should have expired")
	}
	if s.Len() != 0 {
		t.Errorf("expired flow not removed, Len() = %d", s.Len())
	}
}

func TestFlowStore_Sweep(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryFlowStore(0)
	s.Set(1, Flow{Kind: FlowQuestion, EventID: 1, StartedAt: base})
	s.Set(2, Flow{Kind: FlowQuestion, EventID: 1, StartedAt: base.Add(time.Hour)})

	if n := s.Sweep(base.Add(time.Minute)); n != 1 {
		t.Errorf("Sweep() = %d, expected 1", n)
	}
	if _, ok := s.Get(2); !ok {
		t.Error("recent flow should survive the sweep")
	}
}

func TestFlowStore_Concurrent(t *testing.T) {
	s := NewMemoryFlowStore(time.Minute)
	var wg sync.WaitGroup
	for i := int64(0); i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			s.Set(id, Flow{Kind: FlowQuestion, EventID: uint(id)})
			s.Get(id)
			s.Clear(id)
		}(i)
	}
	wg.Wait()
	if s.Len() != 0 {
		t.Errorf("Len() = %d, expected 0", s.Len())
	}
}
