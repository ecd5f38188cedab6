package services

import (
	"sync"
	"time"
)

// FlowKind names the multi-step dialogue a user is in.
type FlowKind string

const (
	FlowCreatingEvent  FlowKind = "creating_event"
	FlowAddingAdmin    FlowKind = "adding_admin"
	FlowAddingManager  FlowKind = "adding_manager"
	FlowRemovingRole   FlowKind = "removing_role"
	FlowEditingSetting FlowKind = "editing_setting"
	FlowRatingComment  FlowKind = "rating_comment"
	FlowQuestion       FlowKind = "question"
)

// Flow is the pending-input marker for one user. Only the field matching Kind is set.
type Flow struct {
	Kind       FlowKind
	EventID    uint   // FlowQuestion
	RatingID   uint   // FlowRatingComment
	SettingKey string // FlowEditingSetting
	StartedAt  time.Time
}

// FlowStore holds at most one Flow per user. Setting a flow replaces the previous one.
type FlowStore interface {
	Get(telegramID int64) (Flow, bool)
	Set(telegramID int64, flow Flow)
	Clear(telegramID int64)
	// Sweep drops flows started before cutoff and returns how many were removed.
	Sweep(cutoff time.Time) int
	Len() int
}

// MemoryFlowStore is a process-local FlowStore. Flows are lost on restart.
type MemoryFlowStore struct {
	mu    sync.Mutex
	flows map[int64]Flow
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryFlowStore creates a store whose flows expire after ttl; ttl <= 0 disables expiry.
func NewMemoryFlowStore(ttl time.Duration) *MemoryFlowStore {
	return &MemoryFlowStore{
		flows: make(map[int64]Flow),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *MemoryFlowStore) expired(f Flow) bool {
	return s.ttl > 0 && s.now().Sub(f.StartedAt) > s.ttl
}

func (s *MemoryFlowStore) Get(telegramID int64) (Flow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flows[telegramID]
	if !ok {
		return Flow{}, false
	}
	if s.expired(f) {
		delete(s.flows, telegramID)
		return Flow{}, false
	}
	return f, true
}

func (s *MemoryFlowStore) Set(telegramID int64, flow Flow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if flow.StartedAt.IsZero() {
		flow.StartedAt = s.now()
	}
	s.flows[telegramID] = flow
}

func (s *MemoryFlowStore) Clear(telegramID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flows, telegramID)
}

func (s *MemoryFlowStore) Sweep(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, f := range s.flows {
		if f.StartedAt.Before(cutoff) {
			delete(s.flows, id)
			removed++
		}
	}
	return removed
}

func (s *MemoryFlowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.flows)
}

// TTL is the configured expiry, zero when disabled.
func (s *MemoryFlowStore) TTL() time.Duration {
	return s.ttl
}
