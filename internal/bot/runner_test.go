package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/huangang/feedbackbot/internal/telegram"
)

func update(id, sender int64) telegram.Update {
	return telegram.Update{UpdateID: id, Message: &telegram.Message{From: &telegram.User{ID: sender}}}
}

func TestRunner_PerSenderOrder(t *testing.T) {
	var mu sync.Mutex
	seen := map[int64][]int64{}
	r := NewRunner(3, 64, func(_ context.Context, u telegram.Update) {
		mu.Lock()
		defer mu.Unlock()
		seen[u.SenderID()] = append(seen[u.SenderID()], u.UpdateID)
	})
	r.Start(context.Background())

	var id int64
	for i := 0; i < 20; i++ {
		for _, sender := range []int64{10, 11, 12, 13} {
			id++
			if !r.Submit(update(id, sender)) {
				t.Fatalf("Submit(%d) rejected", id)
			}
		}
	}
	r.Stop()

	for sender, ids := range seen {
		if len(ids) != 20 {
			t.Errorf("sender %d handled %d updates, expected 20", sender, len(ids))
		}
		for i := 1; i < len(ids); i++ {
			if ids[i] < ids[i-1] {
				t.Errorf("sender %d out of order: %v", sender, ids)
				break
			}
		}
	}
}

func TestRunner_RecoversFromPanic(t *testing.T) {
	var mu sync.Mutex
	var handled []int64
	r := NewRunner(1, 4, func(_ context.Context, u telegram.Update) {
		if u.UpdateID == 1 {
			panic("boom")
		}
		mu.Lock()
		handled = append(handled, u.UpdateID)
		mu.Unlock()
	})
	r.Start(context.Background())
	r.Submit(update(1, 5))
	r.Submit(update(2, 5))
	r.Stop()

	if len(handled) != 1 || handled[0] != 2 {
		t.Errorf("handled = %v, expected the update after the panic", handled)
	}
}

func TestRunner_SubmitAfterStop(t *testing.T) {
	r := NewRunner(2, 1, func(context.Context, telegram.Update) {})
	r.Start(context.Background())
	r.Stop()
	if r.Submit(update(1, 1)) {
		t.Error("Submit() after Stop() should be rejected")
	}
	r.Stop()
}

func TestRunner_QueueFull(t *testing.T) {
	r := NewRunner(1, 1, func(context.Context, telegram.Update) {})
	// not started, so nothing drains the queue
	if !r.Submit(update(1, 1)) {
		t.Fatal("first Submit() should fit")
	}
	if r.Submit(update(2, 1)) {
		t.Error("Submit() on a full queue should be rejected")
	}
}

func TestRunner_SubmitWaitBlocksUntilRoom(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var mu sync.Mutex
	var handled []int64
	r := NewRunner(1, 1, func(_ context.Context, u telegram.Update) {
		if u.UpdateID == 1 {
			started <- struct{}{}
			<-release
		}
		mu.Lock()
		handled = append(handled, u.UpdateID)
		mu.Unlock()
	})
	r.Start(context.Background())

	r.Submit(update(1, 7))
	<-started
	if !r.Submit(update(2, 7)) {
		t.Fatal("second update should fill the queue")
	}

	done := make(chan bool, 1)
	go func() { done <- r.SubmitWait(context.Background(), update(3, 7)) }()
	select {
	case <-done:
		t.Fatal("SubmitWait() returned while the queue was full")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case ok := <-done:
		if !ok {
			t.Fatal("SubmitWait() = false, expected the update to be queued")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("SubmitWait() still blocked after the queue drained")
	}
	r.Stop()

	if len(handled) != 3 || handled[2] != 3 {
		t.Errorf("handled = %v, expected all three in order", handled)
	}
}

func TestRunner_SubmitWaitCancelled(t *testing.T) {
	r := NewRunner(1, 1, func(context.Context, telegram.Update) {})
	// not started, so the queue stays full
	r.Submit(update(1, 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if r.SubmitWait(ctx, update(2, 1)) {
		t.Error("SubmitWait() should give up when the context ends")
	}
}
