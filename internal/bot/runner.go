package bot

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
	"github.com/huangang/feedbackbot/internal/telegram"
	"github.com/huangang/feedbackbot/pkg/logger"
)

// Runner feeds updates to a fixed pool of workers. Updates from the same sender always land
// on the same worker, so one user's updates are handled in arrival order.
type Runner struct {
	handle  func(context.Context, telegram.Update)
	queues  []chan telegram.Update
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	started bool
}

func NewRunner(workers, queueSize int, handle func(context.Context, telegram.Update)) *Runner {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	r := &Runner{handle: handle, queues: make([]chan telegram.Update, workers)}
	for i := range r.queues {
		r.queues[i] = make(chan telegram.Update, queueSize)
	}
	return r
}

// Start launches the workers. They exit once Stop drains the queues.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	for i, q := range r.queues {
		r.wg.Add(1)
		go r.work(ctx, i, q)
	}
	logger.Info().Int("workers", len(r.queues)).Msg("[Runner] Started")
}

func (r *Runner) work(ctx context.Context, id int, q <-chan telegram.Update) {
	defer r.wg.Done()
	for u := range q {
		r.dispatch(ctx, id, u)
	}
}

func (r *Runner) dispatch(ctx context.Context, worker int, u telegram.Update) {
	trace := uuid.NewString()
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().
				Interface("panic", rec).
				Str("trace_id", trace).
				Int64("update_id", u.UpdateID).
				Str("stack", string(debug.Stack())).
				Msg("[Runner] Handler panicked")
		}
	}()
	ctx = logger.WithTrace(ctx, trace)
	logger.Ctx(ctx).Debug().Int("worker", worker).Int64("update_id", u.UpdateID).Msg("[Runner] Handling update")
	r.handle(ctx, u)
}

// Submit queues an update. It returns false when the runner is stopped or the
// sender's queue is full.
func (r *Runner) Submit(u telegram.Update) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return false
	}
	select {
	case r.queueFor(u) <- u:
		return true
	default:
		logger.Warn().Int64("update_id", u.UpdateID).Int64("sender", u.SenderID()).Msg("[Runner] Queue full, update dropped")
		return false
	}
}

// SubmitWait queues an update, blocking while the sender's queue is full. It returns
// false when the runner is stopped or ctx ends first.
func (r *Runner) SubmitWait(ctx context.Context, u telegram.Update) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return false
	}
	select {
	case r.queueFor(u) <- u:
		return true
	case <-ctx.Done():
		return false
	}
}

func (r *Runner) queueFor(u telegram.Update) chan telegram.Update {
	sender := u.SenderID()
	if sender < 0 {
		sender = -sender
	}
	return r.queues[sender%int64(len(r.queues))]
}

// Stop refuses new updates and waits for queued ones to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	for _, q := range r.queues {
		close(q)
	}
	r.mu.Unlock()
	r.wg.Wait()
	logger.Info().Msg("[Runner] Stopped")
}
