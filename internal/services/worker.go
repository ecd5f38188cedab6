package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/huangang/feedbackbot/internal/config"
	"github.com/huangang/feedbackbot/internal/telegram"
	"github.com/huangang/feedbackbot/pkg/logger"
)

const workerConcurrency = 4

// Worker consumes notification tasks from Redis and hands them to the processor,
// normally Dispatcher.Deliver.
type Worker struct {
	server    *asynq.Server
	processor func(context.Context, *Notification) error

	mu      sync.Mutex
	running bool
}

// NewWorker returns nil when Redis is disabled.
func NewWorker(cfg *config.RedisConfig) *Worker {
	if !cfg.Enabled {
		return nil
	}
	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB},
		asynq.Config{
			// Telegram throttles bursts; the client limiter does the rest
			Concurrency: workerConcurrency,
			Queues:      map[string]int{notifyQueueName: 1},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logger.Warn().Err(err).
					Str("task", task.Type()).
					Int("retry", retried).
					Int("max_retry", maxRetry).
					Msg("[Worker] Notification failed")
			}),
		},
	)
	return &Worker{server: server}
}

func (w *Worker) SetProcessor(processor func(context.Context, *Notification) error) {
	w.processor = processor
}

// Start begins consuming in the background.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeNotify, w.handleNotifyTask)
	if err := w.server.Start(mux); err != nil {
		return fmt.Errorf("start notification worker: %w", err)
	}
	w.running = true
	logger.Info().Int("concurrency", workerConcurrency).Msg("[Worker] Notification worker started")
	return nil
}

// Stop waits for in-flight deliveries, then disconnects.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.server.Shutdown()
	w.running = false
	logger.Info().Msg("[Worker] Notification worker stopped")
}

func (w *Worker) handleNotifyTask(ctx context.Context, t *asynq.Task) error {
	n, err := decodeNotification(t.Payload())
	if err != nil {
		return fmt.Errorf("decode notification: %v: %w", err, asynq.SkipRetry)
	}
	if w.processor == nil {
		logger.Warn().Int64("chat_id", n.ChatID).Str("kind", n.Kind).Msg("[Worker] No processor set, notification dropped")
		return nil
	}
	if err := w.processor(ctx, n); err != nil {
		if permanentFailure(err) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	return nil
}

// permanentFailure is true for errors a retry cannot fix (blocked bot, bad request).
func permanentFailure(err error) bool {
	return telegram.IsBlocked(err) || telegram.IsAPIError(err, telegram.CodeBadRequest)
}

var (
	globalWorker *Worker
	workerOnce   sync.Once
)

func InitWorker(cfg *config.RedisConfig) *Worker {
	workerOnce.Do(func() {
		globalWorker = NewWorker(cfg)
	})
	return globalWorker
}
