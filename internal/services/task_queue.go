package services

import (
	"context"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/hibiken/asynq"
	"github.com/huangang/feedbackbot/internal/config"
	"github.com/huangang/feedbackbot/internal/telegram"
	"github.com/huangang/feedbackbot/pkg/logger"
)

const (
	TaskTypeNotify = "notify:send"

	notifyQueueName = "notifications"
)

// Notification kinds.
const (
	NotifyRatingRequest = "rating_request"
	NotifyRoleChanged   = "role_changed"
)

// Notification is a single directed message produced as a side effect of an operation.
type Notification struct {
	Kind     string                         `cbor:"kind"`
	ChatID   int64                          `cbor:"chat_id"`
	ThreadID int64                          `cbor:"thread_id,omitempty"`
	Text     string                         `cbor:"text"`
	Markup   *telegram.InlineKeyboardMarkup `cbor:"markup,omitempty"`
	EventID  uint                           `cbor:"event_id,omitempty"`
	UserID   uint                           `cbor:"user_id,omitempty"`
}

var (
	payloadEnc cbor.EncMode
	payloadDec cbor.DecMode
)

func init() {
	var err error
	payloadEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("services: CBOR encoder initialization failed: " + err.Error())
	}
	payloadDec, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("services: CBOR decoder initialization failed: " + err.Error())
	}
}

func encodeNotification(n *Notification) ([]byte, error) {
	return payloadEnc.Marshal(n)
}

func decodeNotification(data []byte) (*Notification, error) {
	var n Notification
	if err := payloadDec.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// NotificationQueue decouples notification delivery from the request that produced it.
type NotificationQueue interface {
	// Enqueue adds a notification to the queue
	Enqueue(ctx context.Context, n *Notification) error
	// IsAsync returns true if queue delivers notifications asynchronously
	IsAsync() bool
	// Close gracefully shuts down the queue
	Close() error
}

var (
	globalQueue NotificationQueue
	queueOnce   sync.Once
)

// InitNotificationQueue picks Redis-backed delivery when configured and reachable,
// inline delivery otherwise.
func InitNotificationQueue(cfg *config.Config) NotificationQueue {
	queueOnce.Do(func() {
		if cfg.Redis.Enabled {
			queue, err := NewAsyncQueue(&cfg.Redis)
			if err != nil {
				logger.Warnf("[NotificationQueue] Redis unavailable, falling back to sync mode: %v", err)
				globalQueue = NewSyncQueue()
			} else {
				logger.Infof("[NotificationQueue] Async queue initialized with Redis at %s", cfg.Redis.Addr)
				globalQueue = queue
			}
		} else {
			logger.Infof("[NotificationQueue] Sync queue initialized (Redis disabled)")
			globalQueue = NewSyncQueue()
		}
	})
	return globalQueue
}

// AsyncQueue implements NotificationQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := asynq.NewClient(redisOpt)

	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

func (q *AsyncQueue) Enqueue(ctx context.Context, n *Notification) error {
	payload, err := encodeNotification(n)
	if err != nil {
		return err
	}

	t := asynq.NewTask(TaskTypeNotify, payload)
	info, err := q.client.EnqueueContext(ctx, t,
		asynq.Queue(notifyQueueName),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return err
	}

	logger.Debug().Str("task_id", info.ID).Str("kind", n.Kind).Msg("[AsyncQueue] Notification enqueued")
	return nil
}

func (q *AsyncQueue) IsAsync() bool {
	return true
}

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue delivers each notification in the caller's goroutine (no Redis).
type SyncQueue struct {
	processor func(context.Context, *Notification) error
}

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

func (q *SyncQueue) SetProcessor(processor func(context.Context, *Notification) error) {
	q.processor = processor
}

func (q *SyncQueue) Enqueue(ctx context.Context, n *Notification) error {
	if q.processor == nil {
		logger.Warn().Str("kind", n.Kind).Msg("[SyncQueue] No processor set, notification dropped")
		return nil
	}
	return q.processor(ctx, n)
}

func (q *SyncQueue) IsAsync() bool {
	return false
}

func (q *SyncQueue) Close() error {
	return nil
}
