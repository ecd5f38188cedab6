package services

import (
	"context"
	"io"

	"github.com/huangang/feedbackbot/internal/telegram"
	"github.com/huangang/feedbackbot/pkg/logger"
)

// Messenger is the outbound side of the chat platform: directed messages to a
// chat or to a thread inside a chat, edits, topic creation and callback answers.
type Messenger interface {
	SendText(ctx context.Context, chatID, threadID int64, text string, markup any) (int64, error)
	SendPhoto(ctx context.Context, chatID, threadID int64, fileID, caption string) (int64, error)
	SendDocument(ctx context.Context, chatID int64, fileName string, r io.Reader, caption string) error
	EditText(ctx context.Context, chatID, messageID int64, text string, markup *telegram.InlineKeyboardMarkup) error
	CreateThread(ctx context.Context, chatID int64, title string) (int64, error)
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
}

// Dispatcher emits best-effort notifications. Failures are logged and never
// propagate into the operation that caused them.
type Dispatcher struct {
	messenger Messenger
	queue     NotificationQueue
}

func NewDispatcher(messenger Messenger) *Dispatcher {
	return &Dispatcher{messenger: messenger}
}

// UseQueue routes Notify through q instead of delivering inline.
func (d *Dispatcher) UseQueue(q NotificationQueue) {
	d.queue = q
}

// Notify hands n to the queue (or delivers it directly without one).
func (d *Dispatcher) Notify(ctx context.Context, n *Notification) error {
	var err error
	if d.queue != nil {
		err = d.queue.Enqueue(ctx, n)
	} else {
		err = d.Deliver(ctx, n)
	}
	if err != nil {
		logger.Warn().Err(err).
			Str("kind", n.Kind).
			Int64("chat_id", n.ChatID).
			Uint("event_id", n.EventID).
			Msg("[Dispatcher] Notification not delivered")
	}
	return err
}

// Deliver sends n right now. It is the processor for both queue modes.
func (d *Dispatcher) Deliver(ctx context.Context, n *Notification) error {
	var markup any
	if n.Markup != nil {
		markup = n.Markup
	}
	_, err := d.messenger.SendText(ctx, n.ChatID, n.ThreadID, n.Text, markup)
	if err != nil {
		return deliveryError(n.Kind, err)
	}
	logger.Debug().Str("kind", n.Kind).Int64("chat_id", n.ChatID).Msg("[Dispatcher] Notification sent")
	return nil
}
