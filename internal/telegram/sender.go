package telegram

import (
	"context"
	"io"
)

// Sender adapts Client to the small set of outbound operations the bot needs.
// Every text is sent with HTML parse mode, so callers escape user content.
type Sender struct {
	client *Client
}

func NewSender(client *Client) *Sender {
	return &Sender{client: client}
}

// SendText posts text to a chat, or to a forum topic when threadID is non-zero.
func (s *Sender) SendText(ctx context.Context, chatID, threadID int64, text string, markup any) (int64, error) {
	params := SendMessageParams{
		ChatID:          chatID,
		MessageThreadID: threadID,
		Text:            text,
		ParseMode:       ParseModeHTML,
	}
	switch m := markup.(type) {
	case *InlineKeyboardMarkup:
		if m != nil {
			params.ReplyMarkup = m
		}
	case *ReplyKeyboardMarkup:
		if m != nil {
			params.ReplyMarkup = m
		}
	}
	msg, err := s.client.SendMessage(ctx, params)
	if err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

func (s *Sender) SendPhoto(ctx context.Context, chatID, threadID int64, fileID, caption string) (int64, error) {
	msg, err := s.client.SendPhoto(ctx, SendPhotoParams{
		ChatID:          chatID,
		MessageThreadID: threadID,
		Photo:           fileID,
		Caption:         caption,
		ParseMode:       ParseModeHTML,
	})
	if err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

func (s *Sender) SendDocument(ctx context.Context, chatID int64, fileName string, r io.Reader, caption string) error {
	_, err := s.client.SendDocument(ctx, chatID, fileName, r, caption)
	return err
}

func (s *Sender) EditText(ctx context.Context, chatID, messageID int64, text string, markup *InlineKeyboardMarkup) error {
	return s.client.EditMessageText(ctx, EditMessageTextParams{
		ChatID:      chatID,
		MessageID:   messageID,
		Text:        text,
		ParseMode:   ParseModeHTML,
		ReplyMarkup: markup,
	})
}

// CreateThread opens a forum topic and returns its message_thread_id.
func (s *Sender) CreateThread(ctx context.Context, chatID int64, title string) (int64, error) {
	topic, err := s.client.CreateForumTopic(ctx, chatID, title)
	if err != nil {
		return 0, err
	}
	return topic.MessageThreadID, nil
}

func (s *Sender) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	return s.client.AnswerCallbackQuery(ctx, AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       alert,
	})
}
