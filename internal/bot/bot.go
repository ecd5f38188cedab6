// Package bot turns Telegram updates into service calls and replies.
package bot

import (
	"context"
	"errors"

	"github.com/huangang/feedbackbot/internal/models"
	"github.com/huangang/feedbackbot/internal/services"
	"github.com/huangang/feedbackbot/internal/telegram"
	"github.com/huangang/feedbackbot/pkg/logger"
)

// TokenIssuer mints a stats API token for an admin.
type TokenIssuer func(user *models.User) (string, error)

// Deps are the collaborators a Bot dispatches to.
type Deps struct {
	Messenger services.Messenger
	Flows     services.FlowStore
	Access    *services.AccessService
	Events    *services.EventService
	Feedback  *services.FeedbackService
	Ratings   *services.RatingService
	Users     *services.UserService
	Settings  *services.SettingService
	Analytics *services.AnalyticsService
	Reports   *services.ReportService
	Tokens    TokenIssuer
	TokenTTL  int // hours
}

// Bot handles one update at a time per user. It holds no per-user state of its own;
// pending input lives in the FlowStore.
type Bot struct {
	Deps
	workGroupID int64
}

func New(deps Deps, workGroupID int64) *Bot {
	return &Bot{Deps: deps, workGroupID: workGroupID}
}

// HandleUpdate routes a single update. Errors are answered to the user and logged, never returned.
func (b *Bot) HandleUpdate(ctx context.Context, u telegram.Update) {
	switch {
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil && u.Message.From != nil:
		msg := u.Message
		switch {
		case msg.Chat.Type == telegram.ChatPrivate:
			b.handlePrivate(ctx, msg)
		case msg.Chat.ID == b.workGroupID:
			b.handleWorkGroup(ctx, msg)
		}
	}
}

func identityOf(u *telegram.User) services.Identity {
	return services.Identity{
		TelegramID: u.ID,
		Username:   u.Username,
		FullName:   u.FullName(),
		IsBot:      u.IsBot,
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string, markup any) {
	b.replyInThread(ctx, chatID, 0, text, markup)
}

func (b *Bot) replyInThread(ctx context.Context, chatID, threadID int64, text string, markup any) {
	if _, err := b.Messenger.SendText(ctx, chatID, threadID, text, markup); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Int64("chat_id", chatID).Msg("[Bot] Reply failed")
	}
}

// edit replaces the text of the message a button was pressed on.
func (b *Bot) edit(ctx context.Context, cq *telegram.CallbackQuery, text string, markup *telegram.InlineKeyboardMarkup) {
	if cq.Message == nil {
		b.reply(ctx, cq.From.ID, text, markup)
		return
	}
	if err := b.Messenger.EditText(ctx, cq.Message.Chat.ID, cq.Message.MessageID, text, markup); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Int64("chat_id", cq.Message.Chat.ID).Msg("[Bot] Edit failed")
	}
}

func (b *Bot) answer(ctx context.Context, cq *telegram.CallbackQuery, text string, alert bool) {
	if err := b.Messenger.AnswerCallback(ctx, cq.ID, text, alert); err != nil {
		logger.Ctx(ctx).Debug().Err(err).Str("callback_id", cq.ID).Msg("[Bot] Callback answer failed")
	}
}

// internalError logs err and tells the user something went wrong.
func (b *Bot) internalError(ctx context.Context, chatID int64, where string, err error) {
	logger.Ctx(ctx).Error().Err(err).Int64("chat_id", chatID).Str("handler", where).Msg("[Bot] Handler failed")
	b.reply(ctx, chatID, textInternalError, nil)
}

// validationReason extracts the user-facing part of a validation error.
func validationReason(err error) string {
	var ve *services.ValidationError
	if errors.As(err, &ve) {
		return ve.Reason
	}
	return err.Error()
}
