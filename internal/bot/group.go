package bot

import (
	"context"
	"errors"
	"strings"

	"github.com/huangang/feedbackbot/internal/services"
	"github.com/huangang/feedbackbot/internal/telegram"
	"github.com/huangang/feedbackbot/pkg/logger"
)

// handleWorkGroup reacts to /promote and to staff replies on question copies.
// Everything else in the group is ordinary staff chatter and is ignored.
func (b *Bot) handleWorkGroup(ctx context.Context, msg *telegram.Message) {
	if name, _, ok := msg.Command(); ok {
		if name == "promote" {
			b.onPromote(ctx, msg)
		}
		return
	}

	parent := msg.ReplyToMessage
	if parent == nil || msg.From.IsBot {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		text = strings.TrimSpace(msg.Caption)
	}
	if text == "" {
		return
	}
	// topic messages implicitly reply to the topic root, so most replies are untracked
	if !b.Feedback.Tracked(ctx, parent.MessageID) {
		return
	}

	manager, err := b.Access.Authorize(ctx, identityOf(msg.From), services.TierManager)
	if errors.Is(err, services.ErrForbidden) {
		b.replyInThread(ctx, msg.Chat.ID, msg.MessageThreadID, textAnswerForbidden, nil)
		return
	}
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Int64("telegram_id", msg.From.ID).Msg("[Bot] Staff lookup failed")
		return
	}

	res, err := b.Feedback.RouteReply(ctx, parent.MessageID, text, manager)
	switch {
	case errors.Is(err, services.ErrNotTracked), errors.Is(err, services.ErrValidation):
		return
	case errors.Is(err, services.ErrDeliveryFailed):
		b.replyInThread(ctx, msg.Chat.ID, msg.MessageThreadID, textAnswerFailed, nil)
	case err != nil:
		logger.Ctx(ctx).Error().Err(err).Int64("message_id", parent.MessageID).Msg("[Bot] Reply routing failed")
	default:
		logger.Ctx(ctx).Debug().Uint("feedback_id", res.Feedback.ID).Msg("[Bot] Answer routed")
		b.replyInThread(ctx, msg.Chat.ID, msg.MessageThreadID, textAnswerSent, nil)
	}
}

func (b *Bot) onPromote(ctx context.Context, msg *telegram.Message) {
	chatID, thread := msg.Chat.ID, msg.MessageThreadID

	actor, err := b.Access.Authorize(ctx, identityOf(msg.From), services.TierAdmin)
	if errors.Is(err, services.ErrForbidden) {
		b.replyInThread(ctx, chatID, thread, textPromoteAdminsOnly, nil)
		return
	}
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Int64("telegram_id", msg.From.ID).Msg("[Bot] Admin lookup failed")
		return
	}

	// a reply to the topic root is not a reply to a member
	target := msg.ReplyToMessage
	if target == nil || target.From == nil || (thread != 0 && target.MessageID == thread) {
		b.replyInThread(ctx, chatID, thread, textPromoteUsage, nil)
		return
	}

	ident := identityOf(target.From)
	change, err := b.Users.PromoteFromGroup(ctx, actor, ident)
	name := ident.FullName
	if ident.Username != "" {
		name = "@" + ident.Username
	}
	switch {
	case errors.Is(err, services.ErrValidation):
		b.replyInThread(ctx, chatID, thread, textPromoteBot, nil)
	case errors.Is(err, services.ErrAlreadyAdmin):
		b.replyInThread(ctx, chatID, thread, alreadyText(name, "an administrator"), nil)
	case errors.Is(err, services.ErrAlreadyManager):
		b.replyInThread(ctx, chatID, thread, alreadyText(name, "a manager"), nil)
	case err != nil:
		logger.Ctx(ctx).Error().Err(err).Int64("target", ident.TelegramID).Msg("[Bot] Promote failed")
		b.replyInThread(ctx, chatID, thread, textInternalError, nil)
	default:
		b.replyInThread(ctx, chatID, thread, roleAssignedText(change), nil)
	}
}
