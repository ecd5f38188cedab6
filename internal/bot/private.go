package bot

import (
	"context"
	"errors"
	"html"
	"strings"

	"github.com/huangang/feedbackbot/internal/menu"
	"github.com/huangang/feedbackbot/internal/models"
	"github.com/huangang/feedbackbot/internal/services"
	"github.com/huangang/feedbackbot/internal/telegram"
	"github.com/huangang/feedbackbot/pkg/logger"
)

func (b *Bot) handlePrivate(ctx context.Context, msg *telegram.Message) {
	chatID := msg.Chat.ID
	user, err := b.Access.Authorize(ctx, identityOf(msg.From), services.TierRegistered)
	if err != nil {
		b.internalError(ctx, chatID, "register", err)
		return
	}

	if name, _, ok := msg.Command(); ok {
		b.handleCommand(ctx, msg, user, name)
		return
	}

	if len(msg.Photo) > 0 {
		b.handlePhoto(ctx, msg, user)
		return
	}

	if strings.TrimSpace(msg.Text) == "" {
		return
	}
	b.handleText(ctx, msg, user)
}

func (b *Bot) handleCommand(ctx context.Context, msg *telegram.Message, user *models.User, name string) {
	chatID := msg.Chat.ID
	switch name {
	case "start":
		greeting := b.Settings.Value(ctx, models.SettingWelcomeMessage)
		b.reply(ctx, chatID, welcomeText(user.Role, html.EscapeString(greeting)), menu.MainMenu(user.Role))
	case "help":
		b.reply(ctx, chatID, helpText(user.Role), nil)
	case "cancel":
		if _, ok := b.Flows.Get(user.TelegramID); !ok {
			b.reply(ctx, chatID, textNothingToCancel, menu.MainMenu(user.Role))
			return
		}
		b.Flows.Clear(user.TelegramID)
		b.reply(ctx, chatID, textCancelled, menu.MainMenu(user.Role))
	case "skip":
		flow, ok := b.Flows.Get(user.TelegramID)
		if !ok || flow.Kind != services.FlowRatingComment {
			b.reply(ctx, chatID, textNothingToSkip, nil)
			return
		}
		b.Flows.Clear(user.TelegramID)
		b.reply(ctx, chatID, textRatingNoComment, nil)
	case "promote":
		b.reply(ctx, chatID, textPromotePrivate, nil)
	default:
		b.reply(ctx, chatID, textHint, nil)
	}
}

// handleText feeds free text to the pending flow, or treats it as a menu button.
// Only one flow can be pending; the case order is the precedence between flows.
func (b *Bot) handleText(ctx context.Context, msg *telegram.Message, user *models.User) {
	flow, ok := b.Flows.Get(user.TelegramID)
	if !ok {
		b.handleMenuText(ctx, msg, user)
		return
	}

	switch flow.Kind {
	case services.FlowCreatingEvent:
		b.onEventName(ctx, msg, user)
	case services.FlowAddingAdmin:
		b.onAssignRole(ctx, msg, user, models.RoleAdmin)
	case services.FlowAddingManager:
		b.onAssignRole(ctx, msg, user, models.RoleManager)
	case services.FlowRemovingRole:
		b.onRemoveRole(ctx, msg, user)
	case services.FlowEditingSetting:
		b.onSettingValue(ctx, msg, user, flow.SettingKey)
	case services.FlowRatingComment:
		b.onRatingComment(ctx, msg, user, flow.RatingID)
	case services.FlowQuestion:
		b.onQuestion(ctx, msg, user, flow.EventID, msg.Text, "")
	default:
		b.Flows.Clear(user.TelegramID)
		b.handleMenuText(ctx, msg, user)
	}
}

func (b *Bot) handlePhoto(ctx context.Context, msg *telegram.Message, user *models.User) {
	flow, ok := b.Flows.Get(user.TelegramID)
	if !ok || flow.Kind != services.FlowQuestion {
		b.reply(ctx, msg.Chat.ID, textPhotoNoFlow, nil)
		return
	}
	b.onQuestion(ctx, msg, user, flow.EventID, msg.Caption, msg.LargestPhoto())
}

func (b *Bot) handleMenuText(ctx context.Context, msg *telegram.Message, user *models.User) {
	chatID := msg.Chat.ID
	switch msg.Text {
	case menu.ButtonAsk:
		b.startQuestion(ctx, chatID)
		return
	case menu.ButtonRateEvent, menu.ButtonRate:
		b.startRating(ctx, chatID, user)
		return
	case menu.ButtonHelp, menu.ButtonStaffHelp:
		b.reply(ctx, chatID, helpText(user.Role), nil)
		return
	}

	if user.IsAdmin() {
		switch msg.Text {
		case menu.ButtonEvents:
			b.reply(ctx, chatID, textEventsMenu, menu.EventsMenu())
			return
		case menu.ButtonUsers:
			b.reply(ctx, chatID, textUsersMenu, menu.UsersMenu())
			return
		case menu.ButtonStats:
			b.reply(ctx, chatID, textStatsMenu, menu.StatsMenu())
			return
		case menu.ButtonSettings:
			b.reply(ctx, chatID, textSettingsMenu, menu.SettingsMenu())
			return
		}
	}

	b.reply(ctx, chatID, textHint, nil)
}

func (b *Bot) startQuestion(ctx context.Context, chatID int64) {
	events, err := b.Events.ListActive(ctx)
	if err != nil {
		b.internalError(ctx, chatID, "list active events", err)
		return
	}
	if len(events) == 0 {
		b.reply(ctx, chatID, html.EscapeString(b.Settings.Value(ctx, models.SettingNoEventsMessage)), nil)
		return
	}
	b.reply(ctx, chatID, textChooseEvent, menu.AskEvents(events))
}

func (b *Bot) startRating(ctx context.Context, chatID int64, user *models.User) {
	events, err := b.Ratings.UnratedClosedEvents(ctx, user)
	if err != nil {
		b.internalError(ctx, chatID, "list unrated events", err)
		return
	}
	if len(events) == 0 {
		b.reply(ctx, chatID, textNothingToRate, nil)
		return
	}
	b.reply(ctx, chatID, textChooseRate, menu.RateEvents(events))
}

// requireAdmin re-checks the role when a staff flow's input arrives; the role may have
// been revoked since the flow started.
func (b *Bot) requireAdmin(ctx context.Context, msg *telegram.Message, user *models.User) bool {
	if user.IsAdmin() {
		return true
	}
	b.Flows.Clear(user.TelegramID)
	b.reply(ctx, msg.Chat.ID, textForbidden, nil)
	return false
}

func (b *Bot) onEventName(ctx context.Context, msg *telegram.Message, user *models.User) {
	if !b.requireAdmin(ctx, msg, user) {
		return
	}
	chatID := msg.Chat.ID

	name, err := services.ValidateEventName(msg.Text)
	if err != nil {
		b.reply(ctx, chatID, "❌ "+html.EscapeString(validationReason(err))+"\n\nTry again or /cancel.", nil)
		return
	}
	b.Flows.Clear(user.TelegramID)

	event, err := b.Events.Create(ctx, name, "", user)
	switch {
	case errors.Is(err, services.ErrDeliveryFailed):
		b.reply(ctx, chatID, textTopicFailed, menu.Back(menu.ActionEventsMenu))
	case err != nil:
		b.internalError(ctx, chatID, "create event", err)
	default:
		b.reply(ctx, chatID, eventCreatedText(event), menu.Back(menu.ActionEventsMenu))
	}
}

func (b *Bot) onAssignRole(ctx context.Context, msg *telegram.Message, user *models.User, role string) {
	if !b.requireAdmin(ctx, msg, user) {
		return
	}
	chatID := msg.Chat.ID
	b.Flows.Clear(user.TelegramID)

	ident, err := services.ParseIdentifier(msg.Text)
	if err != nil {
		b.reply(ctx, chatID, "❌ "+html.EscapeString(validationReason(err)), menu.Back(menu.ActionUsersMenu))
		return
	}

	change, err := b.Users.AssignRole(ctx, user, ident, role)
	switch {
	case errors.Is(err, services.ErrNotFound):
		b.reply(ctx, chatID, userNotFoundText(ident), menu.Back(menu.ActionUsersMenu))
	case errors.Is(err, services.ErrAlreadyAdmin):
		b.reply(ctx, chatID, alreadyText(ident.String(), "an administrator"), menu.Back(menu.ActionUsersMenu))
	case errors.Is(err, services.ErrAlreadyManager):
		b.reply(ctx, chatID, alreadyText(ident.String(), "a manager"), menu.Back(menu.ActionUsersMenu))
	case err != nil:
		b.internalError(ctx, chatID, "assign role", err)
	default:
		b.reply(ctx, chatID, roleAssignedText(change), menu.Back(menu.ActionUsersMenu))
	}
}

func (b *Bot) onRemoveRole(ctx context.Context, msg *telegram.Message, user *models.User) {
	if !b.requireAdmin(ctx, msg, user) {
		return
	}
	chatID := msg.Chat.ID
	b.Flows.Clear(user.TelegramID)

	ident, err := services.ParseIdentifier(msg.Text)
	if err != nil {
		b.reply(ctx, chatID, "❌ "+html.EscapeString(validationReason(err)), menu.Back(menu.ActionUsersMenu))
		return
	}

	change, err := b.Users.RemoveRole(ctx, user, ident)
	switch {
	case errors.Is(err, services.ErrSelfDemotion):
		b.reply(ctx, chatID, textSelfDemotion, menu.Back(menu.ActionUsersMenu))
	case errors.Is(err, services.ErrNotFound):
		b.reply(ctx, chatID, userNotFoundText(ident), menu.Back(menu.ActionUsersMenu))
	case errors.Is(err, services.ErrValidation):
		b.reply(ctx, chatID, "ℹ️ "+html.EscapeString(validationReason(err)), menu.Back(menu.ActionUsersMenu))
	case err != nil:
		b.internalError(ctx, chatID, "remove role", err)
	default:
		b.reply(ctx, chatID, roleRemovedText(change), menu.Back(menu.ActionUsersMenu))
	}
}

func (b *Bot) onSettingValue(ctx context.Context, msg *telegram.Message, user *models.User, key string) {
	if !b.requireAdmin(ctx, msg, user) {
		return
	}
	chatID := msg.Chat.ID
	b.Flows.Clear(user.TelegramID)

	err := b.Settings.Set(ctx, key, msg.Text, &user.ID)
	switch {
	case errors.Is(err, services.ErrValidation):
		b.reply(ctx, chatID, "❌ "+html.EscapeString(validationReason(err)), menu.Back(menu.ActionSettingsMenu))
	case err != nil:
		b.internalError(ctx, chatID, "save setting", err)
	default:
		services.LogInfo(services.ModuleSetting, "update", "Setting "+key+" changed", &user.ID, nil)
		b.reply(ctx, chatID, textSettingSaved, menu.Back(menu.ActionSettingsMenu))
	}
}

func (b *Bot) onRatingComment(ctx context.Context, msg *telegram.Message, user *models.User, ratingID uint) {
	chatID := msg.Chat.ID
	b.Flows.Clear(user.TelegramID)

	if err := b.Ratings.AddComment(ctx, user, ratingID, msg.Text); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Uint("rating_id", ratingID).Msg("[Bot] Comment not saved")
		b.reply(ctx, chatID, textCommentFailed, nil)
		return
	}
	b.reply(ctx, chatID, textCommentSaved, nil)
}

func (b *Bot) onQuestion(ctx context.Context, msg *telegram.Message, user *models.User, eventID uint, text, photoID string) {
	chatID := msg.Chat.ID

	_, err := b.Feedback.Submit(ctx, services.Question{
		EventID:     eventID,
		Asker:       user,
		Text:        text,
		PhotoFileID: photoID,
	})
	switch {
	case errors.Is(err, services.ErrEventClosed), errors.Is(err, services.ErrNotFound):
		b.Flows.Clear(user.TelegramID)
		b.reply(ctx, chatID, textEventUnavailable, nil)
	case errors.Is(err, services.ErrValidation):
		b.reply(ctx, chatID, "❌ "+html.EscapeString(validationReason(err)), nil)
	case err != nil:
		if !errors.Is(err, services.ErrDeliveryFailed) {
			logger.Ctx(ctx).Error().Err(err).Uint("event_id", eventID).Msg("[Bot] Question failed")
		}
		b.reply(ctx, chatID, textQuestionFailed, nil)
	default:
		b.Flows.Clear(user.TelegramID)
		b.reply(ctx, chatID, textQuestionThanks, nil)
	}
}
