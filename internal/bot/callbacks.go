package bot

import (
	"context"
	"errors"

	"github.com/huangang/feedbackbot/internal/menu"
	"github.com/huangang/feedbackbot/internal/models"
	"github.com/huangang/feedbackbot/internal/services"
	"github.com/huangang/feedbackbot/internal/telegram"
	"github.com/huangang/feedbackbot/pkg/logger"
)

// adminOnly lists the actions that require the admin tier.
var adminOnly = map[menu.Action]bool{
	menu.ActionCloseEvent:       true,
	menu.ActionConfirmClose:     true,
	menu.ActionCancelClose:      true,
	menu.ActionReportEvent:      true,
	menu.ActionConfirmCloseAll:  true,
	menu.ActionCancelCloseAll:   true,
	menu.ActionEventsMenu:       true,
	menu.ActionUsersMenu:        true,
	menu.ActionStatsMenu:        true,
	menu.ActionSettingsMenu:     true,
	menu.ActionEventsCreate:     true,
	menu.ActionEventsList:       true,
	menu.ActionEventsClose:      true,
	menu.ActionEventsCloseAll:   true,
	menu.ActionUsersList:        true,
	menu.ActionUsersAddAdmin:    true,
	menu.ActionUsersAddManager:  true,
	menu.ActionUsersRemoveRole:  true,
	menu.ActionStatsGeneral:     true,
	menu.ActionStatsExportAll:   true,
	menu.ActionStatsExportEvent: true,
	menu.ActionStatsAPIToken:    true,
	menu.ActionSettingsNoEvents: true,
	menu.ActionSettingsWelcome:  true,
	menu.ActionSettingsView:     true,
}

func (b *Bot) handleCallback(ctx context.Context, cq *telegram.CallbackQuery) {
	cb, err := menu.ParseCallback(cq.Data)
	if err != nil {
		logger.Ctx(ctx).Debug().Str("data", cq.Data).Msg("[Bot] Ignoring unknown callback")
		b.answer(ctx, cq, "", false)
		return
	}

	tier := services.TierRegistered
	if adminOnly[cb.Action] {
		tier = services.TierAdmin
	}
	user, err := b.Access.Authorize(ctx, identityOf(&cq.From), tier)
	if errors.Is(err, services.ErrForbidden) {
		b.answer(ctx, cq, textForbidden, true)
		return
	}
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Int64("telegram_id", cq.From.ID).Msg("[Bot] Authorization failed")
		b.answer(ctx, cq, textInternalError, true)
		return
	}
	b.answer(ctx, cq, "", false)

	switch cb.Action {
	case menu.ActionSelectEvent:
		b.onSelectEvent(ctx, cq, user, cb.EventID)
	case menu.ActionRateSelect:
		b.onRateSelect(ctx, cq, cb.EventID)
	case menu.ActionRate:
		b.onRate(ctx, cq, user, cb.EventID, cb.Value)
	case menu.ActionCancel:
		b.Flows.Clear(user.TelegramID)
		b.edit(ctx, cq, textCancelled, nil)
	case menu.ActionMainMenu:
		b.Flows.Clear(user.TelegramID)
		b.edit(ctx, cq, textMainMenu, nil)

	case menu.ActionEventsMenu, menu.ActionCancelClose, menu.ActionCancelCloseAll:
		b.edit(ctx, cq, textEventsMenu, menu.EventsMenu())
	case menu.ActionUsersMenu:
		b.Flows.Clear(user.TelegramID)
		b.edit(ctx, cq, textUsersMenu, menu.UsersMenu())
	case menu.ActionStatsMenu:
		b.edit(ctx, cq, textStatsMenu, menu.StatsMenu())
	case menu.ActionSettingsMenu:
		b.Flows.Clear(user.TelegramID)
		b.edit(ctx, cq, textSettingsMenu, menu.SettingsMenu())

	case menu.ActionEventsCreate:
		b.Flows.Set(user.TelegramID, services.Flow{Kind: services.FlowCreatingEvent})
		b.edit(ctx, cq, textCreatePrompt, nil)
	case menu.ActionEventsList:
		b.onEventsList(ctx, cq)
	case menu.ActionEventsClose:
		b.onEventsClose(ctx, cq)
	case menu.ActionCloseEvent:
		b.onCloseEvent(ctx, cq, cb.EventID)
	case menu.ActionConfirmClose:
		b.onConfirmClose(ctx, cq, user, cb.EventID)
	case menu.ActionEventsCloseAll:
		b.onEventsCloseAll(ctx, cq)
	case menu.ActionConfirmCloseAll:
		b.onConfirmCloseAll(ctx, cq, user)

	case menu.ActionUsersList:
		b.onUsersList(ctx, cq)
	case menu.ActionUsersAddAdmin:
		b.Flows.Set(user.TelegramID, services.Flow{Kind: services.FlowAddingAdmin})
		b.edit(ctx, cq, textAddAdminPrompt, nil)
	case menu.ActionUsersAddManager:
		b.Flows.Set(user.TelegramID, services.Flow{Kind: services.FlowAddingManager})
		b.edit(ctx, cq, textAddManagerPrompt, nil)
	case menu.ActionUsersRemoveRole:
		b.Flows.Set(user.TelegramID, services.Flow{Kind: services.FlowRemovingRole})
		b.edit(ctx, cq, textRemoveRolePrompt, nil)

	case menu.ActionStatsGeneral:
		b.onStatsGeneral(ctx, cq)
	case menu.ActionStatsExportAll:
		b.sendReport(ctx, cq, user, 0)
	case menu.ActionStatsExportEvent:
		b.onStatsExportEvent(ctx, cq)
	case menu.ActionReportEvent:
		b.sendReport(ctx, cq, user, cb.EventID)
	case menu.ActionStatsAPIToken:
		b.onAPIToken(ctx, cq, user)

	case menu.ActionSettingsNoEvents:
		b.onEditSetting(ctx, cq, user, models.SettingNoEventsMessage)
	case menu.ActionSettingsWelcome:
		b.onEditSetting(ctx, cq, user, models.SettingWelcomeMessage)
	case menu.ActionSettingsView:
		b.edit(ctx, cq, settingsText(b.Settings.All(ctx)), menu.Back(menu.ActionSettingsMenu))
	}
}

func (b *Bot) onSelectEvent(ctx context.Context, cq *telegram.CallbackQuery, user *models.User, eventID uint) {
	event, err := b.Events.Get(ctx, eventID)
	if errors.Is(err, services.ErrNotFound) {
		b.edit(ctx, cq, textEventNotFound, nil)
		return
	}
	if err != nil {
		b.internalError(ctx, cq.From.ID, "select event", err)
		return
	}
	if !event.IsActive() {
		b.edit(ctx, cq, textEventFinished, nil)
		return
	}
	b.Flows.Set(user.TelegramID, services.Flow{Kind: services.FlowQuestion, EventID: event.ID})
	b.edit(ctx, cq, selectedEventText(event), nil)
}

func (b *Bot) onRateSelect(ctx context.Context, cq *telegram.CallbackQuery, eventID uint) {
	event, err := b.Events.Get(ctx, eventID)
	if errors.Is(err, services.ErrNotFound) {
		b.edit(ctx, cq, textEventNotFound, nil)
		return
	}
	if err != nil {
		b.internalError(ctx, cq.From.ID, "rate select", err)
		return
	}
	b.edit(ctx, cq, ratePromptText(event), menu.Rating(event.ID))
}

func (b *Bot) onRate(ctx context.Context, cq *telegram.CallbackQuery, user *models.User, eventID uint, value int) {
	rating, err := b.Ratings.Rate(ctx, user, eventID, value)
	switch {
	case errors.Is(err, services.ErrAlreadyRated):
		b.edit(ctx, cq, textAlreadyRated, nil)
	case errors.Is(err, services.ErrEventNotClosed):
		b.edit(ctx, cq, textNotClosedYet, nil)
	case errors.Is(err, services.ErrNotFound):
		b.edit(ctx, cq, textEventNotFound, nil)
	case err != nil:
		b.internalError(ctx, cq.From.ID, "rate", err)
	default:
		b.Flows.Set(user.TelegramID, services.Flow{Kind: services.FlowRatingComment, RatingID: rating.ID})
		b.edit(ctx, cq, ratedText(value), nil)
	}
}
