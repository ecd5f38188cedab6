package bot

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/huangang/feedbackbot/internal/menu"
	"github.com/huangang/feedbackbot/internal/models"
	"github.com/huangang/feedbackbot/internal/services"
	"github.com/huangang/feedbackbot/internal/telegram"
	"github.com/huangang/feedbackbot/pkg/logger"
)

func (b *Bot) onEventsList(ctx context.Context, cq *telegram.CallbackQuery) {
	summaries, err := b.Events.ListSummaries(ctx)
	if err != nil {
		b.internalError(ctx, cq.From.ID, "list events", err)
		return
	}
	if len(summaries) == 0 {
		b.edit(ctx, cq, textNoEvents, menu.Back(menu.ActionEventsMenu))
		return
	}
	b.edit(ctx, cq, eventListText(summaries), menu.Back(menu.ActionEventsMenu))
}

func (b *Bot) onEventsClose(ctx context.Context, cq *telegram.CallbackQuery) {
	events, err := b.Events.ListActive(ctx)
	if err != nil {
		b.internalError(ctx, cq.From.ID, "list active events", err)
		return
	}
	if len(events) == 0 {
		b.edit(ctx, cq, textNoActiveEvents, menu.Back(menu.ActionEventsMenu))
		return
	}
	b.edit(ctx, cq, textChooseClose, menu.CloseEvents(events))
}

func (b *Bot) onCloseEvent(ctx context.Context, cq *telegram.CallbackQuery, eventID uint) {
	event, err := b.Events.Get(ctx, eventID)
	if errors.Is(err, services.ErrNotFound) {
		b.edit(ctx, cq, textEventNotFound, menu.Back(menu.ActionEventsMenu))
		return
	}
	if err != nil {
		b.internalError(ctx, cq.From.ID, "close event", err)
		return
	}
	if !event.IsActive() {
		b.edit(ctx, cq, textAlreadyClosed, menu.Back(menu.ActionEventsMenu))
		return
	}
	b.edit(ctx, cq, confirmCloseText(event), menu.ConfirmClose(event.ID))
}

func (b *Bot) onConfirmClose(ctx context.Context, cq *telegram.CallbackQuery, user *models.User, eventID uint) {
	res, err := b.Events.Close(ctx, eventID, user)
	switch {
	case errors.Is(err, services.ErrEventClosed):
		b.edit(ctx, cq, textAlreadyClosed, menu.Back(menu.ActionEventsMenu))
	case errors.Is(err, services.ErrNotFound):
		b.edit(ctx, cq, textEventNotFound, menu.Back(menu.ActionEventsMenu))
	case err != nil:
		b.internalError(ctx, cq.From.ID, "confirm close", err)
	default:
		b.edit(ctx, cq, closedText(res), menu.Back(menu.ActionEventsMenu))
	}
}

func (b *Bot) onEventsCloseAll(ctx context.Context, cq *telegram.CallbackQuery) {
	events, err := b.Events.ListActive(ctx)
	if err != nil {
		b.internalError(ctx, cq.From.ID, "list active events", err)
		return
	}
	if len(events) == 0 {
		b.edit(ctx, cq, textNoActiveEvents, menu.Back(menu.ActionEventsMenu))
		return
	}
	b.edit(ctx, cq, confirmCloseAllText(len(events)), menu.ConfirmCloseAll())
}

func (b *Bot) onConfirmCloseAll(ctx context.Context, cq *telegram.CallbackQuery, user *models.User) {
	results, err := b.Events.CloseAllActive(ctx, user)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("[Bot] Close all finished with errors")
	}
	b.edit(ctx, cq, closedAllText(results, err != nil), menu.Back(menu.ActionEventsMenu))
}

func (b *Bot) onUsersList(ctx context.Context, cq *telegram.CallbackQuery) {
	groups, err := b.Users.ListByRole(ctx)
	if err != nil {
		b.internalError(ctx, cq.From.ID, "list users", err)
		return
	}
	b.edit(ctx, cq, usersText(groups), menu.Back(menu.ActionUsersMenu))
}

func (b *Bot) onStatsGeneral(ctx context.Context, cq *telegram.CallbackQuery) {
	stats, err := b.Analytics.GeneralStats(ctx)
	if err != nil {
		b.internalError(ctx, cq.From.ID, "general stats", err)
		return
	}
	b.edit(ctx, cq, generalStatsText(stats), menu.Back(menu.ActionStatsMenu))
}

func (b *Bot) onStatsExportEvent(ctx context.Context, cq *telegram.CallbackQuery) {
	events, err := b.Events.ListClosed(ctx)
	if err != nil {
		b.internalError(ctx, cq.From.ID, "list closed events", err)
		return
	}
	if len(events) == 0 {
		b.edit(ctx, cq, textNoClosedEvents, menu.Back(menu.ActionStatsMenu))
		return
	}
	b.edit(ctx, cq, textChooseReport, menu.ReportEvents(events))
}

// sendReport shows a placeholder, renders the PDF, sends it and removes the local file.
func (b *Bot) sendReport(ctx context.Context, cq *telegram.CallbackQuery, user *models.User, eventID uint) {
	b.edit(ctx, cq, textReportWait, nil)

	path, err := b.Reports.Generate(ctx, eventID)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Uint("event_id", eventID).Msg("[Bot] Report generation failed")
		b.edit(ctx, cq, textReportFailed, menu.Back(menu.ActionStatsMenu))
		return
	}
	defer os.Remove(path)

	f, err := os.Open(path)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("path", path).Msg("[Bot] Report file unreadable")
		b.edit(ctx, cq, textReportFailed, menu.Back(menu.ActionStatsMenu))
		return
	}
	defer f.Close()

	name := services.ReportFileName(eventID, time.Now())
	if err := b.Messenger.SendDocument(ctx, cq.From.ID, name, f, reportCaption(eventID)); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("file", name).Msg("[Bot] Report upload failed")
		b.edit(ctx, cq, textReportFailed, menu.Back(menu.ActionStatsMenu))
		return
	}

	services.LogInfo(services.ModuleReport, "export", "Report "+name+" sent", &user.ID, map[string]interface{}{"event_id": eventID})
	b.edit(ctx, cq, textReportDone, menu.Back(menu.ActionStatsMenu))
}

func (b *Bot) onAPIToken(ctx context.Context, cq *telegram.CallbackQuery, user *models.User) {
	if b.Tokens == nil {
		b.edit(ctx, cq, textAPIDisabled, menu.Back(menu.ActionStatsMenu))
		return
	}
	token, err := b.Tokens(user)
	if err != nil {
		b.internalError(ctx, cq.From.ID, "issue token", err)
		return
	}
	b.edit(ctx, cq, apiTokenText(token, b.TokenTTL), menu.Back(menu.ActionStatsMenu))
}

func (b *Bot) onEditSetting(ctx context.Context, cq *telegram.CallbackQuery, user *models.User, key string) {
	for _, v := range b.Settings.All(ctx) {
		if v.Key == key {
			b.Flows.Set(user.TelegramID, services.Flow{Kind: services.FlowEditingSetting, SettingKey: key})
			b.edit(ctx, cq, settingPromptText(v.Label, v.Value), nil)
			return
		}
	}
	logger.Ctx(ctx).Warn().Str("key", key).Msg("[Bot] Unknown setting")
}
