package menu

import (
	"strings"

	"github.com/huangang/feedbackbot/internal/models"
	"github.com/huangang/feedbackbot/internal/telegram"
)

// Reply-keyboard labels. Incoming private text is matched against these literally.
const (
	ButtonAsk         = "❓ Ask a question"
	ButtonRateEvent   = "⭐ Rate an event"
	ButtonRate        = "⭐ Rate"
	ButtonHelp        = "ℹ️ Help"
	ButtonStaffHelp   = "📋 Help"
	ButtonEvents      = "📅 Events"
	ButtonUsers       = "👥 Users"
	ButtonStats       = "📊 Statistics"
	ButtonSettings    = "⚙️ Settings"
	buttonBack        = "↩️ Back"
	buttonCancel      = "❌ Cancel"
	buttonYes         = "✅ Yes"
	buttonNo          = "❌ No"
	maxButtonTitleLen = 48
)

func replyKeyboard(rows ...[]string) *telegram.ReplyKeyboardMarkup {
	kb := &telegram.ReplyKeyboardMarkup{ResizeKeyboard: true, IsPersistent: true}
	for _, row := range rows {
		buttons := make([]telegram.KeyboardButton, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, telegram.KeyboardButton{Text: label})
		}
		kb.Keyboard = append(kb.Keyboard, buttons)
	}
	return kb
}

// MainMenu returns the persistent reply keyboard for a role.
func MainMenu(role string) *telegram.ReplyKeyboardMarkup {
	switch role {
	case models.RoleAdmin:
		return replyKeyboard(
			[]string{ButtonEvents, ButtonUsers},
			[]string{ButtonStats, ButtonSettings},
			[]string{ButtonAsk, ButtonRate},
		)
	case models.RoleManager:
		return replyKeyboard(
			[]string{ButtonAsk, ButtonRate},
			[]string{ButtonStaffHelp},
		)
	default:
		return replyKeyboard(
			[]string{ButtonAsk},
			[]string{ButtonRateEvent},
			[]string{ButtonHelp},
		)
	}
}

func button(text, data string) telegram.InlineKeyboardButton {
	return telegram.InlineKeyboardButton{Text: text, CallbackData: data}
}

func column(buttons ...telegram.InlineKeyboardButton) *telegram.InlineKeyboardMarkup {
	kb := &telegram.InlineKeyboardMarkup{}
	for _, b := range buttons {
		kb.InlineKeyboard = append(kb.InlineKeyboard, []telegram.InlineKeyboardButton{b})
	}
	return kb
}

func EventsMenu() *telegram.InlineKeyboardMarkup {
	return column(
		button("➕ Create event", Token(ActionEventsCreate)),
		button("📋 List events", Token(ActionEventsList)),
		button("🔒 Close an event", Token(ActionEventsClose)),
		button("🔒 Close all", Token(ActionEventsCloseAll)),
		button(buttonBack, Token(ActionMainMenu)),
	)
}

func UsersMenu() *telegram.InlineKeyboardMarkup {
	return column(
		button("📋 List users", Token(ActionUsersList)),
		button("➕ Add admin", Token(ActionUsersAddAdmin)),
		button("➕ Add manager", Token(ActionUsersAddManager)),
		button("➖ Remove role", Token(ActionUsersRemoveRole)),
		button(buttonBack, Token(ActionMainMenu)),
	)
}

func StatsMenu() *telegram.InlineKeyboardMarkup {
	return column(
		button("📊 General statistics", Token(ActionStatsGeneral)),
		button("📄 Export PDF (all)", Token(ActionStatsExportAll)),
		button("📄 Export by event", Token(ActionStatsExportEvent)),
		button("🔑 API token", Token(ActionStatsAPIToken)),
		button(buttonBack, Token(ActionMainMenu)),
	)
}

func SettingsMenu() *telegram.InlineKeyboardMarkup {
	return column(
		button("📝 \"No events\" message", Token(ActionSettingsNoEvents)),
		button("📝 Welcome message", Token(ActionSettingsWelcome)),
		button("👁 View all settings", Token(ActionSettingsView)),
		button(buttonBack, Token(ActionMainMenu)),
	)
}

// Back is a single button returning to the given menu.
func Back(a Action) *telegram.InlineKeyboardMarkup {
	return column(button(buttonBack, Token(a)))
}

func eventList(events []models.Event, icon string, action Action, cancel Action) *telegram.InlineKeyboardMarkup {
	buttons := make([]telegram.InlineKeyboardButton, 0, len(events)+1)
	for _, e := range events {
		buttons = append(buttons, button(icon+" "+shorten(e.Name), WithEvent(action, e.ID)))
	}
	buttons = append(buttons, button(buttonCancel, Token(cancel)))
	return column(buttons...)
}

// AskEvents lists active events a question can be attached to.
func AskEvents(events []models.Event) *telegram.InlineKeyboardMarkup {
	return eventList(events, "📅", ActionSelectEvent, ActionCancel)
}

func CloseEvents(events []models.Event) *telegram.InlineKeyboardMarkup {
	return eventList(events, "🔒", ActionCloseEvent, ActionEventsMenu)
}

func ReportEvents(events []models.Event) *telegram.InlineKeyboardMarkup {
	return eventList(events, "📄", ActionReportEvent, ActionStatsMenu)
}

func RateEvents(events []models.Event) *telegram.InlineKeyboardMarkup {
	return eventList(events, "⭐", ActionRateSelect, ActionCancel)
}

// Rating shows one button per star count for eventID.
func Rating(eventID uint) *telegram.InlineKeyboardMarkup {
	buttons := make([]telegram.InlineKeyboardButton, 0, models.MaxRating+1)
	for v := models.MinRating; v <= models.MaxRating; v++ {
		cb := Callback{Action: ActionRate, EventID: eventID, Value: v}
		buttons = append(buttons, button(Stars(v), cb.Data()))
	}
	buttons = append(buttons, button(buttonCancel, Token(ActionCancel)))
	return column(buttons...)
}

func ConfirmClose(eventID uint) *telegram.InlineKeyboardMarkup {
	return confirm(WithEvent(ActionConfirmClose, eventID), WithEvent(ActionCancelClose, eventID))
}

func ConfirmCloseAll() *telegram.InlineKeyboardMarkup {
	return confirm(Token(ActionConfirmCloseAll), Token(ActionCancelCloseAll))
}

func confirm(yes, no string) *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{button(buttonYes, yes), button(buttonNo, no)},
	}}
}

// Stars renders n star glyphs.
func Stars(n int) string {
	if n < 0 {
		n = 0
	}
	return strings.Repeat("⭐", n)
}

func shorten(s string) string {
	r := []rune(s)
	if len(r) <= maxButtonTitleLen {
		return s
	}
	return string(r[:maxButtonTitleLen-1]) + "…"
}
