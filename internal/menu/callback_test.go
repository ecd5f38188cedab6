package menu

import (
	"errors"
	"testing"

	"github.com/huangang/feedbackbot/internal/models"
	"github.com/huangang/feedbackbot/internal/telegram"
)

func TestParseCallback(t *testing.T) {
	tests := []struct {
		data     string
		expected Callback
	}{
		{"event_12", Callback{Action: ActionSelectEvent, EventID: 12}},
		{"rate_3_5", Callback{Action: ActionRate, EventID: 3, Value: 5}},
		{"rate_3_1", Callback{Action: ActionRate, EventID: 3, Value: 1}},
		{"rate_select_7", Callback{Action: ActionRateSelect, EventID: 7}},
		{"close_event_4", Callback{Action: ActionCloseEvent, EventID: 4}},
		{"confirm_close_4", Callback{Action: ActionConfirmClose, EventID: 4}},
		{"cancel_close_4", Callback{Action: ActionCancelClose, EventID: 4}},
		{"confirm_close_all", Callback{Action: ActionConfirmCloseAll}},
		{"cancel_close_all", Callback{Action: ActionCancelCloseAll}},
		{"report_event_9", Callback{Action: ActionReportEvent, EventID: 9}},
		{"events_menu", Callback{Action: ActionEventsMenu}},
		{"users_menu", Callback{Action: ActionUsersMenu}},
		{"stats_menu", Callback{Action: ActionStatsMenu}},
		{"settings_menu", Callback{Action: ActionSettingsMenu}},
		{"main_menu", Callback{Action: ActionMainMenu}},
		{"cancel", Callback{Action: ActionCancel}},
		{"events_close_all", Callback{Action: ActionEventsCloseAll}},
		{"stats_api_token", Callback{Action: ActionStatsAPIToken}},
		{"settings_welcome", Callback{Action: ActionSettingsWelcome}},
	}

	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			got, err := ParseCallback(tt.data)
			if err != nil {
				t.Fatalf("ParseCallback(%q) error = %v", tt.data, err)
			}
			if got != tt.expected {
				t.Errorf("ParseCallback(%q) = %+v, expected %+v", tt.data, got, tt.expected)
			}
			if round := got.Data(); round != tt.data {
				t.Errorf("Data() = %q, expected %q", round, tt.data)
			}
		})
	}
}

func TestParseCallback_Malformed(t *testing.T) {
	inputs := []string{
		"",
		"event_",
		"event_abc",
		"event_0",
		"event_-1",
		"rate_3",
		"rate_3_0",
		"rate_3_6",
		"rate_x_3",
		"rate_select_",
		"confirm_close_x",
		"events_unknown",
		"something_else",
	}

	for _, data := range inputs {
		_, err := ParseCallback(data)
		if !errors.Is(err, ErrMalformedCallback) {
			t.Errorf("ParseCallback(%q) error = %v, expected ErrMalformedCallback", data, err)
		}
	}
}

func TestEveryStaticTokenRoundTrips(t *testing.T) {
	for token, action := range staticTokens {
		if got := Token(action); got != token {
			t.Errorf("Token(%d) = %q, expected %q", action, got, token)
		}
	}
}

func TestRatingKeyboard(t *testing.T) {
	kb := Rating(8)
	if len(kb.InlineKeyboard) != 6 {
		t.Fatalf("rows = %d, expected 5 ratings + cancel", len(kb.InlineKeyboard))
	}
	for i := 0; i < 5; i++ {
		cb, err := ParseCallback(kb.InlineKeyboard[i][0].CallbackData)
		if err != nil {
			t.Fatalf("row %d: %v", i, err)
		}
		if cb.Action != ActionRate || cb.EventID != 8 || cb.Value != i+1 {
			t.Errorf("row %d = %+v", i, cb)
		}
	}
	if kb.InlineKeyboard[5][0].CallbackData != "cancel" {
		t.Errorf("last row = %q, expected cancel", kb.InlineKeyboard[5][0].CallbackData)
	}
}

func TestEventListKeyboards(t *testing.T) {
	events := []models.Event{{ID: 1, Name: "Opening"}, {ID: 2, Name: "Closing"}}

	tests := []struct {
		name   string
		kb     func([]models.Event) [][]string
		first  string
		cancel string
	}{
		{"ask", keyboardData(AskEvents), "event_1", "cancel"},
		{"close", keyboardData(CloseEvents), "close_event_1", "events_menu"},
		{"report", keyboardData(ReportEvents), "report_event_1", "stats_menu"},
		{"rate", keyboardData(RateEvents), "rate_select_1", "cancel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := tt.kb(events)
			if len(rows) != 3 {
				t.Fatalf("rows = %d, expected 3", len(rows))
			}
			if rows[0][0] != tt.first {
				t.Errorf("first = %q, expected %q", rows[0][0], tt.first)
			}
			if rows[2][0] != tt.cancel {
				t.Errorf("cancel = %q, expected %q", rows[2][0], tt.cancel)
			}
		})
	}
}

func keyboardData(build func([]models.Event) *telegram.InlineKeyboardMarkup) func([]models.Event) [][]string {
	return func(events []models.Event) [][]string {
		var out [][]string
		for _, row := range build(events).InlineKeyboard {
			var data []string
			for _, b := range row {
				data = append(data, b.CallbackData)
			}
			out = append(out, data)
		}
		return out
	}
}

func TestMainMenu_PerRole(t *testing.T) {
	if rows := MainMenu(models.RoleAdmin).Keyboard; len(rows) != 3 || rows[0][0].Text != ButtonEvents {
		t.Errorf("admin menu = %+v", rows)
	}
	if rows := MainMenu(models.RoleManager).Keyboard; len(rows) != 2 || rows[1][0].Text != ButtonStaffHelp {
		t.Errorf("manager menu = %+v", rows)
	}
	if rows := MainMenu(models.RoleUser).Keyboard; len(rows) != 3 || rows[1][0].Text != ButtonRateEvent {
		t.Errorf("user menu = %+v", rows)
	}
}

func TestShorten(t *testing.T) {
	long := "An extremely long event name that does not fit on one button at all"
	got := []rune(shorten(long))
	if len(got) != maxButtonTitleLen {
		t.Errorf("shorten() length = %d, expected %d", len(got), maxButtonTitleLen)
	}
	if shorten("Short") != "Short" {
		t.Error("short names must be kept as is")
	}
}
