// Package menu owns the inline-button vocabulary: callback tokens and keyboards.
package menu

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Action is the closed set of things an inline button can ask for.
type Action int

const (
	ActionUnknown Action = iota

	// parameterised
	ActionSelectEvent  // event_{id}
	ActionRate         // rate_{id}_{value}
	ActionRateSelect   // rate_select_{id}
	ActionCloseEvent   // close_event_{id}
	ActionConfirmClose // confirm_close_{id}
	ActionCancelClose  // cancel_close_{id}
	ActionReportEvent  // report_event_{id}

	// static
	ActionConfirmCloseAll
	ActionCancelCloseAll
	ActionEventsMenu
	ActionUsersMenu
	ActionStatsMenu
	ActionSettingsMenu
	ActionMainMenu
	ActionCancel
	ActionEventsCreate
	ActionEventsList
	ActionEventsClose
	ActionEventsCloseAll
	ActionUsersList
	ActionUsersAddAdmin
	ActionUsersAddManager
	ActionUsersRemoveRole
	ActionStatsGeneral
	ActionStatsExportAll
	ActionStatsExportEvent
	ActionStatsAPIToken
	ActionSettingsNoEvents
	ActionSettingsWelcome
	ActionSettingsView
)

var staticTokens = map[string]Action{
	"confirm_close_all":  ActionConfirmCloseAll,
	"cancel_close_all":   ActionCancelCloseAll,
	"events_menu":        ActionEventsMenu,
	"users_menu":         ActionUsersMenu,
	"stats_menu":         ActionStatsMenu,
	"settings_menu":      ActionSettingsMenu,
	"main_menu":          ActionMainMenu,
	"cancel":             ActionCancel,
	"events_create":      ActionEventsCreate,
	"events_list":        ActionEventsList,
	"events_close":       ActionEventsClose,
	"events_close_all":   ActionEventsCloseAll,
	"users_list":         ActionUsersList,
	"users_add_admin":    ActionUsersAddAdmin,
	"users_add_manager":  ActionUsersAddManager,
	"users_remove_role":  ActionUsersRemoveRole,
	"stats_general":      ActionStatsGeneral,
	"stats_export_all":   ActionStatsExportAll,
	"stats_export_event": ActionStatsExportEvent,
	"stats_api_token":    ActionStatsAPIToken,
	"settings_no_events": ActionSettingsNoEvents,
	"settings_welcome":   ActionSettingsWelcome,
	"settings_view":      ActionSettingsView,
}

var staticData = func() map[Action]string {
	m := make(map[Action]string, len(staticTokens))
	for token, action := range staticTokens {
		m[action] = token
	}
	return m
}()

// Prefix order matters: "rate_select_" must be tried before "rate_".
var parameterised = []struct {
	prefix string
	action Action
}{
	{"rate_select_", ActionRateSelect},
	{"rate_", ActionRate},
	{"close_event_", ActionCloseEvent},
	{"confirm_close_", ActionConfirmClose},
	{"cancel_close_", ActionCancelClose},
	{"report_event_", ActionReportEvent},
	{"event_", ActionSelectEvent},
}

var ErrMalformedCallback = errors.New("malformed callback data")

// Callback is a parsed button press.
type Callback struct {
	Action  Action
	EventID uint
	Value   int // rating value for ActionRate
}

// ParseCallback decodes callback data. Unknown or malformed data yields ErrMalformedCallback.
func ParseCallback(data string) (Callback, error) {
	if action, ok := staticTokens[data]; ok {
		return Callback{Action: action}, nil
	}

	for _, p := range parameterised {
		rest, ok := strings.CutPrefix(data, p.prefix)
		if !ok {
			continue
		}
		if p.action == ActionRate {
			return parseRate(rest)
		}
		id, err := parseID(rest)
		if err != nil {
			return Callback{}, fmt.Errorf("%w: %q", ErrMalformedCallback, data)
		}
		return Callback{Action: p.action, EventID: id}, nil
	}

	return Callback{}, fmt.Errorf("%w: %q", ErrMalformedCallback, data)
}

func parseRate(rest string) (Callback, error) {
	idPart, valuePart, ok := strings.Cut(rest, "_")
	if !ok {
		return Callback{}, fmt.Errorf("%w: rate_%s", ErrMalformedCallback, rest)
	}
	id, err := parseID(idPart)
	if err != nil {
		return Callback{}, fmt.Errorf("%w: rate_%s", ErrMalformedCallback, rest)
	}
	value, err := strconv.Atoi(valuePart)
	if err != nil || value < 1 || value > 5 {
		return Callback{}, fmt.Errorf("%w: rate_%s", ErrMalformedCallback, rest)
	}
	return Callback{Action: ActionRate, EventID: id, Value: value}, nil
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrMalformedCallback
	}
	return uint(id), nil
}

// Data encodes the callback back to its wire form.
func (c Callback) Data() string {
	switch c.Action {
	case ActionSelectEvent:
		return fmt.Sprintf("event_%d", c.EventID)
	case ActionRate:
		return fmt.Sprintf("rate_%d_%d", c.EventID, c.Value)
	case ActionRateSelect:
		return fmt.Sprintf("rate_select_%d", c.EventID)
	case ActionCloseEvent:
		return fmt.Sprintf("close_event_%d", c.EventID)
	case ActionConfirmClose:
		return fmt.Sprintf("confirm_close_%d", c.EventID)
	case ActionCancelClose:
		return fmt.Sprintf("cancel_close_%d", c.EventID)
	case ActionReportEvent:
		return fmt.Sprintf("report_event_%d", c.EventID)
	}
	return staticData[c.Action]
}

// Token returns the wire form of a static action.
func Token(a Action) string {
	return Callback{Action: a}.Data()
}

// WithEvent returns the wire form of a parameterised action.
func WithEvent(a Action, eventID uint) string {
	return Callback{Action: a, EventID: eventID}.Data()
}
