package bot

import (
	"fmt"
	"html"
	"strings"

	"github.com/huangang/feedbackbot/internal/menu"
	"github.com/huangang/feedbackbot/internal/models"
	"github.com/huangang/feedbackbot/internal/services"
)

const (
	maxMessageLength = 4000
	usersPerGroup    = 10

	textForbidden        = "⛔ Insufficient rights."
	textHint             = "Use the menu buttons to navigate or /start to begin."
	textCancelled        = "❌ Cancelled."
	textNothingToCancel  = "Nothing to cancel."
	textNothingToSkip    = "Nothing to skip."
	textEventNotFound    = "❌ Event not found."
	textEventFinished    = "❌ This event has already finished."
	textEventUnavailable = "❌ The event is no longer available."
	textQuestionThanks   = "✅ Thank you for your question!\n\nIt has been passed to the organizers. You will get the answer in this chat."
	textQuestionFailed   = "❌ Error sending the question. Please try again later."
	textPhotoNoFlow      = "To ask a question with a photo, first press \"" + menu.ButtonAsk + "\" and choose an event."
	textChooseEvent      = "📅 Choose the event your question is about:"
	textNothingToRate    = "ℹ️ There are no events to rate right now."
	textChooseRate       = "⭐ Choose an event to rate:"
	textAlreadyRated     = "ℹ️ You have already rated this event."
	textNotClosedYet     = "ℹ️ This event is still running. You can rate it once it is over."
	textCommentSaved     = "✅ Thank you for your comment!"
	textRatingNoComment  = "✅ Rating saved without a comment."
	textCommentFailed    = "❌ Error saving the comment."
	textStartFirst       = "Use /start to begin."
	textInternalError    = "❌ Something went wrong. Please try again later."

	textEventsMenu   = "📅 <b>Event management</b>"
	textUsersMenu    = "👥 <b>User management</b>"
	textStatsMenu    = "📊 <b>Statistics and reports</b>"
	textSettingsMenu = "⚙️ <b>Bot settings</b>"
	textMainMenu     = "🏠 Main menu. Use the buttons below."

	textCreatePrompt      = "📝 Send the name of the new event (up to 128 characters).\n\nCancel: /cancel"
	textTopicFailed       = "❌ Could not create the forum topic.\nMake sure the bot is an administrator of the work group and may manage topics."
	textNoEvents          = "📭 No events yet."
	textNoActiveEvents    = "📭 There are no active events."
	textNoClosedEvents    = "📭 There are no finished events yet."
	textChooseClose       = "🔒 Choose the event to close:"
	textChooseReport      = "📄 Choose the event for the report:"
	textAlreadyClosed     = "ℹ️ The event is already closed."
	textAddAdminPrompt    = "👑 Send the @username or numeric ID of the new administrator.\n\nCancel: /cancel"
	textAddManagerPrompt  = "👔 Send the @username or numeric ID of the new manager.\n\nCancel: /cancel"
	textRemoveRolePrompt  = "➖ Send the @username or numeric ID of the staff member to demote.\n\nCancel: /cancel"
	textSelfDemotion      = "❌ You cannot remove your own role."
	textReportWait        = "⏳ Generating the report, please wait..."
	textReportDone        = "✅ Report generated!"
	textReportFailed      = "❌ Failed to generate the report."
	textSettingSaved      = "✅ Setting saved."
	textAPIDisabled       = "ℹ️ The stats API is disabled."
	textPromoteUsage      = "Reply to a member's message with /promote to make them a manager."
	textPromoteAdminsOnly = "⛔ Only administrators can promote staff."
	textPromoteBot        = "❌ Bots cannot be promoted."
	textPromotePrivate    = "Use /promote in the work group as a reply to the member's message."
	textAnswerSent        = "✅ Answer sent to the user."
	textAnswerFailed      = "❌ Error sending the answer. The user may have blocked the bot."
	textAnswerForbidden   = "⛔ Insufficient rights to answer questions."
)


func welcomeText(role, greeting string) string {
	switch role {
	case models.RoleAdmin:
		return "👋 Welcome, administrator!\n\nUse the menu below to manage the bot."
	case models.RoleManager:
		return "👋 Welcome, manager!\n\nYou can ask questions here and answer attendees in the work group."
	}
	return greeting
}

func helpText(role string) string {
	switch role {
	case models.RoleAdmin:
		return "📖 <b>Administrator help</b>\n\n" +
			"📅 <b>Events</b> - create and close events\n" +
			"👥 <b>Users</b> - assign staff roles\n" +
			"📊 <b>Statistics</b> - reports and analytics\n" +
			"⚙️ <b>Settings</b> - bot texts\n\n" +
			"❓ <b>Ask a question</b> - ask during an event\n" +
			"⭐ <b>Rate</b> - rate a finished event\n\n" +
			"<i>💡 Administrators have every manager right as well.</i>"
	case models.RoleManager:
		return "📖 <b>Manager help</b>\n\n" +
			"❓ <b>Ask a question</b> - ask during an event\n" +
			"⭐ <b>Rate</b> - rate a finished event\n\n" +
			"In the work group, answer attendees by replying to their question."
	}
	return "📖 <b>Help</b>\n\n" +
		"❓ <b>Ask a question</b> - ask during an active event\n" +
		"⭐ <b>Rate an event</b> - rate a finished event\n\n" +
		"Just press the buttons and follow the instructions!"
}

func selectedEventText(e *models.Event) string {
	return fmt.Sprintf("❓ You chose the event: <b>%s</b>\n\nWrite your question or send a photo with a caption.\n\nCancel: /cancel", html.EscapeString(e.Name))
}

func ratePromptText(e *models.Event) string {
	return fmt.Sprintf("⭐ Rate the event \"%s\":", html.EscapeString(e.Name))
}

func ratedText(value int) string {
	return fmt.Sprintf("✅ Thank you for your rating!\n\nYour rating: %s\n\nWrite a comment if you like, or send /skip.", menu.Stars(value))
}

func eventCreatedText(e *models.Event) string {
	return fmt.Sprintf("✅ Event created!\n\n📅 <b>%s</b>\n🆔 ID: %d\n\nQuestions will appear in its own topic in the work group.", html.EscapeString(e.Name), e.ID)
}

func confirmCloseText(e *models.Event) string {
	return fmt.Sprintf("🔒 Close the event \"<b>%s</b>\"?\n\nQuestion collection will stop and every attendee who asked a question will be asked to rate it.", html.EscapeString(e.Name))
}

func confirmCloseAllText(n int) string {
	return fmt.Sprintf("🔒 Close all %d active events?", n)
}

func closedText(res *services.CloseResult) string {
	return fmt.Sprintf("✅ Event \"<b>%s</b>\" closed.\n\n📊 Questions: %d\n📨 Rating requests sent: %d",
		html.EscapeString(res.Event.Name), res.Questions, res.RatingRequests)
}

func closedAllText(results []services.CloseResult, failed bool) string {
	requests := 0
	for _, r := range results {
		requests += r.RatingRequests
	}
	text := fmt.Sprintf("✅ Closed events: %d\n📨 Rating requests sent: %d", len(results), requests)
	if failed {
		text += "\n\n⚠️ Some events could not be closed, see the logs."
	}
	return text
}

func eventListText(summaries []services.EventSummary) string {
	var b strings.Builder
	b.WriteString("📋 <b>Events</b>\n")
	for i, s := range summaries {
		line := summaryLine(&s)
		if b.Len()+len(line) > maxMessageLength {
			fmt.Fprintf(&b, "\n... and %d more", len(summaries)-i)
			break
		}
		b.WriteString(line)
	}
	return b.String()
}

func summaryLine(s *services.EventSummary) string {
	icon := "🟢"
	if !s.IsActive() {
		icon = "🔴"
	}
	rating := "no ratings"
	if s.Ratings > 0 {
		rating = fmt.Sprintf("⭐ %.2f (%d)", s.AvgRating, s.Ratings)
	}
	return fmt.Sprintf("\n%s <b>%s</b> (ID %d)\n    ❓ %d questions, ✅ %d answered, %s\n",
		icon, html.EscapeString(s.Name), s.ID, s.Questions, s.Answered, rating)
}

func usersText(groups *services.UsersByRole) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👥 <b>Users</b> (%d)\n", groups.Total())
	writeUserGroup(&b, "👑 Administrators", groups.Admins, 0)
	writeUserGroup(&b, "👔 Managers", groups.Managers, 0)
	writeUserGroup(&b, "👤 Users", groups.Users, usersPerGroup)
	return b.String()
}

func writeUserGroup(b *strings.Builder, title string, users []models.User, limit int) {
	fmt.Fprintf(b, "\n<b>%s</b> (%d)\n", title, len(users))
	if len(users) == 0 {
		b.WriteString("  -\n")
		return
	}
	shown := users
	if limit > 0 && len(users) > limit {
		shown = users[:limit]
	}
	for _, u := range shown {
		fmt.Fprintf(b, "  • %s (%s, ID <code>%d</code>)\n", html.EscapeString(u.DisplayName()), html.EscapeString(u.Handle()), u.TelegramID)
	}
	if len(shown) < len(users) {
		fmt.Fprintf(b, "  ... and %d more\n", len(users)-len(shown))
	}
}

func roleAssignedText(change *services.RoleChange) string {
	role := "a manager"
	if change.User.Role == models.RoleAdmin {
		role = "an administrator"
	}
	return fmt.Sprintf("✅ %s is now %s.", html.EscapeString(change.User.DisplayName()), role)
}

func roleRemovedText(change *services.RoleChange) string {
	return fmt.Sprintf("✅ %s is no longer staff.", html.EscapeString(change.User.DisplayName()))
}

func userNotFoundText(ident services.Identifier) string {
	return fmt.Sprintf("❌ User %s not found.\nThey must send /start to the bot first, or use their numeric ID.", html.EscapeString(ident.String()))
}

func alreadyText(name, role string) string {
	return fmt.Sprintf("ℹ️ %s is already %s.", html.EscapeString(name), role)
}

func generalStatsText(st *services.GeneralStats) string {
	var b strings.Builder
	b.WriteString("📊 <b>General statistics</b>\n\n")
	fmt.Fprintf(&b, "📅 Events: %d (🟢 %d active, 🔴 %d closed)\n", st.TotalEvents, st.ActiveEvents, st.ClosedEvents)
	fmt.Fprintf(&b, "❓ Questions: %d\n", st.TotalFeedbacks)
	fmt.Fprintf(&b, "⭐ Ratings: %d\n", st.TotalRatings)
	if st.TotalRatings > 0 {
		fmt.Fprintf(&b, "📈 Average rating: %.2f⭐\n", st.AvgRating)
	} else {
		b.WriteString("📈 Average rating: -\n")
	}
	fmt.Fprintf(&b, "👥 Users: %d (👔 %d managers, 👑 %d admins)\n", st.TotalUsers, st.TotalManagers, st.TotalAdmins)
	if len(st.TopEvents) > 0 {
		b.WriteString("\n🏆 <b>Top events</b>\n")
		for i, e := range st.TopEvents {
			fmt.Fprintf(&b, "%d. %s: %.2f⭐ (%d ratings)\n", i+1, html.EscapeString(e.Name), e.AvgRating, e.Count)
		}
	}
	return b.String()
}

func settingPromptText(label, current string) string {
	return fmt.Sprintf("📝 <b>%s</b>\n\nCurrent text:\n\n<i>%s</i>\n\nSend the new text.\n\nCancel: /cancel", html.EscapeString(label), html.EscapeString(current))
}

func settingsText(views []services.SettingView) string {
	var b strings.Builder
	b.WriteString("⚙️ <b>Current settings</b>\n")
	for _, v := range views {
		fmt.Fprintf(&b, "\n<b>%s</b>\n<i>%s</i>\n", html.EscapeString(v.Label), html.EscapeString(v.Value))
	}
	return b.String()
}

func apiTokenText(token string, hours int) string {
	return fmt.Sprintf("🔑 <b>Stats API token</b> (valid %d h)\n\n<code>%s</code>\n\nSend it as <code>Authorization: Bearer &lt;token&gt;</code>.", hours, html.EscapeString(token))
}

func reportCaption(eventID uint) string {
	if eventID == 0 {
		return "📊 Report for all events"
	}
	return fmt.Sprintf("📊 Report for event #%d", eventID)
}
