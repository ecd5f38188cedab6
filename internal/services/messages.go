package services

import (
	"fmt"
	"html"
	"strings"

	"github.com/huangang/feedbackbot/internal/models"
)

// Outbound texts produced by the services. All of them are sent in HTML parse mode,
// so anything user-supplied goes through html.EscapeString.

const photoQuestionPlaceholder = "Question with photo"


func announcementText(e *models.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📅 <b>%s</b>\n\n", html.EscapeString(e.Name))
	if e.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", html.EscapeString(e.Description))
	}
	b.WriteString("Questions from attendees will appear in this topic.\nReply to a question to answer it.")
	return b.String()
}

func questionText(f *models.Feedback, asker *models.User, e *models.Event) string {
	return fmt.Sprintf("❓ <b>New question #%d</b>\n\n👤 %s (%s)\n📅 Event: %s\n\n💬 Question:\n%s",
		f.ID, html.EscapeString(asker.DisplayName()), html.EscapeString(asker.Handle()), html.EscapeString(e.Name), html.EscapeString(f.MessageText))
}

func answerText(manager *models.User, e *models.Event, text string) string {
	return fmt.Sprintf("💬 <b>Answer to your question:</b>\n👔 From: %s\n📅 Event: %s\n\n%s",
		html.EscapeString(manager.DisplayName()), html.EscapeString(e.Name), html.EscapeString(text))
}

func closingSummaryText(questions int64) string {
	return fmt.Sprintf("🔒 <b>Question collection finished!</b>\n\n📊 Total questions: %d", questions)
}

func ratingRequestText(e *models.Event) string {
	return fmt.Sprintf("📊 Event \"%s\" has ended!\n\nPlease rate it:", html.EscapeString(e.Name))
}

func roleChangedText(role string) string {
	switch role {
	case models.RoleAdmin:
		return "🎉 You have been made an <b>administrator</b>.\nSend /start to open the admin menu."
	case models.RoleManager:
		return "🎉 You have been made a <b>manager</b>.\nReply to questions in the work group to answer them. Send /start to refresh the menu."
	}
	return "ℹ️ Your staff role has been removed.\nSend /start to refresh the menu."
}
