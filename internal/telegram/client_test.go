package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(ClientConfig{Token: "123:secret", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestNewClient_RequiresToken(t *testing.T) {
	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Error("NewClient() should fail without a token")
	}
}

func TestSendMessage_EncodesThreadAndMarkup(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bot123:secret/sendMessage" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		json.NewDecoder(r.Body).Decode(&got)
		io.WriteString(w, `{"ok":true,"result":{"message_id":77,"chat":{"id":-100,"type":"supergroup"}}}`)
	})

	markup := &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{{{Text: "Go", CallbackData: "main_menu"}}}}
	msg, err := c.SendMessage(context.Background(), SendMessageParams{
		ChatID:          -100,
		MessageThreadID: 9,
		Text:            "hello",
		ReplyMarkup:     markup,
	})
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if msg.MessageID != 77 {
		t.Errorf("MessageID = %d, expected 77", msg.MessageID)
	}
	if got["message_thread_id"] != float64(9) {
		t.Errorf("message_thread_id = %v, expected 9", got["message_thread_id"])
	}
	if _, ok := got["reply_markup"].(map[string]any); !ok {
		t.Errorf("reply_markup missing: %v", got)
	}
}

func TestSendMessage_OmitsEmptyOptionalFields(t *testing.T) {
	var raw string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		raw = string(b)
		io.WriteString(w, `{"ok":true,"result":{"message_id":1,"chat":{"id":5}}}`)
	})

	if _, err := c.SendMessage(context.Background(), SendMessageParams{ChatID: 5, Text: "hi"}); err != nil {
		t.Fatal(err)
	}
	for _, field := range []string{"message_thread_id", "reply_markup", "parse_mode"} {
		if strings.Contains(raw, field) {
			t.Errorf("body %s should not contain %q", raw, field)
		}
	}
}

func TestCall_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 7","parameters":{"retry_after":7}}`)
	})

	_, err := c.SendMessage(context.Background(), SendMessageParams{ChatID: 1, Text: "x"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, expected *APIError", err)
	}
	if apiErr.Code != CodeTooManyRequests {
		t.Errorf("Code = %d", apiErr.Code)
	}
	if apiErr.RetryAfter != 7*time.Second {
		t.Errorf("RetryAfter = %v", apiErr.RetryAfter)
	}
	if !IsAPIError(err, CodeTooManyRequests) {
		t.Error("IsAPIError() should match 429")
	}
}

func TestCall_BlockedUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`)
	})

	_, err := c.SendMessage(context.Background(), SendMessageParams{ChatID: 1, Text: "x"})
	if !IsBlocked(err) {
		t.Errorf("IsBlocked(%v) = false", err)
	}
}

func TestCall_NonJSONResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "<html>bad gateway</html>")
	})

	_, err := c.GetMe(context.Background())
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Errorf("error = %v, expected mention of status 502", err)
	}
}

func TestEditMessageText_NotModifiedIsIgnored(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: message is not modified"}`)
	})

	err := c.EditMessageText(context.Background(), EditMessageTextParams{ChatID: 1, MessageID: 2, Text: "same"})
	if err != nil {
		t.Errorf("EditMessageText() error = %v, expected nil", err)
	}
}

func TestCreateForumTopic(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var params map[string]any
		json.NewDecoder(r.Body).Decode(&params)
		if params["name"] != "Launch Day" {
			t.Errorf("name = %v", params["name"])
		}
		io.WriteString(w, `{"ok":true,"result":{"message_thread_id":321,"name":"Launch Day"}}`)
	})

	topic, err := c.CreateForumTopic(context.Background(), -100, "Launch Day")
	if err != nil {
		t.Fatal(err)
	}
	if topic.MessageThreadID != 321 {
		t.Errorf("MessageThreadID = %d", topic.MessageThreadID)
	}
}

func TestSendDocument_Multipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm() error = %v", err)
		}
		if r.FormValue("chat_id") != "42" {
			t.Errorf("chat_id = %q", r.FormValue("chat_id"))
		}
		file, header, err := r.FormFile("document")
		if err != nil {
			t.Fatalf("FormFile() error = %v", err)
		}
		defer file.Close()
		body, _ := io.ReadAll(file)
		if header.Filename != "report.pdf" || string(body) != "%PDF-1.3" {
			t.Errorf("file = %q (%q)", header.Filename, body)
		}
		io.WriteString(w, `{"ok":true,"result":{"message_id":5,"chat":{"id":42}}}`)
	})

	_, err := c.SendDocument(context.Background(), 42, "report.pdf", strings.NewReader("%PDF-1.3"), "Report")
	if err != nil {
		t.Fatalf("SendDocument() error = %v", err)
	}
}

func TestTransportErrorRedactsToken(t *testing.T) {
	c, _ := NewClient(ClientConfig{Token: "123:secret", BaseURL: "http://127.0.0.1:1"})
	_, err := c.GetMe(context.Background())
	if err == nil {
		t.Fatal("expected a transport error")
	}
	if strings.Contains(err.Error(), "123:secret") {
		t.Errorf("error leaks the token: %v", err)
	}
}

func TestPoller_AdvancesOffset(t *testing.T) {
	var calls atomic.Int32
	offsets := make(chan float64, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var params map[string]any
		json.NewDecoder(r.Body).Decode(&params)
		off, _ := params["offset"].(float64)
		offsets <- off
		switch calls.Add(1) {
		case 1:
			io.WriteString(w, `{"ok":true,"result":[{"update_id":10,"message":{"message_id":1,"chat":{"id":1,"type":"private"},"text":"a"}},{"update_id":11,"message":{"message_id":2,"chat":{"id":1,"type":"private"},"text":"b"}}]}`)
		default:
			cancel()
			io.WriteString(w, `{"ok":true,"result":[]}`)
		}
	})

	var seen []int64
	p := NewPoller(c, 1, func(u Update) { seen = append(seen, u.UpdateID) })
	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(seen) != 2 || seen[0] != 10 || seen[1] != 11 {
		t.Errorf("handled updates = %v", seen)
	}
	<-offsets
	if second := <-offsets; second != 12 {
		t.Errorf("second offset = %v, expected 12", second)
	}
}

func TestMessage_Command(t *testing.T) {
	tests := []struct {
		text string
		name string
		args string
		ok   bool
	}{
		{"/start", "start", "", true},
		{"/Start@feedback_bot", "start", "", true},
		{"/promote now", "promote", "now", true},
		{"hello", "", "", false},
		{"/", "", "", false},
	}

	for _, tt := range tests {
		m := Message{Text: tt.text}
		name, args, ok := m.Command()
		if name != tt.name || args != tt.args || ok != tt.ok {
			t.Errorf("Command(%q) = (%q, %q, %v), expected (%q, %q, %v)", tt.text, name, args, ok, tt.name, tt.args, tt.ok)
		}
	}
}

func TestMessage_LargestPhoto(t *testing.T) {
	m := Message{Photo: []PhotoSize{
		{FileID: "small", Width: 90, Height: 90},
		{FileID: "large", Width: 1280, Height: 960},
		{FileID: "medium", Width: 320, Height: 240},
	}}
	if got := m.LargestPhoto(); got != "large" {
		t.Errorf("LargestPhoto() = %q", got)
	}
	if got := (&Message{}).LargestPhoto(); got != "" {
		t.Errorf("LargestPhoto() on text message = %q", got)
	}
}

func TestUpdate_SenderID(t *testing.T) {
	msg := Update{Message: &Message{From: &User{ID: 5}}}
	cb := Update{CallbackQuery: &CallbackQuery{From: User{ID: 6}}}
	if msg.SenderID() != 5 || cb.SenderID() != 6 || (&Update{}).SenderID() != 0 {
		t.Error("SenderID() returned the wrong id")
	}
}
