// Package telegramtest provides an in-memory stand-in for the Telegram sender.
package telegramtest

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/huangang/feedbackbot/internal/telegram"
)

// ErrBlocked mimics Telegram refusing delivery to a user.
var ErrBlocked = &telegram.APIError{Method: "sendMessage", Code: telegram.CodeForbidden, Description: "Forbidden: bot was blocked by the user"}

// Message is one recorded outbound send.
type Message struct {
	ID       int64
	ChatID   int64
	ThreadID int64
	Text     string
	PhotoID  string
	Markup   any
}

type Edit struct {
	ChatID    int64
	MessageID int64
	Text      string
	Markup    *telegram.InlineKeyboardMarkup
}

type CallbackAnswer struct {
	ID    string
	Text  string
	Alert bool
}

type Document struct {
	ChatID   int64
	FileName string
	Size     int
	Caption  string
}

type Thread struct {
	ID     int64
	ChatID int64
	Title  string
}

// Recorder implements the sender interface and keeps everything it was asked to do.
type Recorder struct {
	mu sync.Mutex

	nextID   int64
	Messages []Message
	Edits    []Edit
	Answers  []CallbackAnswer
	Docs     []Document
	Threads  []Thread

	// FailChats makes every send to the listed chat ids fail with the mapped error.
	FailChats map[int64]error
	// FailThreads makes CreateThread fail.
	FailThreads error
}

func NewRecorder() *Recorder {
	return &Recorder{nextID: 1000, FailChats: map[int64]error{}}
}

func (r *Recorder) id() int64 {
	r.nextID++
	return r.nextID
}

// Fail makes future sends to chatID return err. A nil err clears it.
func (r *Recorder) Fail(chatID int64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.FailChats, chatID)
		return
	}
	r.FailChats[chatID] = err
}

func (r *Recorder) SendText(_ context.Context, chatID, threadID int64, text string, markup any) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.FailChats[chatID]; err != nil {
		return 0, err
	}
	m := Message{ID: r.id(), ChatID: chatID, ThreadID: threadID, Text: text, Markup: markup}
	r.Messages = append(r.Messages, m)
	return m.ID, nil
}

func (r *Recorder) SendPhoto(_ context.Context, chatID, threadID int64, fileID, caption string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.FailChats[chatID]; err != nil {
		return 0, err
	}
	m := Message{ID: r.id(), ChatID: chatID, ThreadID: threadID, Text: caption, PhotoID: fileID}
	r.Messages = append(r.Messages, m)
	return m.ID, nil
}

func (r *Recorder) SendDocument(_ context.Context, chatID int64, fileName string, rd io.Reader, caption string) error {
	data, err := io.ReadAll(rd)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.FailChats[chatID]; err != nil {
		return err
	}
	r.Docs = append(r.Docs, Document{ChatID: chatID, FileName: fileName, Size: len(data), Caption: caption})
	return nil
}

func (r *Recorder) EditText(_ context.Context, chatID, messageID int64, text string, markup *telegram.InlineKeyboardMarkup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.FailChats[chatID]; err != nil {
		return err
	}
	r.Edits = append(r.Edits, Edit{ChatID: chatID, MessageID: messageID, Text: text, Markup: markup})
	return nil
}

func (r *Recorder) CreateThread(_ context.Context, chatID int64, title string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailThreads != nil {
		return 0, r.FailThreads
	}
	if title == "" {
		return 0, errors.New("telegramtest: empty topic name")
	}
	t := Thread{ID: r.id(), ChatID: chatID, Title: title}
	r.Threads = append(r.Threads, t)
	return t.ID, nil
}

func (r *Recorder) AnswerCallback(_ context.Context, callbackID, text string, alert bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Answers = append(r.Answers, CallbackAnswer{ID: callbackID, Text: text, Alert: alert})
	return nil
}

// SentTo returns the messages delivered to chatID, in order.
func (r *Recorder) SentTo(chatID int64) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Message
	for _, m := range r.Messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

// Last returns the most recent message to chatID.
func (r *Recorder) Last(chatID int64) (Message, bool) {
	msgs := r.SentTo(chatID)
	if len(msgs) == 0 {
		return Message{}, false
	}
	return msgs[len(msgs)-1], true
}

// Contains reports whether any message to chatID contains substr.
func (r *Recorder) Contains(chatID int64, substr string) bool {
	for _, m := range r.SentTo(chatID) {
		if strings.Contains(m.Text, substr) {
			return true
		}
	}
	return false
}

// LastAnswer returns the most recent callback answer.
func (r *Recorder) LastAnswer() (CallbackAnswer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Answers) == 0 {
		return CallbackAnswer{}, false
	}
	return r.Answers[len(r.Answers)-1], true
}

// LastEdit returns the most recent edit.
func (r *Recorder) LastEdit() (Edit, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Edits) == 0 {
		return Edit{}, false
	}
	return r.Edits[len(r.Edits)-1], true
}

// Reset drops everything recorded so far but keeps failure settings.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Messages = nil
	r.Edits = nil
	r.Answers = nil
	r.Docs = nil
	r.Threads = nil
}
