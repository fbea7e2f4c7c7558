// Package notify delivers user-facing notifications and navigation requests.
//
// Both are fire-and-forget: the checkout engine never waits on, or fails
// because of, a notification.
package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Severity of a notification.
type Severity string

const (
	Info    Severity = "info"
	Success Severity = "success"
	Error   Severity = "error"
	Warning Severity = "warning"
)

// Notifier shows a message to the visitor.
type Notifier interface {
	Show(ctx context.Context, message string, severity Severity)
}

// Message is a recorded notification.
type Message struct {
	Text     string   `json:"message"`
	Severity Severity `json:"severity"`
}

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Show(ctx context.Context, message string, severity Severity) {
	level := slog.LevelInfo
	switch severity {
	case Error:
		level = slog.LevelError
	case Warning:
		level = slog.LevelWarn
	}
	n.logger.Log(ctx, level, "notification", "message", message, "severity", string(severity))
}

// Recorder collects notifications in memory. HTTP handlers use one per
// request to return notifications alongside the response.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Show(ctx context.Context, message string, severity Severity) {
	r.mu.Lock()
	r.messages = append(r.messages, Message{Text: message, Severity: severity})
	r.mu.Unlock()
}

// Messages returns a copy of the recorded notifications.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return Message{}, false
	}
	return r.messages[len(r.messages)-1], true
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

func (m Multi) Show(ctx context.Context, message string, severity Severity) {
	for _, n := range m {
		if n != nil {
			n.Show(ctx, message, severity)
		}
	}
}

type recorderKey struct{}

// WithRecorder attaches a per-request recorder to ctx.
func WithRecorder(ctx context.Context, r *Recorder) context.Context {
	return context.WithValue(ctx, recorderKey{}, r)
}

// RecorderFromContext returns the recorder attached by WithRecorder, or nil.
func RecorderFromContext(ctx context.Context) *Recorder {
	r, _ := ctx.Value(recorderKey{}).(*Recorder)
	return r
}

// ContextNotifier forwards to the recorder carried by ctx, if any.
type ContextNotifier struct{}

func (ContextNotifier) Show(ctx context.Context, message string, severity Severity) {
	if r := RecorderFromContext(ctx); r != nil {
		r.Show(ctx, message, severity)
	}
}
