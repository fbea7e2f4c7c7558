package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/gyan/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	_, ok := r.Last()
	assert.False(t, ok)

	r.Show(context.Background(), "Item removed.", Success)
	r.Show(context.Background(), "Cart is empty.", Info)

	msgs := r.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, Message{Text: "Item removed.", Severity: Success}, msgs[0])

	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, Info, last.Severity)
}

func TestMultiAndContextNotifier(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	ctx := WithRecorder(context.Background(), b)

	Multi{a, ContextNotifier{}, nil}.Show(ctx, "hello", Warning)

	assert.Len(t, a.Messages(), 1)
	assert.Len(t, b.Messages(), 1)

	// Without a recorder on the context the notification is dropped.
	ContextNotifier{}.Show(context.Background(), "dropped", Info)
	assert.Len(t, b.Messages(), 1)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))

	n.Show(context.Background(), "Payment failed", Error)

	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "Payment failed")
}

func TestNavigator(t *testing.T) {
	nav := NewNavRecorder()
	assert.Equal(t, Page(""), nav.Last())

	ctx := WithNavRecorder(context.Background(), nav)
	ContextNavigator{}.GoTo(ctx, PageServices)
	assert.Equal(t, PageServices, nav.Last())

	nav.GoTo(ctx, PageConfirmation)
	assert.Equal(t, PageConfirmation, nav.Last())
}

type fakePublisher struct {
	subject string
	data    []byte
	err     error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.subject, f.data = subject, data
	return f.err
}

func TestNATSNotifier(t *testing.T) {
	pub := &fakePublisher{}
	n := NewNATSNotifier(pub, "", discardLogger())

	ctx := domain.NewContextWithVisitor(context.Background(), "v-1")
	n.Show(ctx, "Payment successful", Success)

	assert.Equal(t, "gyan.notifications.success", pub.subject)

	var ev natsEvent
	require.NoError(t, json.Unmarshal(pub.data, &ev))
	assert.Equal(t, "Payment successful", ev.Message)
	assert.Equal(t, "v-1", ev.VisitorID)
}

func TestNATSNotifier_PublishFailureIsSwallowed(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats: connection closed")}
	n := NewNATSNotifier(pub, "custom", discardLogger())

	assert.NotPanics(t, func() { n.Show(context.Background(), "x", Error) })
	assert.Equal(t, "custom.error", pub.subject)
}
