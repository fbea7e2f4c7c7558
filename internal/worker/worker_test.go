package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/gyan/internal/domain"
)

// fakeSender fails the first failures calls, then succeeds.
type fakeSender struct {
	mu       sync.Mutex
	failures int
	calls    int
	sent     []string
	done     chan struct{}
}

func newFakeSender(failures int) *fakeSender {
	return &fakeSender{failures: failures, done: make(chan struct{}, 10)}
}

func (f *fakeSender) SendOrderConfirmation(_ context.Context, o *domain.Order, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		f.done <- struct{}{}
		return errors.New("smtp unavailable")
	}
	f.sent = append(f.sent, o.OrderID)
	f.done <- struct{}{}
	return nil
}

func (f *fakeSender) snapshot() (int, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, append([]string(nil), f.sent...)
}

func waitCalls(t *testing.T, f *fakeSender, n int) {
	t.Helper()
	for range n {
		select {
		case <-f.done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for send")
		}
	}
}

func testConfig() Config {
	return Config{
		WorkerID:       "test",
		MaxConcurrency: 1,
		QueueSize:      2,
		MaxAttempts:    3,
		RetryBackoff:   time.Millisecond,
		JobTimeout:     time.Second,
	}
}

func TestWorker_SendsQueuedMail(t *testing.T) {
	sender := newFakeSender(0)
	w := NewWorker(sender, testConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	require.NoError(t, w.SendOrderConfirmation(context.Background(), &domain.Order{OrderID: "AG-1"}, nil))
	waitCalls(t, sender, 1)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	_, sent := sender.snapshot()
	assert.Equal(t, []string{"AG-1"}, sent)
}

func TestWorker_RetriesTransientFailures(t *testing.T) {
	sender := newFakeSender(2)
	w := NewWorker(sender, testConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	require.NoError(t, w.SendOrderConfirmation(context.Background(), &domain.Order{OrderID: "AG-2"}, nil))
	waitCalls(t, sender, 3)

	calls, sent := sender.snapshot()
	assert.Equal(t, 3, calls)
	assert.Equal(t, []string{"AG-2"}, sent)
}

func TestWorker_GivesUpAfterMaxAttempts(t *testing.T) {
	sender := newFakeSender(10)
	w := NewWorker(sender, testConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	require.NoError(t, w.SendOrderConfirmation(context.Background(), &domain.Order{OrderID: "AG-3"}, nil))
	waitCalls(t, sender, 3)

	// No fourth attempt.
	select {
	case <-sender.done:
		t.Fatal("unexpected extra attempt")
	case <-time.After(50 * time.Millisecond):
	}
	_, sent := sender.snapshot()
	assert.Empty(t, sent)
}

func TestWorker_QueueFull(t *testing.T) {
	w := NewWorker(newFakeSender(0), testConfig(), nil)

	// Not started: the queue only fills.
	require.NoError(t, w.SendOrderConfirmation(context.Background(), &domain.Order{OrderID: "AG-1"}, nil))
	require.NoError(t, w.SendOrderConfirmation(context.Background(), &domain.Order{OrderID: "AG-2"}, nil))
	assert.ErrorIs(t, w.SendOrderConfirmation(context.Background(), &domain.Order{OrderID: "AG-3"}, nil), ErrQueueFull)
}

func TestWorker_DrainsOnShutdown(t *testing.T) {
	sender := newFakeSender(0)
	w := NewWorker(sender, testConfig(), nil)

	require.NoError(t, w.SendOrderConfirmation(context.Background(), &domain.Order{OrderID: "AG-1"}, nil))
	require.NoError(t, w.SendOrderConfirmation(context.Background(), &domain.Order{OrderID: "AG-2"}, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.Start(ctx), context.Canceled)

	_, sent := sender.snapshot()
	assert.ElementsMatch(t, []string{"AG-1", "AG-2"}, sent)
	assert.ErrorIs(t, w.SendOrderConfirmation(context.Background(), &domain.Order{OrderID: "AG-3"}, nil), ErrStopped)
}
