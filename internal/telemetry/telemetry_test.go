package telemetry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/gyan/internal/domain"
	"github.com/dukerupert/gyan/internal/kvstore"
)

func TestEventLog_Record(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	log := NewEventLog(kv, "/checkout")
	fixed := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	log.now = func() time.Time { return fixed }

	require.NoError(t, log.Record(ctx, "checkout_started", domain.StepReviewCart, map[string]any{"items": 2}))
	require.NoError(t, log.Record(ctx, "promo_applied", domain.StepReviewCart, map[string]any{"code": "FIRST20"}))

	events, err := log.Events(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "checkout_started", events[0].Type)
	assert.Equal(t, "/checkout", events[0].Page)
	assert.Equal(t, fixed, events[0].Timestamp)
	assert.Equal(t, "FIRST20", events[1].Data["code"])

	raw, err := kv.Get(ctx, EventsKey)
	require.NoError(t, err)
	assert.Contains(t, raw, `"type":"promo_applied"`)
}

func TestEventLog_Bounded(t *testing.T) {
	ctx := context.Background()
	log := NewEventLog(kvstore.NewMemoryStore(), "/checkout")

	for i := 0; i < MaxEvents+25; i++ {
		require.NoError(t, log.Record(ctx, "tick", domain.StepReviewCart, map[string]any{"i": i}))
	}

	events, err := log.Events(ctx)
	require.NoError(t, err)
	require.Len(t, events, MaxEvents)
	assert.EqualValues(t, 25, events[0].Data["i"], "oldest entries are dropped first")
}

func TestEventLog_CorruptLogRestarts(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, EventsKey, "nope"))
	log := NewEventLog(kv, "/checkout")

	_, err := log.Events(ctx)
	assert.True(t, errors.Is(err, domain.ErrStorageCorrupt))

	require.NoError(t, log.Record(ctx, "checkout_started", domain.StepReviewCart, nil))
	events, err := log.Events(ctx)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestCheckoutMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCheckoutMetrics("test", reg)

	m.PromoApplied.WithLabelValues("FIRST20").Inc()
	m.PaymentFailed.WithLabelValues("upi", "declined").Inc()
	m.CheckoutStarted.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PromoApplied.WithLabelValues("FIRST20")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PaymentFailed.WithLabelValues("upi", "declined")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckoutStarted))

	// A second set on a fresh registry must not panic on duplicate registration.
	assert.NotPanics(t, func() { NewCheckoutMetrics("test", prometheus.NewRegistry()) })
}

func TestSentryDisabled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cleanup, err := InitSentry(SentryConfig{Enabled: false}, logger)
	require.NoError(t, err)
	cleanup()
	assert.False(t, IsEnabled())

	// No-ops while disabled.
	CaptureError(context.Background(), errors.New("x"), nil)
	AddBreadcrumb(context.Background(), "checkout", "advance", nil)

	called := false
	h := SentryMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}
