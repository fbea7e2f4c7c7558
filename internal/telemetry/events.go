package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dukerupert/gyan/internal/domain"
	"github.com/dukerupert/gyan/internal/kvstore"
)

// EventsKey is the store key holding the checkout analytics log.
const EventsKey = "checkoutAnalytics"

// MaxEvents bounds the analytics log; older entries are dropped first.
const MaxEvents = 500

// Event is one analytics record.
type Event struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Page      string         `json:"page"`
	Step      domain.Step    `json:"step"`
}

// EventRecorder records checkout analytics.
type EventRecorder interface {
	Record(ctx context.Context, eventType string, step domain.Step, data map[string]any) error
}

// EventLog appends events to the checkoutAnalytics key of a store.
type EventLog struct {
	mu   sync.Mutex
	kv   kvstore.Store
	page string
	now  func() time.Time
}

func NewEventLog(kv kvstore.Store, page string) *EventLog {
	return &EventLog{kv: kv, page: page, now: time.Now}
}

// Record appends an event. An unreadable log is started afresh.
func (l *EventLog) Record(ctx context.Context, eventType string, step domain.Step, data map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	events, err := l.load(ctx)
	if err != nil && !errors.Is(err, domain.ErrStorageCorrupt) {
		return err
	}

	events = append(events, Event{
		Type:      eventType,
		Data:      data,
		Timestamp: l.now().UTC(),
		Page:      l.page,
		Step:      step,
	})
	if len(events) > MaxEvents {
		events = events[len(events)-MaxEvents:]
	}

	b, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("encode analytics: %w", err)
	}
	if err := l.kv.Set(ctx, EventsKey, string(b)); err != nil {
		return fmt.Errorf("save analytics: %w", err)
	}
	return nil
}

// Events returns the recorded events, oldest first.
func (l *EventLog) Events(ctx context.Context) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(ctx)
}

func (l *EventLog) load(ctx context.Context) ([]Event, error) {
	raw, err := l.kv.Get(ctx, EventsKey)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read analytics: %w", err)
	}

	var events []Event
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		return nil, fmt.Errorf("analytics: %w: %v", domain.ErrStorageCorrupt, err)
	}
	return events, nil
}
