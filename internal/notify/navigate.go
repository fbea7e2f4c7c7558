package notify

import (
	"context"
	"sync"
)

// Page is a navigation target.
type Page string

const (
	PageServices     Page = "services"
	PageCheckout     Page = "checkout"
	PageConfirmation Page = "confirmation"
)

// Navigator moves the visitor to another page.
type Navigator interface {
	GoTo(ctx context.Context, page Page)
}

// NavRecorder remembers the last requested page.
type NavRecorder struct {
	mu   sync.Mutex
	last Page
}

func NewNavRecorder() *NavRecorder {
	return &NavRecorder{}
}

func (n *NavRecorder) GoTo(ctx context.Context, page Page) {
	n.mu.Lock()
	n.last = page
	n.mu.Unlock()
}

// Last returns the most recent target, or "" if none.
func (n *NavRecorder) Last() Page {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}

type navKey struct{}

// WithNavRecorder attaches a per-request navigation recorder to ctx.
func WithNavRecorder(ctx context.Context, n *NavRecorder) context.Context {
	return context.WithValue(ctx, navKey{}, n)
}

// NavRecorderFromContext returns the recorder attached by WithNavRecorder, or nil.
func NavRecorderFromContext(ctx context.Context) *NavRecorder {
	n, _ := ctx.Value(navKey{}).(*NavRecorder)
	return n
}

// ContextNavigator forwards to the NavRecorder carried by ctx, if any.
type ContextNavigator struct{}

func (ContextNavigator) GoTo(ctx context.Context, page Page) {
	if n := NavRecorderFromContext(ctx); n != nil {
		n.GoTo(ctx, page)
	}
}
