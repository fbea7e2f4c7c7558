package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dukerupert/gyan/internal/handler"
	"github.com/dukerupert/gyan/internal/kvstore"
)

// healthKey is read on every probe. It is never written, so ErrNotFound
// is the healthy answer.
const healthKey = "healthz"

// HealthHandler reports whether the store is reachable.
type HealthHandler struct {
	store   kvstore.Store
	timeout time.Duration
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store kvstore.Store) *HealthHandler {
	return &HealthHandler{store: store, timeout: 2 * time.Second}
}

// Check handles GET /healthz
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	_, err := h.store.Get(ctx, healthKey)
	if err != nil && !errors.Is(err, kvstore.ErrNotFound) {
		handler.JSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	handler.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
