package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/gyan/internal/handler"
)

// OrderHandler serves order receipts.
type OrderHandler struct {
	sessions Sessions
	logger   *slog.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(sessions Sessions, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{sessions: sessions, logger: orDefault(logger)}
}

// Receipt handles GET /api/orders/{id}/receipt
//
// Returns the HTML receipt as a download. Only the visitor who placed the
// order can fetch it; other visitors get 404.
func (h *OrderHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	svc, ok := service(w, r, h.sessions)
	if !ok {
		return
	}

	body, filename, err := svc.Receipt(r.Context(), r.PathValue("id"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.logger.Warn("failed to write receipt", "error", err)
	}
}
