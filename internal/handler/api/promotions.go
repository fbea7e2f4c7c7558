package api

import (
	"net/http"

	"github.com/dukerupert/gyan/internal/handler"
	"github.com/dukerupert/gyan/internal/promotion"
)

// PromotionHandler lists the promotion catalog.
type PromotionHandler struct {
	catalog *promotion.Catalog
}

// NewPromotionHandler creates a new promotion handler
func NewPromotionHandler(catalog *promotion.Catalog) *PromotionHandler {
	return &PromotionHandler{catalog: catalog}
}

// List handles GET /api/promotions
func (h *PromotionHandler) List(w http.ResponseWriter, r *http.Request) {
	handler.JSON(w, r, http.StatusOK, h.catalog.All())
}
