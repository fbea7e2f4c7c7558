package api

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/gyan/internal/domain"
	"github.com/dukerupert/gyan/internal/handler"
)

// CartHandler handles the /api/cart routes.
type CartHandler struct {
	sessions Sessions
	logger   *slog.Logger
}

// NewCartHandler creates a new cart handler
func NewCartHandler(sessions Sessions, logger *slog.Logger) *CartHandler {
	return &CartHandler{sessions: sessions, logger: orDefault(logger)}
}

// CartResponse is the cart as returned by every cart route.
type CartResponse struct {
	Items     []domain.LineItem `json:"items"`
	ItemCount int               `json:"itemCount"`
	Subtotal  int64             `json:"subtotal"`
}

func newCartResponse(c domain.Cart) CartResponse {
	items := c.Items
	if items == nil {
		items = []domain.LineItem{}
	}
	return CartResponse{
		Items:     items,
		ItemCount: c.ItemCount(),
		Subtotal:  c.Subtotal(),
	}
}

// AddItemRequest is the body of POST /api/cart/items.
type AddItemRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
	Image string `json:"image"`
}

// UpdateQuantityRequest is the body of PUT /api/cart/items/{id}.
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

// Get handles GET /api/cart
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	svc, ok := service(w, r, h.sessions)
	if !ok {
		return
	}

	c, err := svc.Cart(r.Context())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, r, http.StatusOK, newCartResponse(c))
}

// Add handles POST /api/cart/items
func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := decode(r, "cart.add", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	svc, ok := service(w, r, h.sessions)
	if !ok {
		return
	}

	c, err := svc.AddItem(r.Context(), req.ID, req.Name, req.Price, req.Image)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, r, http.StatusOK, newCartResponse(c))
}

// UpdateQuantity handles PUT /api/cart/items/{id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuantityRequest
	if err := decode(r, "cart.set_quantity", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	if req.Quantity == nil {
		handler.ErrorResponse(w, r, domain.NewValidationError("cart.set_quantity", "quantity", "Quantity is required"))
		return
	}

	svc, ok := service(w, r, h.sessions)
	if !ok {
		return
	}

	c, err := svc.UpdateQuantity(r.Context(), r.PathValue("id"), *req.Quantity)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, r, http.StatusOK, newCartResponse(c))
}

// Remove handles DELETE /api/cart/items/{id}
func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	svc, ok := service(w, r, h.sessions)
	if !ok {
		return
	}

	c, err := svc.RemoveItem(r.Context(), r.PathValue("id"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.JSON(w, r, http.StatusOK, newCartResponse(c))
}
