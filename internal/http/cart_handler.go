package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fjod/go_storefront/internal/domain"
)

type CartService interface {
	Snapshot(ctx context.Context, userRef string) (*domain.CartSnapshot, error)
	AddItem(ctx context.Context, userRef, sku string, qty int) (int, error)
	SetItem(ctx context.Context, userRef, sku string, qty int) (domain.SetOutcome, error)
	RemoveItem(ctx context.Context, userRef, sku string) (bool, error)
}

type CartHandler struct {
	cart    CartService
	timeout time.Duration
}

func NewCartHandler(cart CartService, timeout time.Duration) *CartHandler {
	return &CartHandler{
		cart:    cart,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

// SetQuantityRequestDTO uses a pointer so a missing qty is distinguishable
// from an explicit zero (zero is a valid "delete the line" request).
type SetQuantityRequestDTO struct {
	Qty *int `json:"qty"`
}

type ItemMutationResponse struct {
	Detail string `json:"detail"`
	SKU    string `json:"sku,omitempty"`
	Qty    int    `json:"qty,omitempty"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userRef := getUserRef(r.Context())

	snap, err := h.cart.Snapshot(ctx, userRef)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, snap)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userRef := getUserRef(r.Context())

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.SKU == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "sku is required")
		return
	}
	if req.Qty <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "qty must be > 0 for POST")
		return
	}

	newQty, err := h.cart.AddItem(ctx, userRef, req.SKU, req.Qty)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, ItemMutationResponse{
		Detail: "added",
		SKU:    req.SKU,
		Qty:    newQty,
	})
}

func (h *CartHandler) SetItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userRef := getUserRef(r.Context())
	sku := chi.URLParam(r, "sku")

	var req SetQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.Qty == nil {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "qty is required")
		return
	}
	if *req.Qty < 0 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "qty must be >= 0")
		return
	}

	outcome, err := h.cart.SetItem(ctx, userRef, sku, *req.Qty)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := ItemMutationResponse{Detail: string(outcome)}
	if outcome == domain.SetApplied {
		resp.SKU = sku
		resp.Qty = *req.Qty
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userRef := getUserRef(r.Context())
	sku := chi.URLParam(r, "sku")

	removed, err := h.cart.RemoveItem(ctx, userRef, sku)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if !removed {
		respondError(w, http.StatusNotFound, "not_found", "item not found in cart")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
