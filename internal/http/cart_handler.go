package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/cart"
)

// GetCart serves GET /api/cart/{id}, where id is the user id.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	c, err := h.carts.GetCart(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCart(c))
}

func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req addToCartRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	it, err := h.carts.AddToCart(ctx, req.UserID, req.ProductID, quantity)
	if err != nil {
		h.writeCartError(w, r, err)
		return
	}

	item := toCartItem(it)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Item added to cart", Item: &item})
}

// UpdateCartItem serves PUT /api/cart/{id}, where id is the cart item id.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), cart.ErrItemNotFound)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req updateCartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	if _, err := h.carts.UpdateCartItem(ctx, id, req.Quantity); err != nil {
		h.writeCartError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Cart item updated")
}

func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), cart.ErrItemNotFound)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	if err := h.carts.RemoveCartItem(ctx, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Item removed from cart")
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	if err := h.carts.ClearCart(ctx, chi.URLParam(r, "userId")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Cart cleared")
}
