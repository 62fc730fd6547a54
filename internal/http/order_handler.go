package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/order"
)

const (
	HeaderIdempotencyKey    = "Idempotency-Key"
	HeaderIdempotentReplay  = "Idempotent-Replayed"
	maxIdempotencyKeyLength = 255
)

var errIdempotencyKeyTooLong = apperr.Validation("Idempotency-Key must be at most 255 characters")

func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	key := r.Header.Get(HeaderIdempotencyKey)
	if len(key) > maxIdempotencyKeyLength {
		h.writeError(w, r, errIdempotencyKeyTooLong)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	res, err := h.orders.PlaceOrder(ctx, order.PlaceOrderRequest{
		UserID:          req.UserID,
		CartItemIDs:     req.CartItemIDs,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		IdempotencyKey:  key,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/orders/id/"+strconv.FormatInt(res.Order.ID, 10))
	if res.Replayed {
		w.Header().Set(HeaderIdempotentReplay, "true")
		writeJSON(w, http.StatusOK, toOrder(res.Order))
		return
	}
	writeJSON(w, http.StatusCreated, toOrder(res.Order))
}

// ListOrders serves GET /api/orders/{id}, where id is the user id.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	orders, err := h.orders.ListOrders(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrders(orders))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "orderId"), order.ErrOrderNotFound)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	o, err := h.orders.GetOrder(ctx, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrder(o))
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), order.ErrOrderNotFound)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	o, err := h.orders.UpdateStatus(ctx, id, order.Status(req.Status))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrder(o))
}
