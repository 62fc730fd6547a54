package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/middleware"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/order"
)

const maxBodyBytes = 1 << 20

type Catalog interface {
	List(ctx context.Context, f catalog.Filter) (catalog.Page, error)
	Get(ctx context.Context, id int64) (catalog.Product, error)
	Create(ctx context.Context, np catalog.NewProduct) (catalog.Product, error)
}

type Carts interface {
	GetCart(ctx context.Context, userID string) (*cart.Cart, error)
	AddToCart(ctx context.Context, userID string, productID int64, quantity int) (cart.Item, error)
	UpdateCartItem(ctx context.Context, itemID int64, quantity int) (cart.Item, error)
	RemoveCartItem(ctx context.Context, itemID int64) error
	ClearCart(ctx context.Context, userID string) error
}

type Orders interface {
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (order.PlaceOrderResult, error)
	ListOrders(ctx context.Context, userID string) ([]order.Order, error)
	GetOrder(ctx context.Context, orderID int64) (order.Order, error)
	UpdateStatus(ctx context.Context, orderID int64, to order.Status) (order.Order, error)
}

// ReadinessCheck is a named dependency probe for /ready.
type ReadinessCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

type Handler struct {
	catalog Catalog
	carts   Carts
	orders  Orders
	checks  []ReadinessCheck
	logger  *zap.Logger
	timeout time.Duration
}

func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Handler{
		catalog: d.Catalog,
		carts:   d.Carts,
		orders:  d.Orders,
		checks:  d.Readiness,
		logger:  logger,
		timeout: timeout,
	}
}

func (h *Handler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.timeout)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status code and the shared error body.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	h.writeErrorStatus(w, r, err, statusFor(apperr.KindOf(err)))
}

// writeCartError answers stock and availability conflicts with 400, as the
// cart routes always have.
func (h *Handler) writeCartError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(apperr.KindOf(err))
	if status == http.StatusConflict {
		status = http.StatusBadRequest
	}
	h.writeErrorStatus(w, r, err, status)
}

func (h *Handler) writeErrorStatus(w http.ResponseWriter, r *http.Request, err error, status int) {
	cid := middleware.GetCorrelationID(r.Context())
	msg := apperr.Message(err)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
		msg = "request timed out"
		h.logger.Warn("request timed out",
			zap.String("method", r.Method), zap.String("path", r.URL.Path),
			middleware.CorrelationField(r.Context()), zap.Error(err))
	case status >= http.StatusInternalServerError:
		h.logger.Error("request failed",
			zap.String("method", r.Method), zap.String("path", r.URL.Path),
			zap.String("kind", apperr.KindOf(err).String()),
			middleware.CorrelationField(r.Context()), zap.Error(err))
	}

	writeJSON(w, status, middleware.ErrorResponse{Error: msg, CorrelationID: cid})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return apperr.Wrap(apperr.KindValidation, "invalid request body", err)
	}
	return nil
}

// parseID reads a positive integer path value. Anything else is reported
// with notFound so malformed ids look like missing rows.
func parseID(raw string, notFound error) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, notFound
	}
	return id, nil
}
