package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/middleware"
)

// CartInvalidator drops cached cart state after checkout consumed items.
type CartInvalidator interface {
	Invalidate(userID string)
}

// Publisher announces committed order changes.
type Publisher interface {
	PublishOrderPlaced(ctx context.Context, o Order) error
	PublishOrderStatusChanged(ctx context.Context, o Order, from Status) error
}

type nopInvalidator struct{}

func (nopInvalidator) Invalidate(string) {}

type nopPublisher struct{}

func (nopPublisher) PublishOrderPlaced(context.Context, Order) error { return nil }

func (nopPublisher) PublishOrderStatusChanged(context.Context, Order, Status) error { return nil }

// Engine turns cart lines into orders and moves orders through their
// status machine.
type Engine struct {
	repo      Repository
	carts     CartInvalidator
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewEngine(repo Repository, carts CartInvalidator, publisher Publisher, logger *zap.Logger) *Engine {
	if carts == nil {
		carts = nopInvalidator{}
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		repo:      repo,
		carts:     carts,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// PlaceOrder consumes the requested cart items owned by the user and
// creates one order from them. Ids that are unknown or owned by another
// user are skipped. The order insert, stock decrement and cart deletion
// commit together or not at all.
func (e *Engine) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (PlaceOrderResult, error) {
	req, err := req.normalize()
	if err != nil {
		return PlaceOrderResult{}, err
	}

	if req.IdempotencyKey != "" {
		o, err := e.repo.FindByIdempotencyKey(ctx, req.UserID, req.IdempotencyKey)
		if err == nil {
			return PlaceOrderResult{Order: o, Replayed: true}, nil
		}
		if !errors.Is(err, ErrOrderNotFound) {
			return PlaceOrderResult{}, err
		}
	}

	if len(req.CartItemIDs) == 0 {
		return PlaceOrderResult{}, ErrEmptyOrderRequest
	}

	var placed Order
	err = e.repo.WithTx(ctx, func(tx Tx) error {
		lines, err := tx.LockCartLines(ctx, req.UserID, req.CartItemIDs)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrEmptyOrderRequest
		}

		products, err := tx.LockProducts(ctx, productIDs(lines))
		if err != nil {
			return err
		}

		o, err := BuildOrder(req, lines, products, e.now())
		if err != nil {
			return err
		}

		if err := tx.InsertOrder(ctx, &o); err != nil {
			return err
		}
		for _, it := range o.Items {
			if err := tx.DecrementStock(ctx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}

		n, err := tx.DeleteCartItems(ctx, req.UserID, cartItemIDs(lines))
		if err != nil {
			return err
		}
		if n != int64(len(lines)) {
			return fmt.Errorf("deleted %d of %d locked cart items", n, len(lines))
		}

		placed = o
		return nil
	})
	if errors.Is(err, ErrDuplicateIdempotencyKey) {
		o, ferr := e.repo.FindByIdempotencyKey(ctx, req.UserID, req.IdempotencyKey)
		if ferr != nil {
			return PlaceOrderResult{}, fmt.Errorf("load order for idempotency key: %w", ferr)
		}
		return PlaceOrderResult{Order: o, Replayed: true}, nil
	}
	if err != nil {
		if apperr.KindOf(err) == apperr.KindIntegrity {
			e.logger.Error("order placement hit inconsistent data",
				middleware.CorrelationField(ctx), zap.String("userId", req.UserID),
				zap.Int64s("cartItemIds", req.CartItemIDs), zap.Error(err))
		}
		return PlaceOrderResult{}, err
	}

	e.carts.Invalidate(req.UserID)

	e.logger.Info("order placed",
		zap.Int64("orderId", placed.ID),
		zap.String("userId", placed.UserID),
		zap.Int("items", len(placed.Items)),
		zap.String("total", placed.TotalAmount.StringFixed(2)),
		middleware.CorrelationField(ctx),
	)

	if err := e.publisher.PublishOrderPlaced(context.WithoutCancel(ctx), placed); err != nil {
		e.logger.Warn("publish order placed failed",
			zap.Int64("orderId", placed.ID), middleware.CorrelationField(ctx), zap.Error(err))
	}

	return PlaceOrderResult{Order: placed}, nil
}

func (e *Engine) ListOrders(ctx context.Context, userID string) ([]Order, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	return e.repo.ListByUser(ctx, userID)
}

func (e *Engine) GetOrder(ctx context.Context, orderID int64) (Order, error) {
	if orderID <= 0 {
		return Order{}, ErrOrderNotFound
	}
	return e.repo.GetByID(ctx, orderID)
}

// UpdateStatus moves an order to status to if the status machine allows it.
func (e *Engine) UpdateStatus(ctx context.Context, orderID int64, to Status) (Order, error) {
	if orderID <= 0 {
		return Order{}, ErrOrderNotFound
	}
	if _, err := ParseStatus(string(to)); err != nil {
		return Order{}, err
	}

	var from Status
	err := e.repo.WithTx(ctx, func(tx Tx) error {
		cur, err := tx.LockOrderStatus(ctx, orderID)
		if err != nil {
			return err
		}
		if err := Transition(cur, to); err != nil {
			return err
		}
		from = cur
		return tx.SetStatus(ctx, orderID, to, e.now())
	})
	if err != nil {
		return Order{}, err
	}

	o, err := e.repo.GetByID(ctx, orderID)
	if err != nil {
		return Order{}, err
	}

	e.logger.Info("order status changed",
		zap.Int64("orderId", orderID), zap.String("from", string(from)), zap.String("to", string(to)),
		middleware.CorrelationField(ctx))

	if err := e.publisher.PublishOrderStatusChanged(context.WithoutCancel(ctx), o, from); err != nil {
		e.logger.Warn("publish order status changed failed",
			zap.Int64("orderId", orderID), middleware.CorrelationField(ctx), zap.Error(err))
	}
	return o, nil
}
