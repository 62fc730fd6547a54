package order

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/catalog"
)

var (
	ErrEmptyOrderRequest       = apperr.Validation("No valid cart items found")
	ErrProductNotFound         = apperr.Integrity("product referenced by cart item does not exist")
	ErrUserIDRequired          = apperr.Validation("userId is required")
	ErrShippingAddressRequired = apperr.Validation("shippingAddress is required")
	ErrPaymentMethodRequired   = apperr.Validation("paymentMethod is required")
)

// normalize trims the text fields and reduces CartItemIDs to distinct
// positive ids in ascending order. Ownership is checked later against the
// store; ids that do not belong to the user are dropped there, not here.
func (r PlaceOrderRequest) normalize() (PlaceOrderRequest, error) {
	r.UserID = strings.TrimSpace(r.UserID)
	r.ShippingAddress = strings.TrimSpace(r.ShippingAddress)
	r.PaymentMethod = strings.TrimSpace(r.PaymentMethod)
	r.IdempotencyKey = strings.TrimSpace(r.IdempotencyKey)

	switch {
	case r.UserID == "":
		return r, ErrUserIDRequired
	case r.ShippingAddress == "":
		return r, ErrShippingAddressRequired
	case r.PaymentMethod == "":
		return r, ErrPaymentMethodRequired
	}

	ids := make([]int64, 0, len(r.CartItemIDs))
	for _, id := range r.CartItemIDs {
		if id > 0 {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	r.CartItemIDs = slices.Compact(ids)
	return r, nil
}

// BuildOrder checks each locked cart line against its locked product and
// returns a Pending order whose items carry the current catalog price.
func BuildOrder(req PlaceOrderRequest, lines []CartLine, products map[int64]catalog.Product, now time.Time) (Order, error) {
	if len(lines) == 0 {
		return Order{}, ErrEmptyOrderRequest
	}

	o := Order{
		UserID:          req.UserID,
		Status:          StatusPending,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		IdempotencyKey:  req.IdempotencyKey,
		CreatedAt:       now,
		UpdatedAt:       now,
		TotalAmount:     decimal.Zero,
		Items:           make([]Item, 0, len(lines)),
	}

	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			return Order{}, apperr.Detail(ErrProductNotFound, "product %d referenced by cart item %d does not exist", l.ProductID, l.CartItemID)
		}
		if !p.IsActive {
			return Order{}, apperr.Detail(catalog.ErrUnavailable, "product %d is not available", p.ID)
		}
		if l.Quantity > p.StockQuantity {
			return Order{}, apperr.Detail(catalog.ErrInsufficientStock, "insufficient stock for product %d: want %d, have %d", p.ID, l.Quantity, p.StockQuantity)
		}

		it := Item{
			ProductID: p.ID,
			Quantity:  l.Quantity,
			Price:     p.Price,
			Product:   &p,
		}
		o.Items = append(o.Items, it)
		o.TotalAmount = o.TotalAmount.Add(it.LineTotal())
	}

	return o, nil
}

func productIDs(lines []CartLine) []int64 {
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

func cartItemIDs(lines []CartLine) []int64 {
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.CartItemID)
	}
	return ids
}
