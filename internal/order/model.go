package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/catalog"
)

type Item struct {
	ID        int64            `json:"id"`
	OrderID   int64            `json:"orderId"`
	ProductID int64            `json:"productId"`
	Quantity  int              `json:"quantity"`
	Price     decimal.Decimal  `json:"price"`
	Product   *catalog.Product `json:"product,omitempty"`
}

// LineTotal is the snapshot price times quantity.
func (it Item) LineTotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

type Order struct {
	ID              int64           `json:"id"`
	UserID          string          `json:"userId"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Status          Status          `json:"status"`
	ShippingAddress string          `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	IdempotencyKey  string          `json:"-"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	Items           []Item          `json:"orderItems"`
}

// CartLine is a cart row locked for checkout.
type CartLine struct {
	CartItemID int64
	ProductID  int64
	Quantity   int
}

type PlaceOrderRequest struct {
	UserID          string
	CartItemIDs     []int64
	ShippingAddress string
	PaymentMethod   string
	IdempotencyKey  string
}

type PlaceOrderResult struct {
	Order Order
	// Replayed is set when the idempotency key matched an earlier order.
	Replayed bool
}
