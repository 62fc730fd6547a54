package events

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventTypeOrderPlaced = "OrderPlaced"
	orderPlacedSchema    = "contracts/events/order/OrderPlaced.v1.payload.schema.json"
)

type OrderLine struct {
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type OrderPlacedPayload struct {
	OrderID         int64           `json:"orderId"`
	UserID          string          `json:"userId"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Status          string          `json:"status"`
	ShippingAddress string          `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	Items           []OrderLine     `json:"items"`
	CreatedAt       time.Time       `json:"createdAt"`
}

type OrderPlacedEvent = EventEnvelope[OrderPlacedPayload]

// LegacyOrderPlaced is the flat form published when envelopes are disabled.
type LegacyOrderPlaced struct {
	EventType string `json:"eventType"`
	OrderPlacedPayload
	Timestamp time.Time `json:"timestamp"`
}
