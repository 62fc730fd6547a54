package events

import "time"

const (
	EventTypeOrderStatusChanged = "OrderStatusChanged"
	orderStatusChangedSchema    = "contracts/events/order/OrderStatusChanged.v1.payload.schema.json"
)

type OrderStatusChangedPayload struct {
	OrderID   int64     `json:"orderId"`
	UserID    string    `json:"userId"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	ChangedAt time.Time `json:"changedAt"`
}

type OrderStatusChangedEvent = EventEnvelope[OrderStatusChangedPayload]

type LegacyOrderStatusChanged struct {
	EventType string `json:"eventType"`
	OrderStatusChangedPayload
	Timestamp time.Time `json:"timestamp"`
}
