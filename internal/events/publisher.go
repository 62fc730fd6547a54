package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/middleware"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/order"
)

var _ order.Publisher = (*Publisher)(nil)

// Publisher sends order events to the topic exchange. mu is held from
// sequence reservation until the broker accepts the message, so numbers
// within a partition go out in order. It also serializes use of the amqp
// channel.
type Publisher struct {
	mu               sync.Mutex
	ch               Channel
	seqRepo          SequenceRepository
	publishEnveloped bool
	producer         string
	now              func() time.Time
}

type PublisherOptions struct {
	PublishEnveloped bool
	Producer         string
}

func NewPublisher(ch Channel, seqRepo SequenceRepository, opts PublisherOptions) (*Publisher, error) {
	if err := declareEventsExchange(ch); err != nil {
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}

	producer := opts.Producer
	if producer == "" {
		producer = defaultProducer
	}

	return &Publisher{
		ch:               ch,
		seqRepo:          seqRepo,
		publishEnveloped: opts.PublishEnveloped,
		producer:         producer,
		now:              func() time.Time { return time.Now().UTC() },
	}, nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

// nextMeta reserves the next sequence number of the order's partition.
func (p *Publisher) nextMeta(ctx context.Context, orderID int64) (EventMeta, int64, error) {
	meta := EventMeta{
		CorrelationID: middleware.GetCorrelationID(ctx),
		CausationID:   chimw.GetReqID(ctx),
		PartitionKey:  strconv.FormatInt(orderID, 10),
	}
	seq, err := p.seqRepo.NextSequence(ctx, meta.PartitionKey)
	if err != nil {
		return EventMeta{}, 0, fmt.Errorf("reserve sequence: %w", err)
	}
	return meta, seq, nil
}

func (p *Publisher) PublishOrderPlaced(ctx context.Context, o order.Order) error {
	payload := orderPlacedPayload(o)

	p.mu.Lock()
	defer p.mu.Unlock()
	at := p.now()

	if !p.publishEnveloped {
		return p.publishJSON(ctx, OrderPlacedRoutingKey, LegacyOrderPlaced{
			EventType:          EventTypeOrderPlaced,
			OrderPlacedPayload: payload,
			Timestamp:          at,
		})
	}

	meta, seq, err := p.nextMeta(ctx, o.ID)
	if err != nil {
		return err
	}
	return p.publishJSON(ctx, OrderPlacedRoutingKey,
		newEnvelope(EventTypeOrderPlaced, orderPlacedSchema, meta, seq, p.producer, payload, at))
}

func (p *Publisher) PublishOrderStatusChanged(ctx context.Context, o order.Order, from order.Status) error {
	payload := OrderStatusChangedPayload{
		OrderID:   o.ID,
		UserID:    o.UserID,
		From:      string(from),
		To:        string(o.Status),
		ChangedAt: o.UpdatedAt,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	at := p.now()

	if !p.publishEnveloped {
		return p.publishJSON(ctx, OrderStatusChangedRoutingKey, LegacyOrderStatusChanged{
			EventType:                 EventTypeOrderStatusChanged,
			OrderStatusChangedPayload: payload,
			Timestamp:                 at,
		})
	}

	meta, seq, err := p.nextMeta(ctx, o.ID)
	if err != nil {
		return err
	}
	return p.publishJSON(ctx, OrderStatusChangedRoutingKey,
		newEnvelope(EventTypeOrderStatusChanged, orderStatusChangedSchema, meta, seq, p.producer, payload, at))
}

// publishJSON expects p.mu to be held.
func (p *Publisher) publishJSON(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", routingKey, err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		EventsExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			CorrelationId: middleware.GetCorrelationID(ctx),
			Timestamp:     p.now(),
			Body:          body,
		},
	)
}

func orderPlacedPayload(o order.Order) OrderPlacedPayload {
	payload := OrderPlacedPayload{
		OrderID:         o.ID,
		UserID:          o.UserID,
		TotalAmount:     o.TotalAmount,
		Status:          string(o.Status),
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
		Items:           make([]OrderLine, 0, len(o.Items)),
		CreatedAt:       o.CreatedAt,
	}
	for _, it := range o.Items {
		payload.Items = append(payload.Items, OrderLine{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
	}
	return payload
}
