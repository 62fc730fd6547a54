package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventEnvelope wraps every order event published with envelopes enabled.
// Consumers order events of one order by Sequence within PartitionKey.
type EventEnvelope[T any] struct {
	EventName     string    `json:"eventName"`
	EventVersion  int       `json:"eventVersion"`
	EventID       string    `json:"eventId"`
	CorrelationID string    `json:"correlationId,omitempty"`
	CausationID   string    `json:"causationId,omitempty"`
	Producer      string    `json:"producer"`
	PartitionKey  string    `json:"partitionKey"`
	Sequence      int64     `json:"sequence"`
	OccurredAt    time.Time `json:"occurredAt"`
	Schema        string    `json:"schema"`
	Payload       T         `json:"payload"`
}

// EventMeta is the request-scoped part of an envelope.
type EventMeta struct {
	CorrelationID string
	CausationID   string
	PartitionKey  string
}

const envelopeVersion = 1

func newEnvelope[T any](name, schema string, meta EventMeta, seq int64, producer string, payload T, occurredAt time.Time) EventEnvelope[T] {
	return EventEnvelope[T]{
		EventName:     name,
		EventVersion:  envelopeVersion,
		EventID:       uuid.NewString(),
		CorrelationID: meta.CorrelationID,
		CausationID:   meta.CausationID,
		Producer:      producer,
		PartitionKey:  meta.PartitionKey,
		Sequence:      seq,
		OccurredAt:    occurredAt,
		Schema:        schema,
		Payload:       payload,
	}
}

// Validate reports every header problem at once.
func (e EventEnvelope[T]) Validate(name string, version int) error {
	var errs []error
	if e.EventName != name {
		errs = append(errs, fmt.Errorf("eventName %q, want %q", e.EventName, name))
	}
	if e.EventVersion != version {
		errs = append(errs, fmt.Errorf("eventVersion %d, want %d", e.EventVersion, version))
	}
	if _, err := uuid.Parse(e.EventID); err != nil {
		errs = append(errs, fmt.Errorf("eventId: %w", err))
	}
	if e.PartitionKey == "" {
		errs = append(errs, errors.New("missing partitionKey"))
	}
	if e.Sequence < 1 {
		errs = append(errs, fmt.Errorf("sequence %d out of range", e.Sequence))
	}
	if e.OccurredAt.IsZero() {
		errs = append(errs, errors.New("missing occurredAt"))
	}
	return errors.Join(errs...)
}
