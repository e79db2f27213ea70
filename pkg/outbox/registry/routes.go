package registry

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk-backend/pkg/config"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	"github.com/angelmondragon/orderdesk-backend/pkg/outbox"
	"github.com/angelmondragon/orderdesk-backend/pkg/outbox/payloads"
)

// ErrPermanent marks failures that no retry can fix: unknown events, malformed rows
// and missing topics. The publisher dead-letters them straight away.
var ErrPermanent = errors.New("permanent outbox failure")

// Permanent wraps err with ErrPermanent.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// IsPermanent reports whether err, or anything it wraps, is permanent.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

type route struct {
	aggregate enums.OutboxAggregateType
	topic     string
}

// Resolved is an outbox row checked against its route and decoded.
type Resolved struct {
	Topic    string
	Envelope outbox.Envelope
	Payload  any
}

// Routes sends each known event type to its topic after checking that the stored
// envelope decodes into the payload the consumers expect.
type Routes struct {
	byType   map[enums.OutboxEventType]route
	decoders *Decoders
}

// NewRoutes wires the order events to the configured orders topic.
func NewRoutes(cfg config.PubSubConfig) (*Routes, error) {
	if cfg.OrdersTopic == "" {
		return nil, fmt.Errorf("orders topic is required")
	}

	decoders := NewDecoders()
	DecodeAs[payloads.OrderCreatedEvent](decoders, enums.EventOrderCreated, outbox.CurrentVersion)
	DecodeAs[payloads.OrderStatusChangedEvent](decoders, enums.EventOrderStatusChanged, outbox.CurrentVersion)

	return &Routes{
		byType: map[enums.OutboxEventType]route{
			enums.EventOrderCreated:       {aggregate: enums.AggregateOrder, topic: cfg.OrdersTopic},
			enums.EventOrderStatusChanged: {aggregate: enums.AggregateOrder, topic: cfg.OrdersTopic},
		},
		decoders: decoders,
	}, nil
}

// Resolve validates the row and decodes its typed payload. Every error it returns is
// permanent.
func (r *Routes) Resolve(event models.OutboxEvent) (*Resolved, error) {
	rt, ok := r.byType[event.EventType]
	if !ok {
		return nil, Permanent(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if rt.aggregate != event.AggregateType {
		return nil, Permanent(fmt.Errorf("aggregate mismatch: expected %s got %s", rt.aggregate, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, Permanent(errors.New("missing aggregate_id"))
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, Permanent(err)
	}
	payload, err := r.decoders.Decode(event.EventType, envelope.Version, envelope.Data)
	if err != nil {
		return nil, Permanent(err)
	}
	return &Resolved{Topic: rt.topic, Envelope: envelope, Payload: payload}, nil
}
