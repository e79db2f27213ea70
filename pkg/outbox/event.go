package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
)

// CurrentVersion is the payload version written by Emit when the event names none.
const CurrentVersion = 1

// DomainEvent is what the order store hands to Emit.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	TenantID      uuid.UUID
	// OperatorID is nil for customer checkouts.
	OperatorID *uuid.UUID
	Data       any
	Version    int
	OccurredAt time.Time
}

// Envelope is the JSON stored in outbox_events.payload and published verbatim. The
// event id equals the outbox row id.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    uuid.UUID       `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	TenantID   uuid.UUID       `json:"tenantId"`
	OperatorID *uuid.UUID      `json:"operatorId,omitempty"`
	Data       json.RawMessage `json:"data"`
}

var (
	errMissingEventID = errors.New("envelope has no event id")
	errMissingData    = errors.New("envelope has no data")
)

func newEnvelope(id uuid.UUID, event DomainEvent) (Envelope, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s data: %w", event.EventType, err)
	}
	version := event.Version
	if version <= 0 {
		version = CurrentVersion
	}
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	return Envelope{
		Version:    version,
		EventID:    id,
		OccurredAt: occurredAt.UTC(),
		TenantID:   event.TenantID,
		OperatorID: event.OperatorID,
		Data:       data,
	}, nil
}

// DecodeEnvelope parses a stored or delivered envelope and checks it carries an event
// id and a non-null payload.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if envelope.EventID == uuid.Nil {
		return Envelope{}, errMissingEventID
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Envelope{}, errMissingData
	}
	return envelope, nil
}
