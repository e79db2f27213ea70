package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
)

// ErrNoDecoder is returned for an event type/version pair no consumer registered.
var ErrNoDecoder = errors.New("no payload decoder")

type decoderKey struct {
	eventType enums.OutboxEventType
	version   int
}

// Decoders maps an envelope's event type and payload version to the Go type its data
// decodes into. Build it once at consumer start; it is read-only afterwards.
type Decoders struct {
	byKey map[decoderKey]func(json.RawMessage) (any, error)
}

func NewDecoders() *Decoders {
	return &Decoders{byKey: make(map[decoderKey]func(json.RawMessage) (any, error))}
}

// DecodeAs registers T as the payload of eventType at version. Decode then yields a T
// value, so consumers can type-switch on payload structs.
func DecodeAs[T any](d *Decoders, eventType enums.OutboxEventType, version int) *Decoders {
	d.byKey[decoderKey{eventType: eventType, version: version}] = func(raw json.RawMessage) (any, error) {
		var payload T
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("decode %s@v%d: %w", eventType, version, err)
		}
		return payload, nil
	}
	return d
}

func (d *Decoders) Decode(eventType enums.OutboxEventType, version int, raw json.RawMessage) (any, error) {
	decode, ok := d.byKey[decoderKey{eventType: eventType, version: version}]
	if !ok {
		return nil, fmt.Errorf("%w for %s@v%d", ErrNoDecoder, eventType, version)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("decode %s@v%d: empty payload", eventType, version)
	}
	return decode(raw)
}
