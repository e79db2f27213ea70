package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	"github.com/angelmondragon/orderdesk-backend/pkg/outbox"
	"github.com/angelmondragon/orderdesk-backend/pkg/outbox/payloads"
)

type recordingWriter struct {
	created []models.Notification
	dup     bool
	err     error
}

func (w *recordingWriter) Create(_ context.Context, n *models.Notification) (bool, error) {
	if w.err != nil {
		return false, w.err
	}
	if w.dup {
		return false, nil
	}
	w.created = append(w.created, *n)
	return true, nil
}

type memoryGuard struct {
	seen     map[uuid.UUID]bool
	err      error
	released []uuid.UUID
}

func (g *memoryGuard) Claim(_ context.Context, _ string, id uuid.UUID) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	if g.seen == nil {
		g.seen = map[uuid.UUID]bool{}
	}
	if g.seen[id] {
		return false, nil
	}
	g.seen[id] = true
	return true, nil
}

func (g *memoryGuard) Release(_ context.Context, _ string, id uuid.UUID) error {
	delete(g.seen, id)
	g.released = append(g.released, id)
	return nil
}

type idleReceiver struct{}

func (idleReceiver) Receive(ctx context.Context, _ func(context.Context, *pubsub.Message)) error {
	<-ctx.Done()
	return nil
}

func newTestConsumer(t *testing.T, writer *recordingWriter, guard *memoryGuard) *Consumer {
	t.Helper()
	c, err := NewConsumer(writer, idleReceiver{}, guard, testLogger())
	require.NoError(t, err)
	return c
}

func eventMessage(t *testing.T, eventType enums.OutboxEventType, version int, eventID uuid.UUID, data any) *pubsub.Message {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	body, err := json.Marshal(outbox.Envelope{
		Version:    version,
		EventID:    eventID,
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	require.NoError(t, err)
	return &pubsub.Message{
		ID:         "msg-" + eventID.String(),
		Data:       body,
		Attributes: map[string]string{"event_type": string(eventType)},
	}
}

func TestNewConsumerRequiresDependencies(t *testing.T) {
	_, err := NewConsumer(nil, idleReceiver{}, &memoryGuard{}, testLogger())
	assert.Error(t, err)
	_, err = NewConsumer(&recordingWriter{}, nil, &memoryGuard{}, testLogger())
	assert.Error(t, err)
	_, err = NewConsumer(&recordingWriter{}, idleReceiver{}, nil, testLogger())
	assert.Error(t, err)
}

func TestConsumerCreatesNewOrderEntry(t *testing.T) {
	writer := &recordingWriter{}
	c := newTestConsumer(t, writer, &memoryGuard{})

	orderID := uuid.MustParse("3f2a9c1e-0000-4000-8000-000000000001")
	tenantID := uuid.New()
	createdAt := time.Date(2026, 3, 4, 22, 15, 0, 0, time.UTC)
	msg := eventMessage(t, enums.EventOrderCreated, 1, uuid.New(), payloads.OrderCreatedEvent{
		OrderID:      orderID,
		TenantID:     tenantID,
		CustomerName: "Maria",
		DeliveryType: enums.DeliveryTypeDelivery,
		Status:       enums.OrderStatusNew,
		TotalAmount:  decimal.RequireFromString("45"),
		CreatedAt:    createdAt,
	})

	result := c.process(context.Background(), msg)
	assert.Equal(t, processResult{ack: true}, result)

	require.Len(t, writer.created, 1)
	n := writer.created[0]
	assert.Equal(t, tenantID, n.TenantID)
	assert.Equal(t, orderID, *n.OrderID)
	assert.Equal(t, enums.NotificationTypeNewOrder, n.Type)
	assert.Equal(t, "Novo pedido #3F2A9C1E", n.Title)
	assert.Contains(t, n.Message, "Maria fez um pedido de R$")
	assert.Contains(t, n.Message, "(Entrega)")
	assert.Equal(t, "/operator/orders/"+orderID.String(), *n.Link)
	assert.Equal(t, createdAt, n.CreatedAt)
}

func TestConsumerHandlesOnlyCancellations(t *testing.T) {
	writer := &recordingWriter{}
	c := newTestConsumer(t, writer, &memoryGuard{})
	orderID := uuid.New()

	preparing := eventMessage(t, enums.EventOrderStatusChanged, 1, uuid.New(), payloads.OrderStatusChangedEvent{
		OrderID: orderID, TenantID: uuid.New(), FromStatus: enums.OrderStatusNew, ToStatus: enums.OrderStatusPreparing,
	})
	assert.Equal(t, processResult{ack: true}, c.process(context.Background(), preparing))
	assert.Empty(t, writer.created)

	cancelled := eventMessage(t, enums.EventOrderStatusChanged, 1, uuid.New(), payloads.OrderStatusChangedEvent{
		OrderID: orderID, TenantID: uuid.New(), FromStatus: enums.OrderStatusPreparing, ToStatus: enums.OrderStatusCancelled,
	})
	assert.Equal(t, processResult{ack: true}, c.process(context.Background(), cancelled))
	require.Len(t, writer.created, 1)
	assert.Equal(t, enums.NotificationTypeOrderCancelled, writer.created[0].Type)
	assert.False(t, writer.created[0].CreatedAt.IsZero())
}

func TestConsumerSkipsRedeliveredEvents(t *testing.T) {
	writer := &recordingWriter{}
	guard := &memoryGuard{}
	c := newTestConsumer(t, writer, guard)

	msg := eventMessage(t, enums.EventOrderCreated, 1, uuid.New(), payloads.OrderCreatedEvent{
		OrderID: uuid.New(), TenantID: uuid.New(), CustomerName: "João", DeliveryType: enums.DeliveryTypePickup,
	})
	assert.Equal(t, processResult{ack: true}, c.process(context.Background(), msg))
	assert.Equal(t, processResult{ack: true}, c.process(context.Background(), msg))
	assert.Len(t, writer.created, 1)
}

func TestConsumerAcksPoisonMessages(t *testing.T) {
	writer := &recordingWriter{}
	c := newTestConsumer(t, writer, &memoryGuard{})

	unknown := &pubsub.Message{ID: "1", Data: []byte(`{}`), Attributes: map[string]string{"event_type": "order_paid"}}
	assert.Equal(t, processResult{ack: true}, c.process(context.Background(), unknown))

	garbage := &pubsub.Message{ID: "2", Data: []byte(`not json`), Attributes: map[string]string{"event_type": string(enums.EventOrderCreated)}}
	assert.Equal(t, processResult{ack: true}, c.process(context.Background(), garbage))

	badID := &pubsub.Message{ID: "3", Data: []byte(`{"version":1,"eventId":"nope","data":{}}`), Attributes: map[string]string{"event_type": string(enums.EventOrderCreated)}}
	assert.Equal(t, processResult{ack: true}, c.process(context.Background(), badID))
	assert.Empty(t, writer.created)
}

func TestConsumerNacksAndReleasesOnFailure(t *testing.T) {
	writer := &recordingWriter{err: errors.New("db down")}
	guard := &memoryGuard{}
	c := newTestConsumer(t, writer, guard)
	eventID := uuid.New()

	msg := eventMessage(t, enums.EventOrderCreated, 1, eventID, payloads.OrderCreatedEvent{
		OrderID: uuid.New(), TenantID: uuid.New(), CustomerName: "Ana", DeliveryType: enums.DeliveryTypeDelivery,
	})
	assert.Equal(t, processResult{nack: true}, c.process(context.Background(), msg))
	assert.Equal(t, []uuid.UUID{eventID}, guard.released)

	// unknown version is a decode failure
	v9 := eventMessage(t, enums.EventOrderCreated, 9, uuid.New(), payloads.OrderCreatedEvent{})
	assert.Equal(t, processResult{nack: true}, c.process(context.Background(), v9))

	guard.err = errors.New("redis down")
	assert.Equal(t, processResult{nack: true}, c.process(context.Background(), eventMessage(t, enums.EventOrderCreated, 1, uuid.New(), payloads.OrderCreatedEvent{})))
}

func TestConsumerTreatsDuplicateEntryAsDone(t *testing.T) {
	writer := &recordingWriter{dup: true}
	c := newTestConsumer(t, writer, &memoryGuard{})

	msg := eventMessage(t, enums.EventOrderCreated, 1, uuid.New(), payloads.OrderCreatedEvent{
		OrderID: uuid.New(), TenantID: uuid.New(), CustomerName: "Ana", DeliveryType: enums.DeliveryTypeDelivery,
	})
	assert.Equal(t, processResult{ack: true}, c.process(context.Background(), msg))
}

func TestConsumerRunStopsWithContext(t *testing.T) {
	c := newTestConsumer(t, &recordingWriter{}, &memoryGuard{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, c.Run(ctx))
}
