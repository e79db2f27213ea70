package notifications

import (
	"context"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk-backend/internal/receipts"
	"github.com/angelmondragon/orderdesk-backend/pkg/db/models"
	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
	"github.com/angelmondragon/orderdesk-backend/pkg/money"
	"github.com/angelmondragon/orderdesk-backend/pkg/outbox"
	"github.com/angelmondragon/orderdesk-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/orderdesk-backend/pkg/outbox/registry"
)

const inboxConsumer = "order-inbox"

type inboxWriter interface {
	Create(ctx context.Context, notification *models.Notification) (bool, error)
}

type eventGuard interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type messageReceiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// Consumer turns order events from the outbox topic into operator inbox entries.
type Consumer struct {
	repo         inboxWriter
	subscription messageReceiver
	idempotency  eventGuard
	decoders     *registry.Decoders
	logg         *logger.Logger
}

// NewConsumer builds the order inbox consumer.
func NewConsumer(repo inboxWriter, subscription messageReceiver, guard eventGuard, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("orders subscription required")
	}
	if guard == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}

	decoders := registry.NewDecoders()
	registry.DecodeAs[payloads.OrderCreatedEvent](decoders, enums.EventOrderCreated, 1)
	registry.DecodeAs[payloads.OrderStatusChangedEvent](decoders, enums.EventOrderStatusChanged, 1)

	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  guard,
		decoders:     decoders,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if !eventType.IsValid() {
		c.logg.Info(logCtx, "skipping unknown event")
		return processResult{ack: true}
	}

	envelope, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	eventID := envelope.EventID
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	claimed, err := c.idempotency.Claim(ctx, inboxConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if !claimed {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	payload, err := c.decoders.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		c.release(logCtx, eventID)
		return processResult{nack: true}
	}

	if err := c.handlePayload(ctx, logCtx, payload); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		c.release(logCtx, eventID)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (c *Consumer) handlePayload(ctx, logCtx context.Context, payload any) error {
	switch p := payload.(type) {
	case payloads.OrderCreatedEvent:
		return c.createNewOrderNotification(ctx, logCtx, p)
	case payloads.OrderStatusChangedEvent:
		if p.ToStatus != enums.OrderStatusCancelled {
			c.logg.Debug(logCtx, "status not handled")
			return nil
		}
		return c.createCancelledNotification(ctx, logCtx, p)
	default:
		return fmt.Errorf("unexpected payload %T", payload)
	}
}

func (c *Consumer) createNewOrderNotification(ctx, logCtx context.Context, p payloads.OrderCreatedEvent) error {
	if p.TenantID == uuid.Nil || p.OrderID == uuid.Nil {
		return fmt.Errorf("tenant or order id missing")
	}
	orderID := p.OrderID
	notification := &models.Notification{
		ID:       uuid.New(),
		TenantID: p.TenantID,
		OrderID:  &orderID,
		Type:     enums.NotificationTypeNewOrder,
		Title:    fmt.Sprintf("Novo pedido #%s", shortOrderID(p.OrderID)),
		Message: fmt.Sprintf("%s fez um pedido de %s (%s).",
			p.CustomerName, money.FormatBRL(p.TotalAmount), p.DeliveryType.Label()),
		Link:      stringPtr(orderLink(p.OrderID)),
		CreatedAt: eventTime(p.CreatedAt),
	}
	return c.store(ctx, logCtx, notification)
}

func (c *Consumer) createCancelledNotification(ctx, logCtx context.Context, p payloads.OrderStatusChangedEvent) error {
	if p.TenantID == uuid.Nil || p.OrderID == uuid.Nil {
		return fmt.Errorf("tenant or order id missing")
	}
	orderID := p.OrderID
	notification := &models.Notification{
		ID:        uuid.New(),
		TenantID:  p.TenantID,
		OrderID:   &orderID,
		Type:      enums.NotificationTypeOrderCancelled,
		Title:     fmt.Sprintf("Pedido #%s cancelado", shortOrderID(p.OrderID)),
		Message:   fmt.Sprintf("O pedido saiu de \"%s\" para \"%s\".", p.FromStatus.Label(), p.ToStatus.Label()),
		Link:      stringPtr(orderLink(p.OrderID)),
		CreatedAt: eventTime(p.ChangedAt),
	}
	return c.store(ctx, logCtx, notification)
}

func (c *Consumer) store(ctx, logCtx context.Context, notification *models.Notification) error {
	created, err := c.repo.Create(ctx, notification)
	if err != nil {
		return err
	}
	if !created {
		c.logg.Info(logCtx, "inbox entry already exists")
		return nil
	}
	c.logg.Info(c.logg.WithFields(logCtx, map[string]any{
		"tenant_id": notification.TenantID.String(),
		"type":      notification.Type,
	}), "inbox entry created")
	return nil
}

func (c *Consumer) release(ctx context.Context, eventID uuid.UUID) {
	if err := c.idempotency.Release(ctx, inboxConsumer, eventID); err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "idempotency release failed; redelivery will be skipped")
	}
}

func shortOrderID(id uuid.UUID) string {
	return receipts.ShortID(models.Order{ID: id})
}

func eventTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func orderLink(orderID uuid.UUID) string {
	return "/operator/orders/" + orderID.String()
}

func stringPtr(value string) *string {
	return &value
}
