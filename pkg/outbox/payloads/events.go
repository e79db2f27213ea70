package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
)

// OrderCreatedEvent is emitted in the checkout transaction of every new order.
type OrderCreatedEvent struct {
	OrderID      uuid.UUID          `json:"order_id"`
	TenantID     uuid.UUID          `json:"tenant_id"`
	CustomerName string             `json:"customer_name"`
	DeliveryType enums.DeliveryType `json:"delivery_type"`
	Status       enums.OrderStatus  `json:"status"`
	TotalAmount  decimal.Decimal    `json:"total_amount"`
	CreatedAt    time.Time          `json:"created_at"`
}

// OrderStatusChangedEvent is emitted whenever an order moves to a new status.
type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	TenantID   uuid.UUID         `json:"tenant_id"`
	FromStatus enums.OrderStatus `json:"from_status"`
	ToStatus   enums.OrderStatus `json:"to_status"`
	ChangedAt  time.Time         `json:"changed_at"`
}
