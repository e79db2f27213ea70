package enums

import "fmt"

// OrderStatus tracks where an order is in its fulfillment lifecycle.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "new"
	OrderStatusAwaitingPayment OrderStatus = "awaiting_payment"
	OrderStatusPreparing       OrderStatus = "preparing"
	OrderStatusOutForDelivery  OrderStatus = "out_for_delivery"
	OrderStatusReadyForPickup  OrderStatus = "ready_for_pickup"
	OrderStatusDelivered       OrderStatus = "delivered"
	OrderStatusCancelled       OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusNew,
	OrderStatusAwaitingPayment,
	OrderStatusPreparing,
	OrderStatusOutForDelivery,
	OrderStatusReadyForPickup,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

var orderStatusLabels = map[OrderStatus]string{
	OrderStatusNew:             "Novo",
	OrderStatusAwaitingPayment: "Aguardando pagamento",
	OrderStatusPreparing:       "Em preparo",
	OrderStatusOutForDelivery:  "Saiu para entrega",
	OrderStatusReadyForPickup:  "Pronto para retirada",
	OrderStatusDelivered:       "Entregue",
	OrderStatusCancelled:       "Cancelado",
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition may leave the status.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// Label returns the customer-facing name shown on trackers and receipts.
func (s OrderStatus) Label() string {
	if label, ok := orderStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

// PendingOrderStatuses are the statuses an order holds before the store starts working on it.
func PendingOrderStatuses() []OrderStatus {
	return []OrderStatus{OrderStatusNew, OrderStatusAwaitingPayment}
}
