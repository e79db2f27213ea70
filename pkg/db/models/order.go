package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
)

// OrderAddress is the delivery destination captured at checkout.
type OrderAddress struct {
	Street       string `json:"street"`
	Number       string `json:"number"`
	Neighborhood string `json:"neighborhood"`
	Complement   string `json:"complement,omitempty"`
}

// SelectedVariant is one chosen option snapshotted on a cart item or order line.
type SelectedVariant struct {
	Group string          `json:"group"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// OrderLine is an immutable snapshot of a cart item at submission time.
type OrderLine struct {
	ProductID  uuid.UUID         `json:"productId"`
	Name       string            `json:"name"`
	Quantity   int               `json:"quantity"`
	UnitPrice  decimal.Decimal   `json:"unitPrice"`
	FinalPrice *decimal.Decimal  `json:"finalPrice,omitempty"`
	Notes      string            `json:"notes,omitempty"`
	Variants   []SelectedVariant `json:"variants,omitempty"`
}

// EffectivePrice is the snapshotted final price, or the unit price when absent.
func (l OrderLine) EffectivePrice() decimal.Decimal {
	if l.FinalPrice != nil {
		return *l.FinalPrice
	}
	return l.UnitPrice
}

// Order is immutable after creation except for Status.
type Order struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TenantID      uuid.UUID          `gorm:"column:tenant_id;type:uuid;not null" json:"tenantId"`
	CustomerID    *uuid.UUID         `gorm:"column:customer_id;type:uuid" json:"customerId,omitempty"`
	CustomerName  string             `gorm:"column:customer_name;not null" json:"customerName"`
	CustomerPhone string             `gorm:"column:customer_phone;not null" json:"customerPhone"`
	DeliveryType  enums.DeliveryType `gorm:"column:delivery_type;not null" json:"deliveryType"`
	Address       *OrderAddress      `gorm:"column:address;serializer:json" json:"address,omitempty"`
	DeliveryFee   decimal.Decimal    `gorm:"column:delivery_fee;type:numeric(12,2);not null" json:"deliveryFee"`
	PaymentMethod string             `gorm:"column:payment_method;not null" json:"paymentMethod"`
	ChangeFor     *decimal.Decimal   `gorm:"column:change_for;type:numeric(12,2)" json:"changeFor,omitempty"`
	Lines         []OrderLine        `gorm:"column:lines;serializer:json" json:"lines"`
	TotalAmount   decimal.Decimal    `gorm:"column:total_amount;type:numeric(12,2);not null" json:"totalAmount"`
	Status        enums.OrderStatus  `gorm:"column:status;not null" json:"status"`
	CreatedAt     time.Time          `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt     time.Time          `gorm:"column:updated_at" json:"updatedAt"`
}

func (Order) TableName() string { return "orders" }

// Subtotal is the items total, derived from the stored total and fee.
func (o Order) Subtotal() decimal.Decimal {
	return o.TotalAmount.Sub(o.DeliveryFee)
}
