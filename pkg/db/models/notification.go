package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk-backend/pkg/enums"
)

// Notification is an operator inbox entry scoped to a tenant.
type Notification struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TenantID  uuid.UUID              `gorm:"column:tenant_id;type:uuid;not null" json:"tenantId"`
	OrderID   *uuid.UUID             `gorm:"column:order_id;type:uuid" json:"orderId,omitempty"`
	Type      enums.NotificationType `gorm:"column:type;not null" json:"type"`
	Title     string                 `gorm:"column:title;not null" json:"title"`
	Message   string                 `gorm:"column:message;not null" json:"message"`
	Link      *string                `gorm:"column:link" json:"link,omitempty"`
	ReadAt    *time.Time             `gorm:"column:read_at" json:"readAt,omitempty"`
	CreatedAt time.Time              `gorm:"column:created_at" json:"createdAt"`
}

func (Notification) TableName() string { return "notifications" }
