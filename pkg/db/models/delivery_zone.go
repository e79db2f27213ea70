package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DeliveryZone prices delivery to one neighborhood of a tenant.
type DeliveryZone struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TenantID     uuid.UUID       `gorm:"column:tenant_id;type:uuid;not null" json:"tenantId"`
	Neighborhood string          `gorm:"column:neighborhood;not null" json:"neighborhood"`
	DeliveryFee  decimal.Decimal `gorm:"column:delivery_fee;type:numeric(12,2);not null" json:"deliveryFee"`
	DeliveryTime string          `gorm:"column:delivery_time;not null;default:''" json:"deliveryTime"`
	IsActive     bool            `gorm:"column:is_active;not null;default:true" json:"isActive"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (DeliveryZone) TableName() string { return "delivery_zones" }
