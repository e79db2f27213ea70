package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VariantItem is one priced option inside a VariantGroup.
type VariantItem struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// VariantGroup is a named option group. Min == Max == 1 makes it single-choice.
type VariantGroup struct {
	Name  string        `json:"name"`
	Min   int           `json:"min"`
	Max   int           `json:"max"`
	Items []VariantItem `json:"items"`
}

// SingleChoice reports whether the group behaves like a radio selector.
func (g VariantGroup) SingleChoice() bool {
	return g.Min == 1 && g.Max == 1
}

// Product is a tenant menu entry.
type Product struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TenantID      uuid.UUID       `gorm:"column:tenant_id;type:uuid;not null" json:"tenantId"`
	Name          string          `gorm:"column:name;not null" json:"name"`
	Description   string          `gorm:"column:description;not null;default:''" json:"description"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null" json:"price"`
	Category      string          `gorm:"column:category;not null;default:''" json:"category"`
	ImageURL      *string         `gorm:"column:image_url" json:"imageUrl,omitempty"`
	IsActive      bool            `gorm:"column:is_active;not null;default:true" json:"isActive"`
	VariantGroups []VariantGroup  `gorm:"column:variant_groups;serializer:json" json:"variantGroups"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (Product) TableName() string { return "products" }
