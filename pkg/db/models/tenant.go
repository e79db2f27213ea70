package models

import (
	"time"

	"github.com/google/uuid"
)

// BusinessWindow is one opening window of a weekday, in "HH:MM" local time.
// A window whose close is earlier than its open runs past midnight.
type BusinessWindow struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// BusinessHours maps a lowercase English weekday ("monday") to its opening windows.
type BusinessHours map[string][]BusinessWindow

// Tenant stores the company profile and the operational settings read by the order core.
type Tenant struct {
	ID                       uuid.UUID     `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name                     string        `gorm:"column:name;not null" json:"name"`
	Phone                    string        `gorm:"column:phone;not null;default:''" json:"phone"`
	Address                  string        `gorm:"column:address;not null;default:''" json:"address"`
	Timezone                 string        `gorm:"column:timezone;not null;default:'America/Sao_Paulo'" json:"timezone"`
	ClosedMessage            *string       `gorm:"column:closed_message" json:"closedMessage,omitempty"`
	SoundNotificationEnabled *bool         `gorm:"column:sound_notification_enabled" json:"soundNotificationEnabled,omitempty"`
	AutoPrintEnabled         *bool         `gorm:"column:auto_print_enabled" json:"autoPrintEnabled,omitempty"`
	PaymentMethodsEnabled    []string      `gorm:"column:payment_methods_enabled;serializer:json" json:"paymentMethodsEnabled"`
	BusinessHours            BusinessHours `gorm:"column:business_hours;serializer:json" json:"businessHours"`
	CreatedAt                time.Time     `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt                time.Time     `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (Tenant) TableName() string { return "tenants" }
