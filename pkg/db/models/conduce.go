package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/heuristic-logix/backoffice/pkg/enums"
)

// Conduce is a delivery note: one truckload of material headed to a client.
type Conduce struct {
	ID                  uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ConduceNumber       string              `gorm:"column:conduce_number;not null;uniqueIndex:ux_conduces_number" json:"conduce_number"`
	ClientName          string              `gorm:"column:client_name;not null" json:"client_name"`
	DeliveryAddress     string              `gorm:"column:delivery_address;not null" json:"delivery_address"`
	MaterialDescription string              `gorm:"column:material_description;not null" json:"material_description"`
	Quantity            decimal.Decimal     `gorm:"column:quantity;type:numeric(12,3);not null" json:"quantity"`
	Unit                string              `gorm:"column:unit;not null" json:"unit"`
	TotalWeightKg       decimal.Decimal     `gorm:"column:total_weight_kg;type:numeric(12,3);not null" json:"total_weight_kg"`
	TruckPlate          *string             `gorm:"column:truck_plate" json:"truck_plate,omitempty"`
	Status              enums.ConduceStatus `gorm:"column:status;not null;default:draft" json:"status"`
	Notes               *string             `gorm:"column:notes" json:"notes,omitempty"`
	CreatedAt           time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName pins the table to the migration schema.
func (Conduce) TableName() string {
	return "conduces"
}
