package conduces

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/heuristic-logix/backoffice/pkg/enums"
)

// CreateConduceInput captures the fields required to open a delivery note.
type CreateConduceInput struct {
	ConduceNumber       string
	ClientName          string
	DeliveryAddress     string
	MaterialDescription string
	Quantity            decimal.Decimal
	Unit                string
	TotalWeightKg       decimal.Decimal
	Notes               *string
	CorrelationID       *string
}

// AssignTruckInput assigns a truck to a draft conduce.
type AssignTruckInput struct {
	ConduceID     uuid.UUID
	TruckPlate    string
	CorrelationID *string
}

// ConduceFilters describe the inputs supported by the conduce list.
type ConduceFilters struct {
	Status *enums.ConduceStatus
	Query  string
}

// ConduceCreatedEvent is emitted when a delivery note is opened.
type ConduceCreatedEvent struct {
	ConduceID           uuid.UUID       `json:"conduce_id"`
	ConduceNumber       string          `json:"conduce_number"`
	ClientName          string          `json:"client_name"`
	MaterialDescription string          `json:"material_description"`
	Quantity            decimal.Decimal `json:"quantity"`
	Unit                string          `json:"unit"`
	TotalWeightKg       decimal.Decimal `json:"total_weight_kg"`
	CreatedAt           time.Time       `json:"created_at"`
}

// TruckAssignedEvent is emitted when a truck takes a conduce.
type TruckAssignedEvent struct {
	ConduceID     uuid.UUID `json:"conduce_id"`
	ConduceNumber string    `json:"conduce_number"`
	TruckPlate    string    `json:"truck_plate"`
}

// ConduceStatusEvent is emitted on dispatch and delivery.
type ConduceStatusEvent struct {
	ConduceID     uuid.UUID           `json:"conduce_id"`
	ConduceNumber string              `json:"conduce_number"`
	Status        enums.ConduceStatus `json:"status"`
	TruckPlate    *string             `json:"truck_plate,omitempty"`
}
