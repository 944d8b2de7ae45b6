package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/heuristic-logix/backoffice/pkg/enums"
)

// OutboxEvent is the durable record of one outbound event: the intent to
// publish, written in the same transaction as the business mutation that
// caused it. Rows are append-mostly. The writer creates them, the dispatcher
// owns every later mutation, and nothing deletes them.
type OutboxEvent struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	EventType     enums.OutboxEventType `gorm:"column:event_type;not null" json:"event_type"`
	Topic         string                `gorm:"column:topic;not null" json:"topic"`
	AggregateID   string                `gorm:"column:aggregate_id;not null" json:"aggregate_id"`
	Payload       json.RawMessage       `gorm:"column:payload;type:jsonb;not null" json:"payload"`
	CorrelationID *string               `gorm:"column:correlation_id" json:"correlation_id,omitempty"`
	Metadata      json.RawMessage       `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	Status        enums.OutboxStatus    `gorm:"column:status;not null;default:pending" json:"status"`
	AttemptCount  int                   `gorm:"column:attempt_count;not null;default:0" json:"attempt_count"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	PublishedAt   *time.Time            `gorm:"column:published_at" json:"published_at,omitempty"`
	LastAttemptAt *time.Time            `gorm:"column:last_attempt_at" json:"last_attempt_at,omitempty"`
	LastError     *string               `gorm:"column:last_error" json:"last_error,omitempty"`
}

// TableName pins the table to the migration schema.
func (OutboxEvent) TableName() string {
	return "outbox_events"
}
