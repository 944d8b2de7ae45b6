package enums

import "fmt"

// OutboxStatus maps to the outbox_status enum in Postgres.
//
// The machine only moves forward: pending -> published or pending -> failed.
// Both published and failed are terminal.
type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "pending"
	OutboxPublished OutboxStatus = "published"
	OutboxFailed    OutboxStatus = "failed"
)

var validOutboxStatuses = []OutboxStatus{
	OutboxPending,
	OutboxPublished,
	OutboxFailed,
}

// IsValid reports whether the value matches the canonical outbox_status enum.
func (s OutboxStatus) IsValid() bool {
	for _, candidate := range validOutboxStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the dispatcher may still touch the record.
func (s OutboxStatus) IsTerminal() bool {
	return s == OutboxPublished || s == OutboxFailed
}

// ParseOutboxStatus converts raw input into OutboxStatus.
func ParseOutboxStatus(value string) (OutboxStatus, error) {
	for _, candidate := range validOutboxStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox status %q", value)
}

// OutboxEventType tags the business meaning of an event record. The set is
// open: producers own their tags, the pipeline never interprets them. The
// constants below are the tags the back office emits today.
type OutboxEventType string

const (
	EventConduceCreated         OutboxEventType = "conduce_created"
	EventConduceDispatched      OutboxEventType = "conduce_dispatched"
	EventConduceDelivered       OutboxEventType = "conduce_delivered"
	EventTruckAssigned          OutboxEventType = "truck_assigned"
	EventExpertDecisionRecorded OutboxEventType = "expert_decision_recorded"
	EventTelemetryRecorded      OutboxEventType = "telemetry_recorded"
)

// OutboxAggregateType names the kind of business entity an event concerns.
type OutboxAggregateType string

const (
	AggregateConduce OutboxAggregateType = "conduce"
	AggregateTruck   OutboxAggregateType = "truck"
	AggregateOrder   OutboxAggregateType = "order"
)
