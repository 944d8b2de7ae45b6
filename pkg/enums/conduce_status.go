package enums

import "fmt"

// ConduceStatus maps to the conduce_status enum in Postgres.
type ConduceStatus string

const (
	ConduceDraft      ConduceStatus = "draft"
	ConduceAssigned   ConduceStatus = "assigned"
	ConduceDispatched ConduceStatus = "dispatched"
	ConduceDelivered  ConduceStatus = "delivered"
	ConduceCanceled   ConduceStatus = "canceled"
)

var validConduceStatuses = []ConduceStatus{
	ConduceDraft,
	ConduceAssigned,
	ConduceDispatched,
	ConduceDelivered,
	ConduceCanceled,
}

// IsValid reports whether the value matches the canonical conduce_status enum.
func (s ConduceStatus) IsValid() bool {
	for _, candidate := range validConduceStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseConduceStatus converts raw input into ConduceStatus.
func ParseConduceStatus(value string) (ConduceStatus, error) {
	for _, candidate := range validConduceStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid conduce status %q", value)
}
