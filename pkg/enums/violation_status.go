package enums

import "fmt"

// ViolationStatus tracks the lifecycle of a violation record.
type ViolationStatus string

const (
	ViolationStatusPending   ViolationStatus = "pending"
	ViolationStatusPaid      ViolationStatus = "paid"
	ViolationStatusDisputed  ViolationStatus = "disputed"
	ViolationStatusDismissed ViolationStatus = "dismissed"
	ViolationStatusOverdue   ViolationStatus = "overdue"
	ViolationStatusCancelled ViolationStatus = "cancelled"
)

var validViolationStatuses = []ViolationStatus{
	ViolationStatusPending,
	ViolationStatusPaid,
	ViolationStatusDisputed,
	ViolationStatusDismissed,
	ViolationStatusOverdue,
	ViolationStatusCancelled,
}

// String implements fmt.Stringer.
func (v ViolationStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known ViolationStatus.
func (v ViolationStatus) IsValid() bool {
	for _, candidate := range validViolationStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed from the status.
func (v ViolationStatus) IsTerminal() bool {
	switch v {
	case ViolationStatusPaid, ViolationStatusDismissed, ViolationStatusCancelled:
		return true
	default:
		return false
	}
}

// IsPayable reports whether a payment may still be initiated for the status.
// Overdue violations remain payable; the late status only affects reporting.
func (v ViolationStatus) IsPayable() bool {
	return v == ViolationStatusPending || v == ViolationStatusOverdue
}

// ParseViolationStatus converts raw input into a ViolationStatus.
func ParseViolationStatus(value string) (ViolationStatus, error) {
	for _, candidate := range validViolationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid violation status %q", value)
}
