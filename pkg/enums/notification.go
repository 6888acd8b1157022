package enums

import "fmt"

// NotificationType identifies the event a notification describes.
type NotificationType string

const (
	NotificationTypeViolationIssued  NotificationType = "violation_issued"
	NotificationTypePaymentReceipt   NotificationType = "payment_receipt"
	NotificationTypeDisputeSubmitted NotificationType = "dispute_submitted"
	NotificationTypeDisputeResolved  NotificationType = "dispute_resolved"
	NotificationTypeViolationOverdue NotificationType = "violation_overdue"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeViolationIssued,
	NotificationTypePaymentReceipt,
	NotificationTypeDisputeSubmitted,
	NotificationTypeDisputeResolved,
	NotificationTypeViolationOverdue,
}

// String implements fmt.Stringer.
func (n NotificationType) String() string {
	return string(n)
}

// IsValid reports whether the value is a known NotificationType.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw input into a NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
