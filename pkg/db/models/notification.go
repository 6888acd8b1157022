package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ovrpay/ovrpay-backend/pkg/enums"
)

// Notification is an in-app message for a citizen or operator. UserID is
// nil for broadcast rows surfaced by plate lookup.
type Notification struct {
	ID       uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID   *uuid.UUID             `gorm:"column:user_id;type:uuid"`
	Type     enums.NotificationType `gorm:"column:type;not null"`
	Title    string                 `gorm:"column:title;not null"`
	Message  string                 `gorm:"column:message;not null"`
	LinkURL  *string                `gorm:"column:link_url"`
	LinkText *string                `gorm:"column:link_text"`
	ReadAt   *time.Time             `gorm:"column:read_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName implements the GORM naming hook.
func (Notification) TableName() string {
	return "notifications"
}

// IsRead reports whether the recipient has opened the notification.
func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}
