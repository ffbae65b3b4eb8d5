package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/zerohunger/zerohunger-backend/pkg/enums"
)

// Notification stores in-app notification payloads addressed to a user.
type Notification struct {
	ID         uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	UserID     uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index;uniqueIndex:ux_notifications_event_user"`
	Type       enums.NotificationType `gorm:"column:type;type:notification_type;not null"`
	Title      string                 `gorm:"column:title;type:text;not null"`
	Message    string                 `gorm:"column:message;type:text;not null"`
	DonationID *uuid.UUID             `gorm:"column:donation_id;type:uuid"`
	EventID    *uuid.UUID             `gorm:"column:event_id;type:uuid;uniqueIndex:ux_notifications_event_user"`
	ReadAt     *time.Time             `gorm:"column:read_at"`
	CreatedAt  time.Time              `gorm:"column:created_at;autoCreateTime"`
}
