package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/zerohunger/zerohunger-backend/pkg/enums"
)

// Claim is a courier's reservation of exactly one donation. The unique index
// on donation_id allows a single claim per donation for its lifetime.
type Claim struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	DonationID  uuid.UUID         `gorm:"column:donation_id;type:uuid;not null;uniqueIndex:ux_claims_donation_id"`
	CourierID   uuid.UUID         `gorm:"column:courier_id;type:uuid;not null;index"`
	Status      enums.ClaimStatus `gorm:"column:status;type:claim_status_enum;not null"`
	PickedUpAt  *time.Time        `gorm:"column:picked_up_at"`
	DeliveredAt *time.Time        `gorm:"column:delivered_at"`
	CancelledAt *time.Time        `gorm:"column:cancelled_at"`
	Notes       *string           `gorm:"column:notes;type:varchar(500)"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`

	Donation *Donation `gorm:"foreignKey:DonationID;references:ID"`
}
