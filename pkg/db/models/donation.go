package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zerohunger/zerohunger-backend/pkg/enums"
)

// Donation is a donor-offered batch of food awaiting a courier.
type Donation struct {
	ID          uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	DonorID     uuid.UUID            `gorm:"column:donor_id;type:uuid;not null;index"`
	Title       string               `gorm:"column:title;type:varchar(255);not null"`
	Description *string              `gorm:"column:description;type:text"`
	QuantityKg  decimal.Decimal      `gorm:"column:quantity_kg;type:numeric(8,2);not null"`
	Status      enums.DonationStatus `gorm:"column:status;type:donation_status_enum;not null;index"`
	PickupCode  *string              `gorm:"column:pickup_code;type:char(6)"`
	Latitude    float64              `gorm:"column:latitude;type:numeric(10,7);not null"`
	Longitude   float64              `gorm:"column:longitude;type:numeric(10,7);not null"`
	ExpiresAt   *time.Time           `gorm:"column:expires_at"`
	CreatedAt   time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time            `gorm:"column:updated_at;autoUpdateTime"`

	Claim *Claim `gorm:"foreignKey:DonationID;references:ID"`
}

// IsExpired reports whether the donation's expiry has passed at now.
func (d Donation) IsExpired(now time.Time) bool {
	return d.ExpiresAt != nil && !d.ExpiresAt.After(now)
}

// IsClaimable reports whether a courier may reserve the donation at now.
func (d Donation) IsClaimable(now time.Time) bool {
	return d.Status == enums.DonationStatusAvailable && !d.IsExpired(now)
}
