package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zerohunger/zerohunger-backend/pkg/enums"
)

// ImpactEntry is an append-only points credit. DedupeKey makes replayed
// scoring tasks idempotent.
type ImpactEntry struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	UserID     uuid.UUID          `gorm:"column:user_id;type:uuid;not null;index"`
	ClaimID    uuid.UUID          `gorm:"column:claim_id;type:uuid;not null"`
	DonationID uuid.UUID          `gorm:"column:donation_id;type:uuid;not null"`
	Action     enums.ImpactAction `gorm:"column:action;type:impact_action_enum;not null"`
	QuantityKg decimal.Decimal    `gorm:"column:quantity_kg;type:numeric(8,2);not null"`
	Points     int64              `gorm:"column:points;not null"`
	DedupeKey  string             `gorm:"column:dedupe_key;type:varchar(128);not null;uniqueIndex:ux_impact_entries_dedupe_key"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
}
