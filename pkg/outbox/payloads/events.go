package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zerohunger/zerohunger-backend/pkg/enums"
)

// ClaimLifecycleEvent is emitted for every committed claim transition:
// donation_claimed, claim_picked_up, donation_delivered and claim_cancelled.
type ClaimLifecycleEvent struct {
	ClaimID        uuid.UUID         `json:"claim_id"`
	DonationID     uuid.UUID         `json:"donation_id"`
	DonorID        uuid.UUID         `json:"donor_id"`
	CourierID      uuid.UUID         `json:"courier_id"`
	Title          string            `json:"title"`
	QuantityKg     decimal.Decimal   `json:"quantity_kg"`
	Status         enums.ClaimStatus `json:"status"`
	PreviousStatus enums.ClaimStatus `json:"previous_status,omitempty"`
	PickupCode     string            `json:"pickup_code,omitempty"`
	Notes          *string           `json:"notes,omitempty"`
	OccurredAt     time.Time         `json:"occurred_at"`
}

// DonationLifecycleEvent is emitted when a donation is listed or expires
// without ever being claimed.
type DonationLifecycleEvent struct {
	DonationID uuid.UUID            `json:"donation_id"`
	DonorID    uuid.UUID            `json:"donor_id"`
	Title      string               `json:"title"`
	QuantityKg decimal.Decimal      `json:"quantity_kg"`
	Status     enums.DonationStatus `json:"status"`
	Latitude   float64              `json:"latitude"`
	Longitude  float64              `json:"longitude"`
	ExpiresAt  *time.Time           `json:"expires_at,omitempty"`
	OccurredAt time.Time            `json:"occurred_at"`
}
