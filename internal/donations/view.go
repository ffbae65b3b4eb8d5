package donations

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zerohunger/zerohunger-backend/pkg/db/models"
	"github.com/zerohunger/zerohunger-backend/pkg/enums"
	"github.com/zerohunger/zerohunger-backend/pkg/geo"
)

// View is the API representation of a donation. PickupCode is only filled
// for the donor and the courier holding the claim.
type View struct {
	ID          uuid.UUID            `json:"id"`
	DonorID     uuid.UUID            `json:"donor_id"`
	Title       string               `json:"title"`
	Description *string              `json:"description"`
	QuantityKg  decimal.Decimal      `json:"quantity_kg"`
	Status      enums.DonationStatus `json:"status"`
	PickupCode  *string              `json:"pickup_code"`
	Latitude    float64              `json:"latitude"`
	Longitude   float64              `json:"longitude"`
	ExpiresAt   *time.Time           `json:"expires_at"`
	IsExpired   bool                 `json:"is_expired"`
	IsAvailable bool                 `json:"is_available"`
	Claim       *ClaimView           `json:"claim"`
	DistanceKm  *float64             `json:"distance,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// ClaimView is the API representation of a claim.
type ClaimView struct {
	ID          uuid.UUID         `json:"id"`
	DonationID  uuid.UUID         `json:"donation_id"`
	CourierID   uuid.UUID         `json:"courier_id"`
	Status      enums.ClaimStatus `json:"status"`
	PickedUpAt  *time.Time        `json:"picked_up_at"`
	DeliveredAt *time.Time        `json:"delivered_at"`
	CancelledAt *time.Time        `json:"cancelled_at"`
	Notes       *string           `json:"notes"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Donation    *View             `json:"donation,omitempty"`
}

// NewView maps a donation for viewerID at now.
func NewView(d models.Donation, viewerID uuid.UUID, now time.Time) View {
	var courierID uuid.UUID
	if d.Claim != nil {
		courierID = d.Claim.CourierID
	}
	view := buildView(d, canSeePickupCode(d.DonorID, courierID, viewerID), now)
	if d.Claim != nil {
		claim := buildClaimView(*d.Claim)
		view.Claim = &claim
	}
	return view
}

// NewViews maps a slice of donations.
func NewViews(rows []models.Donation, viewerID uuid.UUID, now time.Time) []View {
	out := make([]View, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewView(row, viewerID, now))
	}
	return out
}

// NewClaimView maps a claim for viewerID, embedding its donation when loaded.
func NewClaimView(c models.Claim, viewerID uuid.UUID, now time.Time) ClaimView {
	view := buildClaimView(c)
	if c.Donation != nil {
		showCode := canSeePickupCode(c.Donation.DonorID, c.CourierID, viewerID)
		donation := buildView(*c.Donation, showCode, now)
		view.Donation = &donation
	}
	return view
}

func buildView(d models.Donation, showCode bool, now time.Time) View {
	view := View{
		ID:          d.ID,
		DonorID:     d.DonorID,
		Title:       d.Title,
		Description: d.Description,
		QuantityKg:  d.QuantityKg,
		Status:      d.Status,
		Latitude:    d.Latitude,
		Longitude:   d.Longitude,
		ExpiresAt:   d.ExpiresAt,
		IsExpired:   d.IsExpired(now),
		IsAvailable: d.IsClaimable(now),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if showCode {
		view.PickupCode = d.PickupCode
	}
	return view
}

func buildClaimView(c models.Claim) ClaimView {
	return ClaimView{
		ID:          c.ID,
		DonationID:  c.DonationID,
		CourierID:   c.CourierID,
		Status:      c.Status,
		PickedUpAt:  c.PickedUpAt,
		DeliveredAt: c.DeliveredAt,
		CancelledAt: c.CancelledAt,
		Notes:       c.Notes,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func canSeePickupCode(donorID, courierID, viewerID uuid.UUID) bool {
	if viewerID == uuid.Nil {
		return false
	}
	return viewerID == donorID || viewerID == courierID
}

func rankedViews(ranked []geo.Ranked[models.Donation], viewerID uuid.UUID, now time.Time) []View {
	out := make([]View, 0, len(ranked))
	for _, r := range ranked {
		view := NewView(r.Item, viewerID, now)
		distance := math.Round(r.DistanceKm*100) / 100
		view.DistanceKm = &distance
		out = append(out, view)
	}
	return out
}
