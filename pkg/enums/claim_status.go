package enums

import "slices"

// ClaimStatus maps to the claim_status enum in Postgres.
type ClaimStatus string

const (
	ClaimStatusActive    ClaimStatus = "active"
	ClaimStatusPickedUp  ClaimStatus = "picked_up"
	ClaimStatusDelivered ClaimStatus = "delivered"
	ClaimStatusCancelled ClaimStatus = "cancelled"
)

var validClaimStatuses = []ClaimStatus{
	ClaimStatusActive,
	ClaimStatusPickedUp,
	ClaimStatusDelivered,
	ClaimStatusCancelled,
}

// claimTransitions is the complete edge set of the fulfillment lifecycle.
var claimTransitions = map[ClaimStatus][]ClaimStatus{
	ClaimStatusActive:   {ClaimStatusPickedUp, ClaimStatusCancelled},
	ClaimStatusPickedUp: {ClaimStatusDelivered, ClaimStatusCancelled},
}

func (s ClaimStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches the canonical claim_status enum.
func (s ClaimStatus) IsValid() bool {
	return slices.Contains(validClaimStatuses, s)
}

// IsTerminal reports whether no further transition is possible.
func (s ClaimStatus) IsTerminal() bool {
	return len(claimTransitions[s]) == 0
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s ClaimStatus) CanTransitionTo(next ClaimStatus) bool {
	return slices.Contains(claimTransitions[s], next)
}

// DonationStatus returns the donation status mirrored for a claim in s.
func (s ClaimStatus) DonationStatus() DonationStatus {
	switch s {
	case ClaimStatusActive:
		return DonationStatusReserved
	case ClaimStatusPickedUp:
		return DonationStatusPickedUp
	case ClaimStatusDelivered:
		return DonationStatusDelivered
	default:
		return DonationStatusCancelled
	}
}

// ParseClaimStatus converts raw input into ClaimStatus.
func ParseClaimStatus(value string) (ClaimStatus, error) {
	return parse("claim status", value, validClaimStatuses)
}
