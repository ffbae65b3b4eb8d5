package enums

import "slices"

// DonationStatus maps to the donation_status enum in Postgres.
type DonationStatus string

const (
	DonationStatusAvailable DonationStatus = "available"
	DonationStatusReserved  DonationStatus = "reserved"
	DonationStatusPickedUp  DonationStatus = "picked_up"
	DonationStatusDelivered DonationStatus = "delivered"
	DonationStatusExpired   DonationStatus = "expired"
	DonationStatusCancelled DonationStatus = "cancelled"
)

var validDonationStatuses = []DonationStatus{
	DonationStatusAvailable,
	DonationStatusReserved,
	DonationStatusPickedUp,
	DonationStatusDelivered,
	DonationStatusExpired,
	DonationStatusCancelled,
}

func (s DonationStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches the canonical donation_status enum.
func (s DonationStatus) IsValid() bool {
	return slices.Contains(validDonationStatuses, s)
}

// ParseDonationStatus converts raw input into DonationStatus.
func ParseDonationStatus(value string) (DonationStatus, error) {
	return parse("donation status", value, validDonationStatuses)
}
