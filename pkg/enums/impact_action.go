package enums

import "slices"

// ImpactAction identifies why impact points were credited.
type ImpactAction string

const (
	ImpactActionClaim    ImpactAction = "claim"
	ImpactActionDelivery ImpactAction = "delivery"
	ImpactActionDonation ImpactAction = "donation"
)

var validImpactActions = []ImpactAction{
	ImpactActionClaim,
	ImpactActionDelivery,
	ImpactActionDonation,
}

func (a ImpactAction) IsValid() bool {
	return slices.Contains(validImpactActions, a)
}

// Multiplier is the points-per-kilogram factor for the action.
func (a ImpactAction) Multiplier() int64 {
	if a == ImpactActionDelivery {
		return 2
	}
	return 1
}

func ParseImpactAction(value string) (ImpactAction, error) {
	return parse("impact action", value, validImpactActions)
}
