package impact

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zerohunger/zerohunger-backend/pkg/enums"
)

// Points converts a quantity into whole points for action, rounding up.
func Points(quantityKg decimal.Decimal, action enums.ImpactAction) int64 {
	if !quantityKg.IsPositive() {
		return 0
	}
	return quantityKg.Mul(decimal.NewFromInt(action.Multiplier())).Ceil().IntPart()
}

// DedupeKey identifies one credit so a redelivered event cannot apply it
// twice.
func DedupeKey(claimID uuid.UUID, transition enums.OutboxEventType, action enums.ImpactAction) string {
	return fmt.Sprintf("%s:%s:%s", claimID, transition, action)
}
