package claims

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/zerohunger/zerohunger-backend/pkg/db/models"
	"github.com/zerohunger/zerohunger-backend/pkg/enums"
	pkgerrors "github.com/zerohunger/zerohunger-backend/pkg/errors"
	"github.com/zerohunger/zerohunger-backend/pkg/outbox"
	"github.com/zerohunger/zerohunger-backend/pkg/outbox/payloads"
)

type claimEventInput struct {
	claim    models.Claim
	donation models.Donation
	previous enums.ClaimStatus
	code     string
	role     enums.Role
	at       time.Time
}

// emitClaimEvent queues a lifecycle event in the caller's transaction.
// Consumers see it only once the transition commits.
func (s *service) emitClaimEvent(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, in claimEventInput) error {
	data := payloads.ClaimLifecycleEvent{
		ClaimID:        in.claim.ID,
		DonationID:     in.donation.ID,
		DonorID:        in.donation.DonorID,
		CourierID:      in.claim.CourierID,
		Title:          in.donation.Title,
		QuantityKg:     in.donation.QuantityKg,
		Status:         in.claim.Status,
		PreviousStatus: in.previous,
		Notes:          in.claim.Notes,
		OccurredAt:     in.at,
	}
	// the donor is told the code so they can hand the food over
	if eventType == enums.EventDonationClaimed {
		data.PickupCode = in.code
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateClaim,
		AggregateID:   in.claim.ID,
		Actor:         &outbox.ActorRef{UserID: in.claim.CourierID, Role: string(in.role)},
		Data:          data,
		OccurredAt:    in.at,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit "+string(eventType))
	}
	return nil
}
