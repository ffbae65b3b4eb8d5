package impact

import (
	"context"
	"fmt"

	"github.com/zerohunger/zerohunger-backend/internal/consumers"
	"github.com/zerohunger/zerohunger-backend/pkg/enums"
	pkgerrors "github.com/zerohunger/zerohunger-backend/pkg/errors"
	"github.com/zerohunger/zerohunger-backend/pkg/outbox/payloads"
)

// ConsumerName scopes the impact consumer's idempotency keys.
const ConsumerName = "impact-worker"

// Handler turns claim lifecycle events into ledger credits.
type Handler struct {
	svc Service
}

// NewHandler builds the impact event handler.
func NewHandler(svc Service) (*Handler, error) {
	if svc == nil {
		return nil, fmt.Errorf("impact service required")
	}
	return &Handler{svc: svc}, nil
}

// Handle credits the courier on claim, and both courier and donor on
// delivery. Other events are ignored.
func (h *Handler) Handle(ctx context.Context, event consumers.Event) error {
	credits, err := CreditsFor(event)
	if err != nil {
		return err
	}
	if _, err := h.svc.Credit(ctx, credits...); err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeValidation) {
			return fmt.Errorf("%w: %v", consumers.ErrPermanent, err)
		}
		return err
	}
	return nil
}

// CreditsFor lists the credits an event earns.
func CreditsFor(event consumers.Event) ([]Credit, error) {
	if event.Type != enums.EventDonationClaimed && event.Type != enums.EventDonationDelivered {
		return nil, nil
	}
	evt, ok := event.Payload.(payloads.ClaimLifecycleEvent)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected payload %T for %s", consumers.ErrPermanent, event.Payload, event.Type)
	}

	base := Credit{
		ClaimID:    evt.ClaimID,
		DonationID: evt.DonationID,
		Transition: event.Type,
		QuantityKg: evt.QuantityKg,
	}
	courier := base
	courier.UserID = evt.CourierID
	if event.Type == enums.EventDonationClaimed {
		courier.Action = enums.ImpactActionClaim
		return []Credit{courier}, nil
	}

	courier.Action = enums.ImpactActionDelivery
	donor := base
	donor.UserID = evt.DonorID
	donor.Action = enums.ImpactActionDonation
	return []Credit{courier, donor}, nil
}
