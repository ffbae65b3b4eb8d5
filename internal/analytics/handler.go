package analytics

import (
	"context"
	"errors"
	"fmt"

	"github.com/zerohunger/zerohunger-backend/internal/analytics/types"
	"github.com/zerohunger/zerohunger-backend/internal/analytics/writer"
	"github.com/zerohunger/zerohunger-backend/internal/consumers"
	"github.com/zerohunger/zerohunger-backend/pkg/outbox/payloads"
)

// ConsumerName scopes the analytics consumer's idempotency keys.
const ConsumerName = "analytics-worker"

// Writer delivers donation event rows to the warehouse.
type Writer interface {
	Insert(ctx context.Context, row types.DonationEventRow) error
}

// Handler records every donation lifecycle event as one warehouse row.
type Handler struct {
	writer Writer
}

// NewHandler builds the analytics event handler.
func NewHandler(w Writer) (*Handler, error) {
	if w == nil {
		return nil, errors.New("writer is required")
	}
	return &Handler{writer: w}, nil
}

func (h *Handler) Handle(ctx context.Context, event consumers.Event) error {
	row, err := RowFor(event)
	if err != nil {
		return err
	}
	if err := h.writer.Insert(ctx, row); err != nil {
		if errors.Is(err, writer.ErrRejected) {
			return fmt.Errorf("%w: %v", consumers.ErrPermanent, err)
		}
		return err
	}
	return nil
}

// RowFor flattens an event into the donation_events schema. Pickup codes
// never reach the warehouse.
func RowFor(event consumers.Event) (types.DonationEventRow, error) {
	row := types.DonationEventRow{
		EventID:    event.ID.String(),
		EventType:  string(event.Type),
		OccurredAt: event.OccurredAt.UTC(),
	}
	if event.Actor != nil {
		actorID := event.Actor.UserID.String()
		row.ActorUserID = &actorID
		if event.Actor.Role != "" {
			role := event.Actor.Role
			row.ActorRole = &role
		}
	}

	var stored any
	switch evt := event.Payload.(type) {
	case payloads.ClaimLifecycleEvent:
		claimID := evt.ClaimID.String()
		courierID := evt.CourierID.String()
		row.DonationID = evt.DonationID.String()
		row.DonorID = evt.DonorID.String()
		row.ClaimID = &claimID
		row.CourierID = &courierID
		row.Status = string(evt.Status)
		if evt.PreviousStatus != "" {
			previous := string(evt.PreviousStatus)
			row.PreviousStatus = &previous
		}
		row.QuantityKg = evt.QuantityKg.InexactFloat64()
		if row.OccurredAt.IsZero() {
			row.OccurredAt = evt.OccurredAt.UTC()
		}
		evt.PickupCode = ""
		stored = evt
	case payloads.DonationLifecycleEvent:
		lat, lng := evt.Latitude, evt.Longitude
		row.DonationID = evt.DonationID.String()
		row.DonorID = evt.DonorID.String()
		row.Status = string(evt.Status)
		row.QuantityKg = evt.QuantityKg.InexactFloat64()
		row.Latitude = &lat
		row.Longitude = &lng
		if row.OccurredAt.IsZero() {
			row.OccurredAt = evt.OccurredAt.UTC()
		}
		stored = evt
	default:
		return types.DonationEventRow{}, fmt.Errorf("%w: unexpected payload %T for %s", consumers.ErrPermanent, event.Payload, event.Type)
	}

	payload, err := types.JSONColumn(stored)
	if err != nil {
		return types.DonationEventRow{}, fmt.Errorf("%w: %v", consumers.ErrPermanent, err)
	}
	row.Payload = payload
	return row, nil
}
