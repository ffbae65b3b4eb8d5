package notifications

import (
	"context"
	"fmt"

	"github.com/zerohunger/zerohunger-backend/internal/consumers"
	"github.com/zerohunger/zerohunger-backend/pkg/enums"
	pkgerrors "github.com/zerohunger/zerohunger-backend/pkg/errors"
	"github.com/zerohunger/zerohunger-backend/pkg/outbox/payloads"
)

// ConsumerName scopes the notification consumer's idempotency keys.
const ConsumerName = "notification-worker"

// Handler turns donation lifecycle events into donor notifications.
type Handler struct {
	svc Service
}

// NewHandler builds the notification event handler.
func NewHandler(svc Service) (*Handler, error) {
	if svc == nil {
		return nil, fmt.Errorf("notifications service required")
	}
	return &Handler{svc: svc}, nil
}

func (h *Handler) Handle(ctx context.Context, event consumers.Event) error {
	msg, ok, err := MessageFor(event)
	if err != nil || !ok {
		return err
	}
	if _, err := h.svc.Notify(ctx, msg); err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeValidation) {
			return fmt.Errorf("%w: %v", consumers.ErrPermanent, err)
		}
		return err
	}
	return nil
}

// MessageFor builds the donor notification for event. ok is false for
// events that notify nobody.
func MessageFor(event consumers.Event) (Message, bool, error) {
	switch event.Type {
	case enums.EventDonationClaimed, enums.EventClaimPickedUp, enums.EventDonationDelivered, enums.EventClaimCancelled:
		evt, ok := event.Payload.(payloads.ClaimLifecycleEvent)
		if !ok {
			return Message{}, false, unexpectedPayload(event)
		}
		return claimMessage(event, evt), true, nil
	case enums.EventDonationExpired:
		evt, ok := event.Payload.(payloads.DonationLifecycleEvent)
		if !ok {
			return Message{}, false, unexpectedPayload(event)
		}
		donationID := evt.DonationID
		return Message{
			EventID:    event.ID,
			UserID:     evt.DonorID,
			Type:       enums.NotificationTypeDonationExpired,
			Title:      "Your donation expired",
			Body:       fmt.Sprintf("Your donation '%s' expired before anyone claimed it.", evt.Title),
			DonationID: &donationID,
		}, true, nil
	default:
		return Message{}, false, nil
	}
}

func claimMessage(event consumers.Event, evt payloads.ClaimLifecycleEvent) Message {
	donationID := evt.DonationID
	msg := Message{
		EventID:    event.ID,
		UserID:     evt.DonorID,
		DonationID: &donationID,
	}
	switch event.Type {
	case enums.EventDonationClaimed:
		msg.Type = enums.NotificationTypeDonationClaimed
		msg.Title = "Your donation has been claimed"
		msg.Body = fmt.Sprintf("Your donation '%s' has been claimed by a volunteer. Pickup code: %s. Share this code when the volunteer arrives.", evt.Title, evt.PickupCode)
	case enums.EventClaimPickedUp:
		msg.Type = enums.NotificationTypeDonationPickedUp
		msg.Title = "Your donation was picked up"
		msg.Body = fmt.Sprintf("Your donation '%s' is on its way.", evt.Title)
	case enums.EventDonationDelivered:
		msg.Type = enums.NotificationTypeDonationDelivered
		msg.Title = "Donation delivered successfully"
		msg.Body = fmt.Sprintf("Your donation '%s' has been delivered. Thank you for fighting hunger and reducing food waste!", evt.Title)
	case enums.EventClaimCancelled:
		msg.Type = enums.NotificationTypeClaimCancelled
		msg.Title = "A claim on your donation was cancelled"
		msg.Body = fmt.Sprintf("The volunteer cancelled their claim on '%s'.", evt.Title)
	}
	return msg
}

func unexpectedPayload(event consumers.Event) error {
	return fmt.Errorf("%w: unexpected payload %T for %s", consumers.ErrPermanent, event.Payload, event.Type)
}
