package claims

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zerohunger/zerohunger-backend/internal/donations"
	"github.com/zerohunger/zerohunger-backend/pkg/db/models"
	"github.com/zerohunger/zerohunger-backend/pkg/enums"
	pkgerrors "github.com/zerohunger/zerohunger-backend/pkg/errors"
	"github.com/zerohunger/zerohunger-backend/pkg/security"
)

const maxNotesLength = 500

// transition describes one edge of the claim lifecycle.
type transition struct {
	op    string
	to    enums.ClaimStatus
	event enums.OutboxEventType
	// verify runs after the ownership and state guards with both rows locked.
	verify func(claim *models.Claim, donation *models.Donation) error
	// fields are the extra claim columns written by the transition.
	fields func(now time.Time) map[string]any
}

// Pickup moves an active claim to picked_up once the courier presents the
// donation's pickup code. A wrong code leaves the claim untouched.
func (s *service) Pickup(ctx context.Context, input PickupInput) (*donations.ClaimView, error) {
	code := strings.TrimSpace(input.Code)
	return s.apply(ctx, input.ClaimID, input.CourierID, transition{
		op:    opPickup,
		to:    enums.ClaimStatusPickedUp,
		event: enums.EventClaimPickedUp,
		verify: func(_ *models.Claim, donation *models.Donation) error {
			if !security.PickupCodeMatches(donation.PickupCode, code) {
				return pkgerrors.New(pkgerrors.CodeInvalidCode, "invalid pickup code")
			}
			return nil
		},
		fields: func(now time.Time) map[string]any {
			return map[string]any{"picked_up_at": now}
		},
	})
}

// Deliver completes a picked up claim. Notes are checked only once the
// caller is known to own a claim that can be delivered.
func (s *service) Deliver(ctx context.Context, input DeliverInput) (*donations.ClaimView, error) {
	var notes *string
	if input.Notes != nil {
		if trimmed := strings.TrimSpace(*input.Notes); trimmed != "" {
			notes = &trimmed
		}
	}
	return s.apply(ctx, input.ClaimID, input.CourierID, transition{
		op:    opDeliver,
		to:    enums.ClaimStatusDelivered,
		event: enums.EventDonationDelivered,
		verify: func(*models.Claim, *models.Donation) error {
			if notes != nil && utf8.RuneCountInString(*notes) > maxNotesLength {
				return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("notes must be at most %d characters", maxNotesLength)).
					WithDetails(map[string]string{"notes": "too long"})
			}
			return nil
		},
		fields: func(now time.Time) map[string]any {
			fields := map[string]any{"delivered_at": now}
			if notes != nil {
				fields["notes"] = *notes
			}
			return fields
		},
	})
}

// Cancel abandons an active or picked up claim. The donation is retired
// with it and cannot be claimed again.
func (s *service) Cancel(ctx context.Context, input CancelInput) (*donations.ClaimView, error) {
	return s.apply(ctx, input.ClaimID, input.CourierID, transition{
		op:    opCancel,
		to:    enums.ClaimStatusCancelled,
		event: enums.EventClaimCancelled,
		fields: func(now time.Time) map[string]any {
			return map[string]any{"cancelled_at": now}
		},
	})
}

func (s *service) apply(ctx context.Context, claimID, courierID uuid.UUID, t transition) (view *donations.ClaimView, err error) {
	started := time.Now()
	if s.logg != nil {
		ctx = s.logg.WithClaimID(ctx, claimID.String())
	}
	defer func() { s.observe(ctx, t.op, started, err) }()

	var (
		claim    *models.Claim
		donation *models.Donation
	)
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.boundLockWait(tx); err != nil {
			return err
		}
		claimsRepo := s.claims.WithTx(tx)
		donationsRepo := s.donations.WithTx(tx)

		var err error
		claim, err = claimsRepo.LockByID(ctx, claimID)
		if err != nil {
			return mapLookupError(err, "claim")
		}
		if claim.CourierID != courierID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "claim belongs to another courier")
		}
		previous := claim.Status
		if !previous.CanTransitionTo(t.to) {
			return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("cannot %s a %s claim", t.op, previous)).
				WithDetails(map[string]any{"status": previous})
		}
		donation, err = donationsRepo.LockByID(ctx, claim.DonationID)
		if err != nil {
			return mapLookupError(err, "donation")
		}
		if t.verify != nil {
			if err := t.verify(claim, donation); err != nil {
				return err
			}
		}

		now := s.now()
		fields := t.fields(now)
		fields["status"] = t.to
		fields["updated_at"] = now
		if err := claimsRepo.Update(ctx, claim.ID, fields); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update claim")
		}
		donationStatus := t.to.DonationStatus()
		if err := donationsRepo.Update(ctx, donation.ID, map[string]any{
			"status":     donationStatus,
			"updated_at": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update donation")
		}

		claim, err = claimsRepo.FindByID(ctx, claim.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload claim")
		}
		donation.Status = donationStatus
		donation.UpdatedAt = now
		return s.emitClaimEvent(ctx, tx, t.event, claimEventInput{
			claim:    *claim,
			donation: *donation,
			previous: previous,
			role:     enums.RoleVolunteer,
			at:       now,
		})
	})
	if txErr != nil {
		return nil, mapTxError(txErr, t.op+" claim")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"donation_id": donation.ID.String(),
			"status":      t.to,
		})
		s.logg.Info(logCtx, "claim transitioned")
	}
	out := donations.NewClaimView(*claim, courierID, s.now())
	return &out, nil
}
