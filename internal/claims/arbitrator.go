package claims

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zerohunger/zerohunger-backend/internal/donations"
	"github.com/zerohunger/zerohunger-backend/pkg/db"
	"github.com/zerohunger/zerohunger-backend/pkg/db/models"
	"github.com/zerohunger/zerohunger-backend/pkg/enums"
	pkgerrors "github.com/zerohunger/zerohunger-backend/pkg/errors"
)

// AttemptClaim reserves a donation for the calling courier. Concurrent
// attempts on one donation serialize on the donation row lock; the first to
// commit wins and every later attempt observes a reserved donation.
func (s *service) AttemptClaim(ctx context.Context, input ClaimInput) (result *ClaimResult, err error) {
	started := time.Now()
	if s.logg != nil {
		ctx = s.logg.WithDonationID(ctx, input.DonationID.String())
	}
	defer func() { s.observe(ctx, opClaim, started, err) }()

	if input.CourierRole != enums.RoleVolunteer {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only volunteers can claim donations")
	}

	var (
		donation models.Donation
		claim    models.Claim
		code     string
	)
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.boundLockWait(tx); err != nil {
			return err
		}
		donationsRepo := s.donations.WithTx(tx)
		claimsRepo := s.claims.WithTx(tx)

		locked, err := donationsRepo.LockByID(ctx, input.DonationID)
		if err != nil {
			return mapLookupError(err, "donation")
		}
		now := s.now()
		if !locked.IsClaimable(now) {
			return pkgerrors.New(pkgerrors.CodeConflict, "donation is no longer available").
				WithDetails(map[string]any{"status": locked.Status})
		}
		exists, err := claimsRepo.ExistsForDonation(ctx, locked.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing claim")
		}
		if exists {
			return pkgerrors.New(pkgerrors.CodeConflict, "donation already claimed")
		}

		code, err = s.codes()
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate pickup code")
		}
		if err := donationsRepo.Update(ctx, locked.ID, map[string]any{
			"status":      enums.DonationStatusReserved,
			"pickup_code": code,
			"updated_at":  now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve donation")
		}

		claim = models.Claim{
			ID:         uuid.New(),
			DonationID: locked.ID,
			CourierID:  input.CourierID,
			Status:     enums.ClaimStatusActive,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := claimsRepo.Create(ctx, &claim); err != nil {
			if db.IsUniqueViolation(err, "ux_claims_donation_id") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "donation already claimed")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create claim")
		}

		donation = *locked
		donation.Status = enums.DonationStatusReserved
		donation.PickupCode = &code
		donation.UpdatedAt = now
		return s.emitClaimEvent(ctx, tx, enums.EventDonationClaimed, claimEventInput{
			claim:    claim,
			donation: donation,
			code:     code,
			role:     input.CourierRole,
			at:       now,
		})
	})
	if txErr != nil {
		return nil, mapTxError(txErr, "claim donation")
	}

	if s.logg != nil {
		logCtx := s.logg.WithClaimID(ctx, claim.ID.String())
		s.logg.Info(logCtx, "donation claimed")
	}
	claimView := donations.NewClaimView(claim, input.CourierID, claim.CreatedAt)
	donation.Claim = &claim
	return &ClaimResult{
		Donation:   donations.NewView(donation, input.CourierID, claim.CreatedAt),
		PickupCode: code,
		Claim:      claimView,
	}, nil
}
