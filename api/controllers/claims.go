package controllers

import (
	"net/http"

	"github.com/zerohunger/zerohunger-backend/api/validators"
	"github.com/zerohunger/zerohunger-backend/internal/claims"
	"github.com/zerohunger/zerohunger-backend/pkg/logger"
)

type pickupRequest struct {
	PickupCode string `json:"pickup_code" validate:"required"`
}

type deliverRequest struct {
	Notes *string `json:"notes"`
}

// ClaimDonation reserves a donation for the calling courier. Of any number
// of concurrent callers exactly one wins; the others get 409.
func ClaimDonation(svc claims.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, http.StatusOK, func(c *call) (any, error) {
		donationID, err := c.donationID()
		if err != nil {
			return nil, err
		}
		return svc.AttemptClaim(c.ctx, claims.ClaimInput{
			DonationID:  donationID,
			CourierID:   c.viewer.UserID,
			CourierRole: c.viewer.Role,
		})
	})
}

func ListMyClaims(svc claims.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, http.StatusOK, func(c *call) (any, error) {
		return svc.ListForCourier(c.ctx, c.viewer.UserID)
	})
}

// PickupClaim checks the donor's pickup code before moving the claim to
// picked_up.
func PickupClaim(svc claims.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, http.StatusOK, func(c *call) (any, error) {
		claimID, err := c.claimID()
		if err != nil {
			return nil, err
		}
		var body pickupRequest
		if err := validators.DecodeJSONBody(c.r, &body); err != nil {
			return nil, err
		}
		return svc.Pickup(c.ctx, claims.PickupInput{
			ClaimID:   claimID,
			CourierID: c.viewer.UserID,
			Code:      body.PickupCode,
		})
	})
}

func DeliverClaim(svc claims.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, http.StatusOK, func(c *call) (any, error) {
		claimID, err := c.claimID()
		if err != nil {
			return nil, err
		}
		var body deliverRequest
		if err := validators.DecodeOptionalJSONBody(c.r, &body); err != nil {
			return nil, err
		}
		return svc.Deliver(c.ctx, claims.DeliverInput{
			ClaimID:   claimID,
			CourierID: c.viewer.UserID,
			Notes:     body.Notes,
		})
	})
}

func CancelClaim(svc claims.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, http.StatusOK, func(c *call) (any, error) {
		claimID, err := c.claimID()
		if err != nil {
			return nil, err
		}
		return svc.Cancel(c.ctx, claims.CancelInput{ClaimID: claimID, CourierID: c.viewer.UserID})
	})
}
