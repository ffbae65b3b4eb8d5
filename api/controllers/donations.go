package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zerohunger/zerohunger-backend/api/validators"
	"github.com/zerohunger/zerohunger-backend/internal/donations"
	"github.com/zerohunger/zerohunger-backend/pkg/enums"
	pkgerrors "github.com/zerohunger/zerohunger-backend/pkg/errors"
	"github.com/zerohunger/zerohunger-backend/pkg/logger"
)

const maxNearestLimit = 50

type createDonationRequest struct {
	Title       string          `json:"title" validate:"required,max=255"`
	Description *string         `json:"description" validate:"omitempty,max=2000"`
	QuantityKg  decimal.Decimal `json:"quantity_kg"`
	Latitude    *float64        `json:"latitude" validate:"required,latitude"`
	Longitude   *float64        `json:"longitude" validate:"required,longitude"`
	ExpiresAt   *time.Time      `json:"expires_at"`
}

// updateDonationRequest leaves nil fields untouched.
type updateDonationRequest struct {
	Title       *string          `json:"title" validate:"omitempty,max=255"`
	Description *string          `json:"description" validate:"omitempty,max=2000"`
	QuantityKg  *decimal.Decimal `json:"quantity_kg"`
	Latitude    *float64         `json:"latitude" validate:"omitempty,latitude"`
	Longitude   *float64         `json:"longitude" validate:"omitempty,longitude"`
	ExpiresAt   *time.Time       `json:"expires_at"`
}

// ListDonations returns available, unexpired donations, newest first.
func ListDonations(svc donations.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, http.StatusOK, func(c *call) (any, error) {
		return svc.ListAvailable(c.ctx, c.viewer)
	})
}

// NearbyDonations returns donations within radius km of a point, closest
// first. status narrows the result to one donation status.
func NearbyDonations(svc donations.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, http.StatusOK, func(c *call) (any, error) {
		lat, lng, err := coordinatesFromQuery(c.r)
		if err != nil {
			return nil, err
		}
		radius, _, err := validators.ParseQueryFloat(c.r, "radius")
		if err != nil {
			return nil, err
		}
		input := donations.NearbyInput{Latitude: lat, Longitude: lng, RadiusKm: radius}
		if raw := strings.TrimSpace(c.r.URL.Query().Get("status")); raw != "" {
			if input.Status, err = enums.ParseDonationStatus(raw); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeBadRequest, err, "invalid status")
			}
		}
		return svc.ListNearby(c.ctx, c.viewer, input)
	})
}

func NearestDonations(svc donations.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, http.StatusOK, func(c *call) (any, error) {
		lat, lng, err := coordinatesFromQuery(c.r)
		if err != nil {
			return nil, err
		}
		limit, err := validators.ParseQueryInt(c.r, "limit", 0, 1, maxNearestLimit)
		if err != nil {
			return nil, err
		}
		return svc.Nearest(c.ctx, c.viewer, lat, lng, limit)
	})
}

// MyDonations lists the caller's own donations in every status.
func MyDonations(svc donations.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, http.StatusOK, func(c *call) (any, error) {
		return svc.ListMine(c.ctx, c.viewer)
	})
}

func ShowDonation(svc donations.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, http.StatusOK, func(c *call) (any, error) {
		id, err := c.donationID()
		if err != nil {
			return nil, err
		}
		return svc.Get(c.ctx, c.viewer, id)
	})
}

func CreateDonation(svc donations.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, http.StatusCreated, func(c *call) (any, error) {
		var body createDonationRequest
		if err := validators.DecodeJSONBody(c.r, &body); err != nil {
			return nil, err
		}
		return svc.Create(c.ctx, c.viewer, donations.CreateInput{
			Title:       body.Title,
			Description: body.Description,
			QuantityKg:  body.QuantityKg,
			Latitude:    *body.Latitude,
			Longitude:   *body.Longitude,
			ExpiresAt:   body.ExpiresAt,
		})
	})
}

func UpdateDonation(svc donations.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, http.StatusOK, func(c *call) (any, error) {
		id, err := c.donationID()
		if err != nil {
			return nil, err
		}
		var body updateDonationRequest
		if err := validators.DecodeJSONBody(c.r, &body); err != nil {
			return nil, err
		}
		return svc.Update(c.ctx, c.viewer, id, donations.UpdateInput{
			Title:       body.Title,
			Description: body.Description,
			QuantityKg:  body.QuantityKg,
			Latitude:    body.Latitude,
			Longitude:   body.Longitude,
			ExpiresAt:   body.ExpiresAt,
		})
	})
}

func DeleteDonation(svc donations.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, http.StatusOK, func(c *call) (any, error) {
		id, err := c.donationID()
		if err != nil {
			return nil, err
		}
		if err := svc.Delete(c.ctx, c.viewer, id); err != nil {
			return nil, err
		}
		return map[string]any{"id": id, "deleted": true}, nil
	})
}

func coordinatesFromQuery(r *http.Request) (lat, lng float64, err error) {
	if lat, err = validators.RequireQueryFloat(r, "latitude", -90, 90); err != nil {
		return 0, 0, err
	}
	if lng, err = validators.RequireQueryFloat(r, "longitude", -180, 180); err != nil {
		return 0, 0, err
	}
	return lat, lng, nil
}
