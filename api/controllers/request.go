package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/zerohunger/zerohunger-backend/api/middleware"
	"github.com/zerohunger/zerohunger-backend/api/responses"
	"github.com/zerohunger/zerohunger-backend/internal/donations"
	"github.com/zerohunger/zerohunger-backend/pkg/enums"
	pkgerrors "github.com/zerohunger/zerohunger-backend/pkg/errors"
	"github.com/zerohunger/zerohunger-backend/pkg/logger"
)

// call is the per-request state handed to an action. ctx picks up log
// fields as path identifiers are parsed.
type call struct {
	r      *http.Request
	ctx    context.Context
	viewer donations.Viewer
	logg   *logger.Logger
}

type action func(c *call) (any, error)

// authed runs fn for an authenticated caller and writes its result with the
// given success status.
func authed(logg *logger.Logger, status int, fn action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := &call{r: r, ctx: r.Context(), logg: logg}
		viewer, err := viewerFromRequest(r)
		if err != nil {
			responses.WriteError(c.ctx, logg, w, err)
			return
		}
		c.viewer = viewer

		out, err := fn(c)
		if err != nil {
			responses.WriteError(c.ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, status, out)
	}
}

func (c *call) donationID() (uuid.UUID, error) {
	id, err := pathUUID(c.r, "donationId", "donation id")
	if err == nil && c.logg != nil {
		c.ctx = c.logg.WithDonationID(c.ctx, id.String())
	}
	return id, err
}

func (c *call) claimID() (uuid.UUID, error) {
	id, err := pathUUID(c.r, "claimId", "claim id")
	if err == nil && c.logg != nil {
		c.ctx = c.logg.WithClaimID(c.ctx, id.String())
	}
	return id, err
}

// viewerFromRequest resolves the caller the auth middleware put in the
// context.
func viewerFromRequest(r *http.Request) (donations.Viewer, error) {
	rawUser := middleware.UserIDFromContext(r.Context())
	if rawUser == "" {
		return donations.Viewer{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	userID, err := uuid.Parse(rawUser)
	if err != nil {
		return donations.Viewer{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	role, err := enums.ParseRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		return donations.Viewer{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid role")
	}
	return donations.Viewer{UserID: userID, Role: role}, nil
}

func pathUUID(r *http.Request, param, label string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, param))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeBadRequest, label+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeBadRequest, err, "invalid "+label)
	}
	return id, nil
}
