package controllers

import (
	"net/http"

	"github.com/zerohunger/zerohunger-backend/internal/impact"
	"github.com/zerohunger/zerohunger-backend/pkg/logger"
)

// MyImpact returns the caller's points with their latest ledger entries.
func MyImpact(svc impact.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(logg, http.StatusOK, func(c *call) (any, error) {
		return svc.Summary(c.ctx, c.viewer.UserID)
	})
}
