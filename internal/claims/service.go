package claims

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zerohunger/zerohunger-backend/internal/donations"
	"github.com/zerohunger/zerohunger-backend/pkg/config"
	"github.com/zerohunger/zerohunger-backend/pkg/db"
	"github.com/zerohunger/zerohunger-backend/pkg/enums"
	pkgerrors "github.com/zerohunger/zerohunger-backend/pkg/errors"
	"github.com/zerohunger/zerohunger-backend/pkg/logger"
	"github.com/zerohunger/zerohunger-backend/pkg/metrics"
	"github.com/zerohunger/zerohunger-backend/pkg/outbox"
	"github.com/zerohunger/zerohunger-backend/pkg/security"
)

const (
	opClaim   = "claim"
	opPickup  = "pickup"
	opDeliver = "deliver"
	opCancel  = "cancel"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ClaimInput is a courier's attempt to reserve a donation.
type ClaimInput struct {
	DonationID  uuid.UUID
	CourierID   uuid.UUID
	CourierRole enums.Role
}

// ClaimResult is returned to the winning courier.
type ClaimResult struct {
	Donation   donations.View      `json:"donation"`
	PickupCode string              `json:"pickup_code"`
	Claim      donations.ClaimView `json:"claim"`
}

// PickupInput carries the code the courier read from the donor.
type PickupInput struct {
	ClaimID   uuid.UUID
	CourierID uuid.UUID
	Code      string
}

// DeliverInput confirms a delivery with optional notes.
type DeliverInput struct {
	ClaimID   uuid.UUID
	CourierID uuid.UUID
	Notes     *string
}

// CancelInput abandons a reservation.
type CancelInput struct {
	ClaimID   uuid.UUID
	CourierID uuid.UUID
}

// Service arbitrates claims and drives their fulfillment lifecycle.
type Service interface {
	AttemptClaim(ctx context.Context, input ClaimInput) (*ClaimResult, error)
	Pickup(ctx context.Context, input PickupInput) (*donations.ClaimView, error)
	Deliver(ctx context.Context, input DeliverInput) (*donations.ClaimView, error)
	Cancel(ctx context.Context, input CancelInput) (*donations.ClaimView, error)
	ListForCourier(ctx context.Context, courierID uuid.UUID) ([]donations.ClaimView, error)
}

// ServiceParams groups the service dependencies.
type ServiceParams struct {
	Claims    Repository
	Donations donations.Repository
	Tx        txRunner
	Outbox    outbox.Emitter
	Config    config.ClaimsConfig
	Metrics   *metrics.ClaimMetrics
	Logger    *logger.Logger
	Now       func() time.Time
	Codes     func() (string, error)
}

type service struct {
	claims    Repository
	donations donations.Repository
	tx        txRunner
	outbox    outbox.Emitter
	cfg       config.ClaimsConfig
	metrics   *metrics.ClaimMetrics
	logg      *logger.Logger
	now       func() time.Time
	codes     func() (string, error)
}

// NewService builds the claim service.
func NewService(params ServiceParams) (Service, error) {
	if params.Claims == nil {
		return nil, fmt.Errorf("claims repository required")
	}
	if params.Donations == nil {
		return nil, fmt.Errorf("donations repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	codes := params.Codes
	if codes == nil {
		codes = security.GeneratePickupCode
	}
	return &service{
		claims:    params.Claims,
		donations: params.Donations,
		tx:        params.Tx,
		outbox:    params.Outbox,
		cfg:       params.Config,
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       now,
		codes:     codes,
	}, nil
}

func (s *service) ListForCourier(ctx context.Context, courierID uuid.UUID) ([]donations.ClaimView, error) {
	rows, err := s.claims.ListByCourier(ctx, courierID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list claims")
	}
	now := s.now()
	out := make([]donations.ClaimView, 0, len(rows))
	for _, row := range rows {
		out = append(out, donations.NewClaimView(row, courierID, now))
	}
	return out, nil
}

// observe records the outcome of op and logs rejections at debug level.
func (s *service) observe(ctx context.Context, op string, started time.Time, err error) {
	outcome := outcomeFor(err)
	s.metrics.Observe(op, outcome, time.Since(started))
	if s.logg == nil || err == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"operation": op,
		"outcome":   outcome,
	})
	if outcome == metrics.OutcomeError || outcome == metrics.OutcomeLockTimeout {
		s.logg.Warn(logCtx, "claim operation failed")
		return
	}
	s.logg.Debug(logCtx, "claim operation rejected")
}

func outcomeFor(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		return metrics.OutcomeError
	}
	switch typed.Code() {
	case pkgerrors.CodeConflict:
		return metrics.OutcomeConflict
	case pkgerrors.CodeForbidden:
		return metrics.OutcomeForbidden
	case pkgerrors.CodeNotFound:
		return metrics.OutcomeNotFound
	case pkgerrors.CodeInvalidCode:
		return metrics.OutcomeInvalidCode
	case pkgerrors.CodeLockTimeout:
		return metrics.OutcomeLockTimeout
	default:
		return metrics.OutcomeError
	}
}

// mapTxError turns untyped storage errors escaping a transaction into
// API errors. Typed errors pass through unchanged.
func mapTxError(err error, action string) error {
	if err == nil {
		return nil
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	if db.IsLockTimeout(err) {
		return pkgerrors.Wrap(pkgerrors.CodeLockTimeout, err, action)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

func mapLookupError(err error, entity string) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, entity+" not found")
	case db.IsLockTimeout(err):
		return pkgerrors.Wrap(pkgerrors.CodeLockTimeout, err, entity+" is busy")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+entity)
	}
}

func (s *service) boundLockWait(tx *gorm.DB) error {
	if err := db.SetLockTimeout(tx, s.cfg.LockTimeout); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set lock timeout")
	}
	return nil
}
