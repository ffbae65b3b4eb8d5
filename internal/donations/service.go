package donations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/zerohunger/zerohunger-backend/pkg/config"
	"github.com/zerohunger/zerohunger-backend/pkg/db"
	"github.com/zerohunger/zerohunger-backend/pkg/db/models"
	"github.com/zerohunger/zerohunger-backend/pkg/enums"
	pkgerrors "github.com/zerohunger/zerohunger-backend/pkg/errors"
	"github.com/zerohunger/zerohunger-backend/pkg/geo"
	"github.com/zerohunger/zerohunger-backend/pkg/logger"
	"github.com/zerohunger/zerohunger-backend/pkg/outbox"
	"github.com/zerohunger/zerohunger-backend/pkg/outbox/payloads"
)

const (
	maxTitleLength = 255
)

var maxQuantityKg = decimal.NewFromInt(1000)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Viewer is the authenticated caller of a donation operation.
type Viewer struct {
	UserID uuid.UUID
	Role   enums.Role
}

// CreateInput carries the fields of a new donation.
type CreateInput struct {
	Title       string
	Description *string
	QuantityKg  decimal.Decimal
	Latitude    float64
	Longitude   float64
	ExpiresAt   *time.Time
}

// UpdateInput carries optional donation changes; nil fields are untouched.
type UpdateInput struct {
	Title       *string
	Description *string
	QuantityKg  *decimal.Decimal
	Latitude    *float64
	Longitude   *float64
	ExpiresAt   *time.Time
}

// NearbyInput is a proximity query. A zero RadiusKm selects the configured
// default and an empty Status selects available donations.
type NearbyInput struct {
	Latitude  float64
	Longitude float64
	RadiusKm  float64
	Status    enums.DonationStatus
}

// Service is the donation registry.
type Service interface {
	ListAvailable(ctx context.Context, viewer Viewer) ([]View, error)
	ListNearby(ctx context.Context, viewer Viewer, input NearbyInput) ([]View, error)
	Nearest(ctx context.Context, viewer Viewer, latitude, longitude float64, limit int) ([]View, error)
	ListMine(ctx context.Context, viewer Viewer) ([]View, error)
	Get(ctx context.Context, viewer Viewer, id uuid.UUID) (*View, error)
	Create(ctx context.Context, viewer Viewer, input CreateInput) (*View, error)
	Update(ctx context.Context, viewer Viewer, id uuid.UUID, input UpdateInput) (*View, error)
	Delete(ctx context.Context, viewer Viewer, id uuid.UUID) error
}

// ServiceParams groups the service dependencies.
type ServiceParams struct {
	Repo   Repository
	Tx     txRunner
	Outbox outbox.Emitter
	Config config.ClaimsConfig
	Logger *logger.Logger
	Now    func() time.Time
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outbox.Emitter
	cfg    config.ClaimsConfig
	logg   *logger.Logger
	now    func() time.Time
}

// NewService builds the donation registry.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("donations repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Config.DefaultRadiusKm <= 0 {
		return nil, fmt.Errorf("default radius must be positive")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:   params.Repo,
		tx:     params.Tx,
		outbox: params.Outbox,
		cfg:    params.Config,
		logg:   params.Logger,
		now:    now,
	}, nil
}

func (s *service) ListAvailable(ctx context.Context, viewer Viewer) ([]View, error) {
	now := s.now()
	rows, err := s.repo.ListAvailable(ctx, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list donations")
	}
	return NewViews(rows, viewer.UserID, now), nil
}

func (s *service) ListNearby(ctx context.Context, viewer Viewer, input NearbyInput) ([]View, error) {
	center := geo.Point{Lat: input.Latitude, Lng: input.Longitude}
	if err := center.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeBadRequest, err, "invalid coordinates")
	}
	radius, err := s.radius(input.RadiusKm)
	if err != nil {
		return nil, err
	}
	status := input.Status
	if status == "" {
		status = enums.DonationStatusAvailable
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, "invalid status")
	}

	now := s.now()
	rows, err := s.repo.ListInBox(ctx, status, now, geo.BoundingBox(center, radius))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list nearby donations")
	}
	ranked := geo.WithinRadius(center, radius, rows, donationPoint)
	return rankedViews(ranked, viewer.UserID, now), nil
}

func (s *service) Nearest(ctx context.Context, viewer Viewer, latitude, longitude float64, limit int) ([]View, error) {
	center := geo.Point{Lat: latitude, Lng: longitude}
	if err := center.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeBadRequest, err, "invalid coordinates")
	}
	if limit < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, "limit must not be negative")
	}
	if limit == 0 {
		limit = s.cfg.NearestDefaultLimit
	}

	now := s.now()
	rows, err := s.repo.ListAvailable(ctx, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list donations")
	}
	ranked := geo.Nearest(center, limit, rows, donationPoint)
	return rankedViews(ranked, viewer.UserID, now), nil
}

func (s *service) ListMine(ctx context.Context, viewer Viewer) ([]View, error) {
	rows, err := s.repo.ListByDonor(ctx, viewer.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list donor donations")
	}
	return NewViews(rows, viewer.UserID, s.now()), nil
}

func (s *service) Get(ctx context.Context, viewer Viewer, id uuid.UUID) (*View, error) {
	donation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	view := NewView(*donation, viewer.UserID, s.now())
	return &view, nil
}

func (s *service) Create(ctx context.Context, viewer Viewer, input CreateInput) (*View, error) {
	if viewer.Role != enums.RoleDonor {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only donors can create donations")
	}
	now := s.now()
	title, err := validateTitle(input.Title)
	if err != nil {
		return nil, err
	}
	if err := validateQuantity(input.QuantityKg); err != nil {
		return nil, err
	}
	if err := validateLocation(input.Latitude, input.Longitude); err != nil {
		return nil, err
	}
	if err := validateExpiry(input.ExpiresAt, now); err != nil {
		return nil, err
	}

	donation := models.Donation{
		ID:          uuid.New(),
		DonorID:     viewer.UserID,
		Title:       title,
		Description: normalizeDescription(input.Description),
		QuantityKg:  input.QuantityKg,
		Status:      enums.DonationStatusAvailable,
		Latitude:    input.Latitude,
		Longitude:   input.Longitude,
		ExpiresAt:   utcPtr(input.ExpiresAt),
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, &donation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create donation")
		}
		return s.emit(ctx, tx, viewer, donation, enums.EventDonationCreated, now)
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithDonationID(ctx, donation.ID.String())
		s.logg.Info(logCtx, "donation created")
	}
	view := NewView(donation, viewer.UserID, now)
	return &view, nil
}

func (s *service) Update(ctx context.Context, viewer Viewer, id uuid.UUID, input UpdateInput) (*View, error) {
	now := s.now()
	fields := map[string]any{}
	if input.Title != nil {
		title, err := validateTitle(*input.Title)
		if err != nil {
			return nil, err
		}
		fields["title"] = title
	}
	if input.Description != nil {
		fields["description"] = normalizeDescription(input.Description)
	}
	if input.QuantityKg != nil {
		if err := validateQuantity(*input.QuantityKg); err != nil {
			return nil, err
		}
		fields["quantity_kg"] = *input.QuantityKg
	}
	if input.ExpiresAt != nil {
		if err := validateExpiry(input.ExpiresAt, now); err != nil {
			return nil, err
		}
		fields["expires_at"] = input.ExpiresAt.UTC()
	}

	var updated *models.Donation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		donation, err := s.lockOwned(ctx, tx, repo, viewer, id, "update")
		if err != nil {
			return err
		}

		lat, lng := donation.Latitude, donation.Longitude
		if input.Latitude != nil {
			lat = *input.Latitude
			fields["latitude"] = lat
		}
		if input.Longitude != nil {
			lng = *input.Longitude
			fields["longitude"] = lng
		}
		if err := validateLocation(lat, lng); err != nil {
			return err
		}

		if len(fields) > 0 {
			fields["updated_at"] = now
			if err := repo.Update(ctx, id, fields); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update donation")
			}
		}
		updated, err = repo.FindByID(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload donation")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	view := NewView(*updated, viewer.UserID, now)
	return &view, nil
}

func (s *service) Delete(ctx context.Context, viewer Viewer, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.lockOwned(ctx, tx, repo, viewer, id, "delete"); err != nil {
			return err
		}
		if err := repo.Delete(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete donation")
		}
		return nil
	})
}

// lockOwned locks the donation row and checks that viewer owns it and that it
// has not been claimed. Holding the lock keeps a concurrent claim out until
// the mutation commits.
func (s *service) lockOwned(ctx context.Context, tx *gorm.DB, repo Repository, viewer Viewer, id uuid.UUID, action string) (*models.Donation, error) {
	if err := setLockTimeout(tx, s.cfg.LockTimeout); err != nil {
		return nil, err
	}
	donation, err := repo.LockByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	if donation.DonorID != viewer.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the donor can "+action+" this donation")
	}
	if donation.Status != enums.DonationStatusAvailable {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "donation can no longer be changed").
			WithDetails(map[string]any{"status": donation.Status})
	}
	return donation, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, viewer Viewer, donation models.Donation, eventType enums.OutboxEventType, now time.Time) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateDonation,
		AggregateID:   donation.ID,
		Actor:         &outbox.ActorRef{UserID: viewer.UserID, Role: string(viewer.Role)},
		OccurredAt:    now,
		Data: payloads.DonationLifecycleEvent{
			DonationID: donation.ID,
			DonorID:    donation.DonorID,
			Title:      donation.Title,
			QuantityKg: donation.QuantityKg,
			Status:     donation.Status,
			Latitude:   donation.Latitude,
			Longitude:  donation.Longitude,
			ExpiresAt:  donation.ExpiresAt,
			OccurredAt: now,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit "+string(eventType))
	}
	return nil
}

func (s *service) radius(requested float64) (float64, error) {
	if requested == 0 {
		return s.cfg.DefaultRadiusKm, nil
	}
	if requested < 0 {
		return 0, pkgerrors.New(pkgerrors.CodeBadRequest, "radius must be positive")
	}
	if s.cfg.MaxRadiusKm > 0 && requested > s.cfg.MaxRadiusKm {
		return 0, pkgerrors.New(pkgerrors.CodeBadRequest, fmt.Sprintf("radius must not exceed %g km", s.cfg.MaxRadiusKm))
	}
	return requested, nil
}

func setLockTimeout(tx *gorm.DB, timeout time.Duration) error {
	if err := db.SetLockTimeout(tx, timeout); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set lock timeout")
	}
	return nil
}

func mapLookupError(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "donation not found")
	case db.IsLockTimeout(err):
		return pkgerrors.Wrap(pkgerrors.CodeLockTimeout, err, "donation is busy")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load donation")
	}
}

func donationPoint(d models.Donation) geo.Point {
	return geo.Point{Lat: d.Latitude, Lng: d.Longitude}
}

func validateTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", validationError("title", "title is required")
	}
	if len([]rune(title)) > maxTitleLength {
		return "", validationError("title", fmt.Sprintf("title must be at most %d characters", maxTitleLength))
	}
	return title, nil
}

func validateQuantity(quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return validationError("quantity_kg", "quantity must be greater than zero")
	}
	if quantity.GreaterThan(maxQuantityKg) {
		return validationError("quantity_kg", "quantity must not exceed 1000 kg")
	}
	if !quantity.Equal(quantity.Round(2)) {
		return validationError("quantity_kg", "quantity supports at most two decimal places")
	}
	return nil
}

func validateLocation(lat, lng float64) error {
	if err := (geo.Point{Lat: lat, Lng: lng}).Validate(); err != nil {
		return validationError("location", err.Error())
	}
	return nil
}

func validateExpiry(expiresAt *time.Time, now time.Time) error {
	if expiresAt != nil && !expiresAt.After(now) {
		return validationError("expires_at", "expires_at must be in the future")
	}
	return nil
}

func validationError(field, message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, message).
		WithDetails(map[string]string{field: message})
}

func normalizeDescription(raw *string) *string {
	if raw == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}
