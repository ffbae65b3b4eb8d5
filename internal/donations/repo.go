package donations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zerohunger/zerohunger-backend/internal/repo"
	"github.com/zerohunger/zerohunger-backend/pkg/db/models"
	"github.com/zerohunger/zerohunger-backend/pkg/enums"
	"github.com/zerohunger/zerohunger-backend/pkg/geo"
)

// Repository persists donations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, donation *models.Donation) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Donation, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Donation, error)
	ListAvailable(ctx context.Context, now time.Time) ([]models.Donation, error)
	ListByDonor(ctx context.Context, donorID uuid.UUID) ([]models.Donation, error)
	ListInBox(ctx context.Context, status enums.DonationStatus, now time.Time, box geo.Box) ([]models.Donation, error)
	ListExpiredAvailable(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	repo.Base
}

// NewRepository builds a donations repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, donation *models.Donation) error {
	return r.DB(ctx).Omit(clause.Associations).Create(donation).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Donation, error) {
	return repo.First[models.Donation](r.DB(ctx).Preload("Claim").Where("id = ?", id))
}

// LockByID holds the donation row lock until the caller's transaction ends.
func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Donation, error) {
	return repo.First[models.Donation](r.ForUpdate(ctx).Where("id = ?", id))
}

func (r *repository) ListAvailable(ctx context.Context, now time.Time) ([]models.Donation, error) {
	var rows []models.Donation
	err := r.DB(ctx).
		Where("status = ?", enums.DonationStatusAvailable).
		Where("(expires_at IS NULL OR expires_at > ?)", now).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListByDonor(ctx context.Context, donorID uuid.UUID) ([]models.Donation, error) {
	var rows []models.Donation
	err := r.DB(ctx).
		Preload("Claim").
		Where("donor_id = ?", donorID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

// ListInBox returns candidate rows inside box. Callers apply the exact
// great-circle filter; the box only narrows the scan.
func (r *repository) ListInBox(ctx context.Context, status enums.DonationStatus, now time.Time, box geo.Box) ([]models.Donation, error) {
	q := r.DB(ctx).
		Where("status = ?", status).
		Where("latitude BETWEEN ? AND ?", box.MinLat, box.MaxLat)
	if !box.SpansAllLng {
		q = q.Where("longitude BETWEEN ? AND ?", box.MinLng, box.MaxLng)
	}
	if status == enums.DonationStatusAvailable {
		q = q.Where("(expires_at IS NULL OR expires_at > ?)", now)
	}
	var rows []models.Donation
	err := q.Order("created_at DESC").Find(&rows).Error
	return rows, err
}

func (r *repository) ListExpiredAvailable(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	q := r.DB(ctx).
		Model(&models.Donation{}).
		Where("status = ?", enums.DonationStatusAvailable).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Order("expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Pluck("id", &ids).Error
	return ids, err
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return r.UpdateByID(ctx, &models.Donation{}, id, fields)
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.DB(ctx).
		Where("id = ?", id).
		Delete(&models.Donation{}).Error
}
