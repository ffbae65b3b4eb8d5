package claims

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zerohunger/zerohunger-backend/internal/repo"
	"github.com/zerohunger/zerohunger-backend/pkg/db/models"
)

// Repository persists claims.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, claim *models.Claim) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Claim, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Claim, error)
	ExistsForDonation(ctx context.Context, donationID uuid.UUID) (bool, error)
	ListByCourier(ctx context.Context, courierID uuid.UUID) ([]models.Claim, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) error
}

type repository struct {
	repo.Base
}

// NewRepository builds a claims repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, claim *models.Claim) error {
	return r.DB(ctx).Omit(clause.Associations).Create(claim).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Claim, error) {
	return repo.First[models.Claim](r.DB(ctx).Preload("Donation").Where("id = ?", id))
}

// LockByID holds the claim row lock until the caller's transaction ends.
func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Claim, error) {
	return repo.First[models.Claim](r.ForUpdate(ctx).Where("id = ?", id))
}

func (r *repository) ExistsForDonation(ctx context.Context, donationID uuid.UUID) (bool, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.Claim{}).
		Where("donation_id = ?", donationID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) ListByCourier(ctx context.Context, courierID uuid.UUID) ([]models.Claim, error) {
	var rows []models.Claim
	err := r.DB(ctx).
		Preload("Donation").
		Where("courier_id = ?", courierID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return r.UpdateByID(ctx, &models.Claim{}, id, fields)
}
