package impact

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zerohunger/zerohunger-backend/internal/repo"
	"github.com/zerohunger/zerohunger-backend/pkg/db/models"
)

// Repository persists the impact ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, entry *models.ImpactEntry) (bool, error)
	TotalPoints(ctx context.Context, userID uuid.UUID) (int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.ImpactEntry, error)
}

type repository struct {
	repo.Base
}

// NewRepository builds an impact repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

// Insert stores entry unless its dedupe key is already present. It reports
// whether a row was written.
func (r *repository) Insert(ctx context.Context, entry *models.ImpactEntry) (bool, error) {
	return r.InsertIgnoringConflict(ctx, entry, "dedupe_key")
}

func (r *repository) TotalPoints(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := r.DB(ctx).
		Model(&models.ImpactEntry{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(points), 0)").
		Scan(&total).Error
	return total, err
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.ImpactEntry, error) {
	var rows []models.ImpactEntry
	q := r.DB(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}
