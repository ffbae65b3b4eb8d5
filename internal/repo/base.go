// Package repo holds the gorm plumbing shared by the domain repositories.
package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Base is embedded by domain repositories. Rebinding it to a transaction
// handle is how a repository joins a caller's transaction.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the handle bound to ctx.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// ForUpdate selects with FOR UPDATE. The row lock lives until the enclosing
// transaction ends; sqlite ignores the clause and serializes writers anyway.
func (b Base) ForUpdate(ctx context.Context) *gorm.DB {
	return b.DB(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
}

// UpdateByID applies fields to the row of model's table with the given id.
func (b Base) UpdateByID(ctx context.Context, model any, id uuid.UUID, fields map[string]any) error {
	return b.DB(ctx).Model(model).Where("id = ?", id).Updates(fields).Error
}

// InsertIgnoringConflict inserts row unless it collides on the unique
// columns given, and reports whether a row was written.
func (b Base) InsertIgnoringConflict(ctx context.Context, row any, columns ...string) (bool, error) {
	target := make([]clause.Column, len(columns))
	for i, name := range columns {
		target[i] = clause.Column{Name: name}
	}
	res := b.DB(ctx).Clauses(clause.OnConflict{Columns: target, DoNothing: true}).Create(row)
	return res.RowsAffected > 0, res.Error
}

// First runs q and returns the first row as a T, or gorm.ErrRecordNotFound.
func First[T any](q *gorm.DB) (*T, error) {
	var row T
	if err := q.First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}
