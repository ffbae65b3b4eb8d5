package impact

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/zerohunger/zerohunger-backend/pkg/db/models"
	"github.com/zerohunger/zerohunger-backend/pkg/enums"
	pkgerrors "github.com/zerohunger/zerohunger-backend/pkg/errors"
	"github.com/zerohunger/zerohunger-backend/pkg/logger"
)

const recentEntriesLimit = 50

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Credit is one points award derived from a claim transition.
type Credit struct {
	UserID     uuid.UUID
	ClaimID    uuid.UUID
	DonationID uuid.UUID
	Transition enums.OutboxEventType
	Action     enums.ImpactAction
	QuantityKg decimal.Decimal
}

// EntryView is the API representation of a ledger entry.
type EntryView struct {
	ID         uuid.UUID          `json:"id"`
	ClaimID    uuid.UUID          `json:"claim_id"`
	DonationID uuid.UUID          `json:"donation_id"`
	Action     enums.ImpactAction `json:"action"`
	QuantityKg decimal.Decimal    `json:"quantity_kg"`
	Points     int64              `json:"points"`
	CreatedAt  time.Time          `json:"created_at"`
}

// Summary is a user's impact score with their latest entries.
type Summary struct {
	UserID  uuid.UUID   `json:"user_id"`
	Points  int64       `json:"points"`
	Entries []EntryView `json:"entries"`
}

// Service maintains the impact ledger.
type Service interface {
	Credit(ctx context.Context, credits ...Credit) (int, error)
	Summary(ctx context.Context, userID uuid.UUID) (*Summary, error)
}

type service struct {
	repo Repository
	tx   txRunner
	logg *logger.Logger
}

// NewService builds the ledger service.
func NewService(repo Repository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("impact repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, logg: logg}, nil
}

// Credit applies every credit in one transaction and returns how many were
// new. Credits already present by dedupe key are skipped.
func (s *service) Credit(ctx context.Context, credits ...Credit) (int, error) {
	if len(credits) == 0 {
		return 0, nil
	}
	applied := 0
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for _, credit := range credits {
			if credit.UserID == uuid.Nil || credit.ClaimID == uuid.Nil {
				return pkgerrors.New(pkgerrors.CodeValidation, "credit requires user and claim")
			}
			entry := models.ImpactEntry{
				ID:         uuid.New(),
				UserID:     credit.UserID,
				ClaimID:    credit.ClaimID,
				DonationID: credit.DonationID,
				Action:     credit.Action,
				QuantityKg: credit.QuantityKg,
				Points:     Points(credit.QuantityKg, credit.Action),
				DedupeKey:  DedupeKey(credit.ClaimID, credit.Transition, credit.Action),
			}
			inserted, err := repo.Insert(ctx, &entry)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert impact entry")
			}
			if inserted {
				applied++
			}
			if s.logg != nil {
				logCtx := s.logg.WithFields(ctx, map[string]any{
					"user_id":    credit.UserID.String(),
					"claim_id":   credit.ClaimID.String(),
					"action":     credit.Action,
					"points":     entry.Points,
					"duplicated": !inserted,
				})
				s.logg.Info(logCtx, "impact credited")
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return applied, nil
}

func (s *service) Summary(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	total, err := s.repo.TotalPoints(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum impact points")
	}
	rows, err := s.repo.ListByUser(ctx, userID, recentEntriesLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list impact entries")
	}
	entries := make([]EntryView, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, EntryView{
			ID:         row.ID,
			ClaimID:    row.ClaimID,
			DonationID: row.DonationID,
			Action:     row.Action,
			QuantityKg: row.QuantityKg,
			Points:     row.Points,
			CreatedAt:  row.CreatedAt,
		})
	}
	return &Summary{UserID: userID, Points: total, Entries: entries}, nil
}
