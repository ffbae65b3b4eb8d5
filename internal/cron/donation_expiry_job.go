package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/zerohunger/zerohunger-backend/internal/donations"
	"github.com/zerohunger/zerohunger-backend/pkg/db"
	"github.com/zerohunger/zerohunger-backend/pkg/enums"
	"github.com/zerohunger/zerohunger-backend/pkg/logger"
	"github.com/zerohunger/zerohunger-backend/pkg/outbox"
	"github.com/zerohunger/zerohunger-backend/pkg/outbox/payloads"
)

const defaultExpiryBatchLimit = 200

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// DonationExpiryJobParams configure the donation expiry sweep.
type DonationExpiryJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Donations   donations.Repository
	Outbox      outboxEmitter
	BatchLimit  int
	LockTimeout time.Duration
}

// NewDonationExpiryJob builds the job that retires unclaimed donations past
// their expiry.
func NewDonationExpiryJob(params DonationExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Donations == nil {
		return nil, fmt.Errorf("donations repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	limit := params.BatchLimit
	if limit <= 0 {
		limit = defaultExpiryBatchLimit
	}
	return &donationExpiryJob{
		logg:        params.Logger,
		db:          params.DB,
		repo:        params.Donations,
		outbox:      params.Outbox,
		limit:       limit,
		lockTimeout: params.LockTimeout,
		now:         time.Now,
	}, nil
}

type donationExpiryJob struct {
	logg        *logger.Logger
	db          txRunner
	repo        donations.Repository
	outbox      outboxEmitter
	limit       int
	lockTimeout time.Duration
	now         func() time.Time
}

func (j *donationExpiryJob) Name() string { return "donation-expiry" }

func (j *donationExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	ids, err := j.repo.ListExpiredAvailable(ctx, now, j.limit)
	if err != nil {
		return fmt.Errorf("query expired donations: %w", err)
	}

	var errs []error
	expired := 0
	for _, id := range ids {
		ok, err := j.expire(ctx, id, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("expire donation %s: %w", id, err))
			continue
		}
		if ok {
			expired++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(ids),
		"expired":    expired,
		"failed":     len(errs),
	})
	j.logg.Info(logCtx, "donation expiry sweep complete")
	return multierr.Combine(errs...)
}

// expire re-reads the donation under its row lock so a claim that committed
// after the candidate query wins.
func (j *donationExpiryJob) expire(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	expired := false
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := db.SetLockTimeout(tx, j.lockTimeout); err != nil {
			return err
		}
		repo := j.repo.WithTx(tx)
		donation, err := repo.LockByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if donation.Status != enums.DonationStatusAvailable || !donation.IsExpired(now) {
			return nil
		}
		if err := repo.Update(ctx, id, map[string]any{
			"status":     enums.DonationStatusExpired,
			"updated_at": now,
		}); err != nil {
			return err
		}
		expired = true
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDonationExpired,
			AggregateType: enums.AggregateDonation,
			AggregateID:   donation.ID,
			OccurredAt:    now,
			Data: payloads.DonationLifecycleEvent{
				DonationID: donation.ID,
				DonorID:    donation.DonorID,
				Title:      donation.Title,
				QuantityKg: donation.QuantityKg,
				Status:     enums.DonationStatusExpired,
				Latitude:   donation.Latitude,
				Longitude:  donation.Longitude,
				ExpiresAt:  donation.ExpiresAt,
				OccurredAt: now,
			},
		})
	})
	if err != nil {
		return false, err
	}
	return expired, nil
}
