package cron

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/zerohunger/zerohunger-backend/pkg/logger"
)

const (
	day = 24 * time.Hour

	defaultOutboxRetention       = 30 * day
	defaultOutboxMinAttempts     = 5
	defaultNotificationRetention = 30 * day
)

// purgeJob deletes rows older than a retention window inside one
// transaction. The outbox and notification cleanups are both purgeJobs.
type purgeJob struct {
	name      string
	logg      *logger.Logger
	db        txRunner
	retention time.Duration
	purge     func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
	fields    map[string]any
	now       func() time.Time
}

func (j *purgeJob) Name() string { return j.name }

func (j *purgeJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := j.purge(ctx, tx, cutoff)
		deleted = n
		return err
	})
	if err != nil {
		return err
	}

	fields := map[string]any{"cutoff": cutoff, "rows_deleted": deleted}
	for k, v := range j.fields {
		fields[k] = v
	}
	j.logg.Info(j.logg.WithFields(ctx, fields), "retention purge complete")
	return nil
}

func newPurgeJob(name string, logg *logger.Logger, db txRunner, retention time.Duration) (*purgeJob, error) {
	if logg == nil {
		return nil, errors.New("logger required")
	}
	if db == nil {
		return nil, errors.New("db runner required")
	}
	return &purgeJob{name: name, logg: logg, db: db, retention: retention, now: time.Now}, nil
}

// OutboxRetentionJobParams configure removal of published outbox rows.
// Retention is in days.
type OutboxRetentionJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Repository  outboxPurger
	Retention   int
	MinAttempts int
}

type outboxPurger interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

// NewOutboxRetentionJob drops published outbox rows past retention. Rows
// that needed MinAttempts or more tries are kept for inspection.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, errors.New("outbox repository required")
	}
	retention := defaultOutboxRetention
	if params.Retention > 0 {
		retention = time.Duration(params.Retention) * day
	}
	minAttempts := params.MinAttempts
	if minAttempts <= 0 {
		minAttempts = defaultOutboxMinAttempts
	}

	job, err := newPurgeJob("outbox-retention", params.Logger, params.DB, retention)
	if err != nil {
		return nil, err
	}
	job.fields = map[string]any{"min_attempts": minAttempts}
	job.purge = func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
		return params.Repository.DeletePublishedBefore(ctx, tx, cutoff, minAttempts)
	}
	return job, nil
}

// NotificationCleanupJobParams configure removal of old in-app
// notifications. Retention is in days.
type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository notificationPurger
	Retention  int
}

type notificationPurger interface {
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, errors.New("notifications repository required")
	}
	retention := defaultNotificationRetention
	if params.Retention > 0 {
		retention = time.Duration(params.Retention) * day
	}

	job, err := newPurgeJob("notification-cleanup", params.Logger, params.DB, retention)
	if err != nil {
		return nil, err
	}
	job.purge = params.Repository.DeleteOlderThan
	return job, nil
}
