package main

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zerohunger/zerohunger-backend/internal/cron"
	"github.com/zerohunger/zerohunger-backend/internal/donations"
	"github.com/zerohunger/zerohunger-backend/internal/notifications"
	"github.com/zerohunger/zerohunger-backend/pkg/bootstrap"
	"github.com/zerohunger/zerohunger-backend/pkg/metrics"
	"github.com/zerohunger/zerohunger-backend/pkg/outbox"
)

func main() {
	proc := bootstrap.Start("cron-worker")
	defer proc.Close()
	cfg, logg := proc.Config, proc.Logger

	dbClient := proc.Database()
	redisClient := proc.Redis()
	outboxRepo := outbox.NewRepository(dbClient.DB())

	expiry, err := cron.NewDonationExpiryJob(cron.DonationExpiryJobParams{
		Logger:      logg,
		DB:          dbClient,
		Donations:   donations.NewRepository(dbClient.DB()),
		Outbox:      outbox.NewService(outboxRepo, logg),
		BatchLimit:  cfg.Claims.ExpirySweepBatchLimit,
		LockTimeout: cfg.Claims.LockTimeout,
	})
	proc.Require("donation expiry job", err)

	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
	})
	proc.Require("outbox retention job", err)

	cleanup, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: notifications.NewRepository(dbClient.DB()),
	})
	proc.Require("notification cleanup job", err)

	// One lock per environment so staging and prod sharing a Redis never
	// block each other.
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker:"+cfg.App.Env), cfg.Cron.LockTTL)
	proc.Require("cron lock", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(expiry, retention, cleanup),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	proc.Require("cron service", err)

	ctx, stop := proc.Context(map[string]any{"interval": cfg.Cron.Interval.String()})
	defer stop()
	logg.Info(ctx, "starting cron worker")
	proc.Fail(ctx, "cron worker", service.Run(ctx))
	logg.Info(ctx, "cron worker shutting down gracefully")
}
