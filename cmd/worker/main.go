package main

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/zerohunger/zerohunger-backend/internal/analytics"
	analyticstypes "github.com/zerohunger/zerohunger-backend/internal/analytics/types"
	"github.com/zerohunger/zerohunger-backend/internal/analytics/writer"
	"github.com/zerohunger/zerohunger-backend/internal/consumers"
	"github.com/zerohunger/zerohunger-backend/internal/impact"
	"github.com/zerohunger/zerohunger-backend/internal/notifications"
	"github.com/zerohunger/zerohunger-backend/pkg/bigquery"
	"github.com/zerohunger/zerohunger-backend/pkg/bootstrap"
	"github.com/zerohunger/zerohunger-backend/pkg/outbox/idempotency"
	"github.com/zerohunger/zerohunger-backend/pkg/pubsub"
)

func main() {
	proc := bootstrap.Start("worker")
	defer proc.Close()
	cfg, logg := proc.Config, proc.Logger
	boot := context.Background()

	dbClient := proc.Database()
	redisClient := proc.Redis()

	pubsubClient, err := pubsub.NewClient(boot, cfg.GCP, cfg.PubSub, logg)
	proc.Require("pubsub", err)
	proc.OnClose("pubsub client", pubsubClient.Close)

	bqClient, err := bigquery.NewClient(boot, cfg.GCP, cfg.BigQuery, logg)
	proc.Require("bigquery", err)
	proc.OnClose("bigquery client", bqClient.Close)

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	proc.Require("idempotency manager", err)

	notificationService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	proc.Require("notification service", err)
	notificationHandler, err := notifications.NewHandler(notificationService)
	proc.Require("notification handler", err)

	impactService, err := impact.NewService(impact.NewRepository(dbClient.DB()), dbClient, logg)
	proc.Require("impact service", err)
	impactHandler, err := impact.NewHandler(impactService)
	proc.Require("impact handler", err)

	schema, err := analyticstypes.DonationEventSchema()
	proc.Require("donation events schema", err)
	proc.Require("donation events table", bqClient.EnsureTable(boot, cfg.BigQuery.DonationEventsTable, schema, analyticstypes.PartitionField))

	analyticsWriter, err := writer.New(bqClient, writer.Config{DonationEventsTable: cfg.BigQuery.DonationEventsTable})
	proc.Require("analytics writer", err)
	analyticsHandler, err := analytics.NewHandler(analyticsWriter)
	proc.Require("analytics handler", err)

	subscriptions := []struct {
		name    string
		sub     *gcppubsub.Subscriber
		handler consumers.Handler
	}{
		{notifications.ConsumerName, pubsubClient.NotificationSubscription(), notificationHandler},
		{impact.ConsumerName, pubsubClient.ImpactSubscription(), impactHandler},
		{analytics.ConsumerName, pubsubClient.AnalyticsSubscription(), analyticsHandler},
	}
	runners := make([]consumer, 0, len(subscriptions))
	for _, s := range subscriptions {
		if s.sub == nil {
			proc.Require(s.name+" subscription", errors.New("subscription not configured"))
		}
		runner, err := consumers.NewRunner(s.name, s.sub, s.handler, manager, logg)
		proc.Require(s.name+" consumer", err)
		runners = append(runners, runner)
	}

	service, err := NewService(ServiceParams{
		Logger: logg,
		Dependencies: []dependency{
			{name: "database", ping: dbClient},
			{name: "redis", ping: redisClient},
			{name: "pubsub", ping: pubsubClient},
			{name: "bigquery", ping: bqClient},
		},
		Consumers: runners,
		Flushers:  []flusher{analyticsWriter},
	})
	proc.Require("worker service", err)

	ctx, stop := proc.Context(nil)
	defer stop()
	logg.Info(ctx, "starting worker")
	proc.Fail(ctx, "worker", service.Run(ctx))
	logg.Info(ctx, "worker shutting down gracefully")
}
