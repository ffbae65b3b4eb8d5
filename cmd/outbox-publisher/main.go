package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zerohunger/zerohunger-backend/pkg/bootstrap"
	"github.com/zerohunger/zerohunger-backend/pkg/metrics"
	"github.com/zerohunger/zerohunger-backend/pkg/outbox"
	"github.com/zerohunger/zerohunger-backend/pkg/outbox/registry"
	"github.com/zerohunger/zerohunger-backend/pkg/pubsub"
)

func main() {
	proc := bootstrap.Start("outbox-publisher")
	defer proc.Close()
	cfg, logg := proc.Config, proc.Logger

	dbClient := proc.Database()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	proc.Require("pubsub", err)
	proc.OnClose("pubsub client", pubsubClient.Close)

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	proc.Require("event registry", err)

	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      eventRegistry,
		DLQRepository: outbox.NewDLQRepository(dbClient.DB()),
		Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	proc.Require("outbox publisher", err)

	ctx, stop := proc.Context(map[string]any{"topic": cfg.PubSub.DonationTopic})
	defer stop()
	logg.Info(ctx, "starting outbox publisher")
	proc.Fail(ctx, "outbox publisher", service.Run(ctx))
	logg.Info(ctx, "outbox publisher shutting down gracefully")
}
