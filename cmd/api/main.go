package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zerohunger/zerohunger-backend/api/controllers"
	"github.com/zerohunger/zerohunger-backend/api/routes"
	"github.com/zerohunger/zerohunger-backend/internal/claims"
	"github.com/zerohunger/zerohunger-backend/internal/donations"
	"github.com/zerohunger/zerohunger-backend/internal/impact"
	"github.com/zerohunger/zerohunger-backend/internal/notifications"
	"github.com/zerohunger/zerohunger-backend/pkg/bootstrap"
	"github.com/zerohunger/zerohunger-backend/pkg/metrics"
	"github.com/zerohunger/zerohunger-backend/pkg/outbox"
)

const shutdownTimeout = 15 * time.Second

func main() {
	proc := bootstrap.Start("api")
	defer proc.Close()
	cfg, logg := proc.Config, proc.Logger

	dbClient := proc.Database()
	redisClient := proc.Redis()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	claimMetrics := metrics.NewClaimMetrics(reg)

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	donationRepo := donations.NewRepository(dbClient.DB())

	donationService, err := donations.NewService(donations.ServiceParams{
		Repo:   donationRepo,
		Tx:     dbClient,
		Outbox: outboxService,
		Config: cfg.Claims,
		Logger: logg,
	})
	proc.Require("donation service", err)

	claimService, err := claims.NewService(claims.ServiceParams{
		Claims:    claims.NewRepository(dbClient.DB()),
		Donations: donationRepo,
		Tx:        dbClient,
		Outbox:    outboxService,
		Config:    cfg.Claims,
		Metrics:   claimMetrics,
		Logger:    logg,
	})
	proc.Require("claim service", err)

	notificationService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	proc.Require("notification service", err)

	impactService, err := impact.NewService(impact.NewRepository(dbClient.DB()), dbClient, logg)
	proc.Require("impact service", err)

	readiness := map[string]controllers.Pinger{
		"database": dbClient,
		"redis":    redisClient,
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := proc.Context(map[string]any{"addr": addr})
	defer stop()

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			readiness,
			redisClient,
			promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
			donationService,
			claimService,
			notificationService,
			impactService,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		proc.Fail(ctx, "api server", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shutting down gracefully")
	}
}
