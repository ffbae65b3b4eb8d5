package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zerohunger/zerohunger-backend/api/controllers"
	"github.com/zerohunger/zerohunger-backend/api/middleware"
	"github.com/zerohunger/zerohunger-backend/internal/claims"
	"github.com/zerohunger/zerohunger-backend/internal/donations"
	"github.com/zerohunger/zerohunger-backend/internal/impact"
	"github.com/zerohunger/zerohunger-backend/internal/notifications"
	"github.com/zerohunger/zerohunger-backend/pkg/config"
	"github.com/zerohunger/zerohunger-backend/pkg/enums"
	"github.com/zerohunger/zerohunger-backend/pkg/logger"
	"github.com/zerohunger/zerohunger-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	readiness map[string]controllers.Pinger,
	redisClient *redis.Client,
	metricsHandler http.Handler,
	donationService donations.Service,
	claimService claims.Service,
	notificationsService notifications.Service,
	impactService impact.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	// A nil *redis.Client must not become a non-nil interface value.
	var idempotencyStore redis.IdempotencyStore
	claimPolicy := middleware.NewRateLimitPolicy(
		"claim",
		cfg.RateLimit.ClaimWindow,
		cfg.RateLimit.ClaimIPLimit,
		cfg.RateLimit.ClaimUserLimit,
	)
	claimRateLimit := middleware.RateLimit(claimPolicy, nil, logg)
	if redisClient != nil {
		idempotencyStore = redisClient
		claimRateLimit = middleware.RateLimit(claimPolicy, redisClient, logg)
	}

	idempotent := middleware.Idempotent(idempotencyStore, middleware.DefaultIdempotencyTTL, logg)
	lifecycle := middleware.Idempotent(idempotencyStore, cfg.Claims.IdempotencyKeyTTL, logg)

	donorOnly := middleware.RequireRole(logg, enums.RoleDonor)
	volunteerOnly := middleware.RequireRole(logg, enums.RoleVolunteer)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/donations", func(r chi.Router) {
			r.Get("/", controllers.ListDonations(donationService, logg))
			r.Get("/nearby", controllers.NearbyDonations(donationService, logg))
			r.Get("/nearest", controllers.NearestDonations(donationService, logg))
			r.With(donorOnly, idempotent).Post("/", controllers.CreateDonation(donationService, logg))

			r.Route("/{donationId}", func(r chi.Router) {
				r.Get("/", controllers.ShowDonation(donationService, logg))
				r.With(donorOnly).Put("/", controllers.UpdateDonation(donationService, logg))
				r.With(donorOnly).Delete("/", controllers.DeleteDonation(donationService, logg))
				r.With(volunteerOnly, claimRateLimit, lifecycle).Post("/claim", controllers.ClaimDonation(claimService, logg))
			})
		})

		r.With(donorOnly).Get("/my-donations", controllers.MyDonations(donationService, logg))

		r.Route("/claims", func(r chi.Router) {
			r.Use(volunteerOnly)
			r.Get("/", controllers.ListMyClaims(claimService, logg))
			r.Delete("/{claimId}", controllers.CancelClaim(claimService, logg))
			r.With(lifecycle).Post("/{claimId}/pickup", controllers.PickupClaim(claimService, logg))
			r.With(lifecycle).Post("/{claimId}/deliver", controllers.DeliverClaim(claimService, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.With(idempotent).Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
			r.With(idempotent).Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
		})

		r.Get("/impact/me", controllers.MyImpact(impactService, logg))
	})

	return r
}
