package controllers

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/zerohunger/zerohunger-backend/api/middleware"
	"github.com/zerohunger/zerohunger-backend/internal/claims"
	"github.com/zerohunger/zerohunger-backend/internal/donations"
	"github.com/zerohunger/zerohunger-backend/internal/impact"
	"github.com/zerohunger/zerohunger-backend/internal/notifications"
	"github.com/zerohunger/zerohunger-backend/pkg/enums"
	"github.com/zerohunger/zerohunger-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func withCaller(req *http.Request, userID uuid.UUID, role enums.Role) *http.Request {
	ctx := middleware.WithUserID(req.Context(), userID.String())
	ctx = middleware.WithRole(ctx, string(role))
	return req.WithContext(ctx)
}

func addRouteParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.RouteContext(req.Context())
	if routeCtx == nil {
		routeCtx = chi.NewRouteContext()
	}
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

type stubDonationService struct {
	listAvailableFn func(ctx context.Context, viewer donations.Viewer) ([]donations.View, error)
	nearbyFn        func(ctx context.Context, viewer donations.Viewer, input donations.NearbyInput) ([]donations.View, error)
	nearestFn       func(ctx context.Context, viewer donations.Viewer, lat, lng float64, limit int) ([]donations.View, error)
	getFn           func(ctx context.Context, viewer donations.Viewer, id uuid.UUID) (*donations.View, error)
	createFn        func(ctx context.Context, viewer donations.Viewer, input donations.CreateInput) (*donations.View, error)
	updateFn        func(ctx context.Context, viewer donations.Viewer, id uuid.UUID, input donations.UpdateInput) (*donations.View, error)
	deleteFn        func(ctx context.Context, viewer donations.Viewer, id uuid.UUID) error
}

func (s *stubDonationService) ListAvailable(ctx context.Context, viewer donations.Viewer) ([]donations.View, error) {
	if s.listAvailableFn != nil {
		return s.listAvailableFn(ctx, viewer)
	}
	return []donations.View{}, nil
}

func (s *stubDonationService) ListNearby(ctx context.Context, viewer donations.Viewer, input donations.NearbyInput) ([]donations.View, error) {
	if s.nearbyFn != nil {
		return s.nearbyFn(ctx, viewer, input)
	}
	return []donations.View{}, nil
}

func (s *stubDonationService) Nearest(ctx context.Context, viewer donations.Viewer, lat, lng float64, limit int) ([]donations.View, error) {
	if s.nearestFn != nil {
		return s.nearestFn(ctx, viewer, lat, lng, limit)
	}
	return []donations.View{}, nil
}

func (s *stubDonationService) ListMine(ctx context.Context, viewer donations.Viewer) ([]donations.View, error) {
	return []donations.View{}, nil
}

func (s *stubDonationService) Get(ctx context.Context, viewer donations.Viewer, id uuid.UUID) (*donations.View, error) {
	if s.getFn != nil {
		return s.getFn(ctx, viewer, id)
	}
	return &donations.View{ID: id}, nil
}

func (s *stubDonationService) Create(ctx context.Context, viewer donations.Viewer, input donations.CreateInput) (*donations.View, error) {
	if s.createFn != nil {
		return s.createFn(ctx, viewer, input)
	}
	return &donations.View{ID: uuid.New()}, nil
}

func (s *stubDonationService) Update(ctx context.Context, viewer donations.Viewer, id uuid.UUID, input donations.UpdateInput) (*donations.View, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, viewer, id, input)
	}
	return &donations.View{ID: id}, nil
}

func (s *stubDonationService) Delete(ctx context.Context, viewer donations.Viewer, id uuid.UUID) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, viewer, id)
	}
	return nil
}

type stubClaimService struct {
	attemptFn func(ctx context.Context, input claims.ClaimInput) (*claims.ClaimResult, error)
	pickupFn  func(ctx context.Context, input claims.PickupInput) (*donations.ClaimView, error)
	deliverFn func(ctx context.Context, input claims.DeliverInput) (*donations.ClaimView, error)
	cancelFn  func(ctx context.Context, input claims.CancelInput) (*donations.ClaimView, error)
}

func (s *stubClaimService) AttemptClaim(ctx context.Context, input claims.ClaimInput) (*claims.ClaimResult, error) {
	if s.attemptFn != nil {
		return s.attemptFn(ctx, input)
	}
	return &claims.ClaimResult{PickupCode: "000000"}, nil
}

func (s *stubClaimService) Pickup(ctx context.Context, input claims.PickupInput) (*donations.ClaimView, error) {
	if s.pickupFn != nil {
		return s.pickupFn(ctx, input)
	}
	return &donations.ClaimView{ID: input.ClaimID, Status: enums.ClaimStatusPickedUp}, nil
}

func (s *stubClaimService) Deliver(ctx context.Context, input claims.DeliverInput) (*donations.ClaimView, error) {
	if s.deliverFn != nil {
		return s.deliverFn(ctx, input)
	}
	return &donations.ClaimView{ID: input.ClaimID, Status: enums.ClaimStatusDelivered, Notes: input.Notes}, nil
}

func (s *stubClaimService) Cancel(ctx context.Context, input claims.CancelInput) (*donations.ClaimView, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, input)
	}
	return &donations.ClaimView{ID: input.ClaimID, Status: enums.ClaimStatusCancelled}, nil
}

func (s *stubClaimService) ListForCourier(ctx context.Context, courierID uuid.UUID) ([]donations.ClaimView, error) {
	return []donations.ClaimView{}, nil
}

type stubNotificationsService struct {
	listFn        func(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error)
	markReadFn    func(ctx context.Context, userID, notificationID uuid.UUID) error
	markAllReadFn func(ctx context.Context, userID uuid.UUID) (int64, error)
}

func (s *stubNotificationsService) Notify(ctx context.Context, msg notifications.Message) (bool, error) {
	return true, nil
}

func (s *stubNotificationsService) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	if s.listFn != nil {
		return s.listFn(ctx, params)
	}
	return &notifications.ListResult{}, nil
}

func (s *stubNotificationsService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if s.markReadFn != nil {
		return s.markReadFn(ctx, userID, notificationID)
	}
	return nil
}

func (s *stubNotificationsService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if s.markAllReadFn != nil {
		return s.markAllReadFn(ctx, userID)
	}
	return 0, nil
}

type stubImpactService struct {
	summaryFn func(ctx context.Context, userID uuid.UUID) (*impact.Summary, error)
}

func (s *stubImpactService) Credit(ctx context.Context, credits ...impact.Credit) (int, error) {
	return len(credits), nil
}

func (s *stubImpactService) Summary(ctx context.Context, userID uuid.UUID) (*impact.Summary, error) {
	if s.summaryFn != nil {
		return s.summaryFn(ctx, userID)
	}
	return &impact.Summary{UserID: userID}, nil
}
