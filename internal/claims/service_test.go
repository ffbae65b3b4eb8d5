package claims

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/zerohunger/zerohunger-backend/internal/donations"
	"github.com/zerohunger/zerohunger-backend/pkg/config"
	"github.com/zerohunger/zerohunger-backend/pkg/db"
	"github.com/zerohunger/zerohunger-backend/pkg/db/models"
	"github.com/zerohunger/zerohunger-backend/pkg/enums"
	pkgerrors "github.com/zerohunger/zerohunger-backend/pkg/errors"
	"github.com/zerohunger/zerohunger-backend/pkg/metrics"
	"github.com/zerohunger/zerohunger-backend/pkg/outbox"
)

const fixedCode = "042817"

var testNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

type fixture struct {
	conn *gorm.DB
	svc  Service
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// a file database with immediate transactions gives writers the same
	// serialization a row lock gives them on Postgres
	dsn := "file:" + filepath.Join(t.TempDir(), "claims.db") + "?_txlock=immediate&_busy_timeout=10000&_journal_mode=WAL"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Donation{}, &models.Claim{}, &models.OutboxEvent{}))
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func newFixture(t *testing.T, reg prometheus.Registerer) fixture {
	return newFixtureWith(t, reg, nil)
}

// newFixtureWith lets a test swap collaborators before the service is built.
func newFixtureWith(t *testing.T, reg prometheus.Registerer, mutate func(*ServiceParams)) fixture {
	t.Helper()
	conn := openTestDB(t)
	params := ServiceParams{
		Claims:    NewRepository(conn),
		Donations: donations.NewRepository(conn),
		Tx:        db.FromConn(conn),
		Outbox:    outbox.NewService(outbox.NewRepository(conn), nil),
		Config:    config.ClaimsConfig{LockTimeout: 5 * time.Second},
		Metrics:   metrics.NewClaimMetrics(reg),
		Now:       func() time.Time { return testNow },
		Codes:     func() (string, error) { return fixedCode, nil },
	}
	if mutate != nil {
		mutate(&params)
	}
	svc, err := NewService(params)
	require.NoError(t, err)
	return fixture{conn: conn, svc: svc}
}

// failOn emits through next except for one event type, which fails after
// every row write of the transition has already happened.
type failOn struct {
	next      outbox.Emitter
	eventType enums.OutboxEventType
}

func (e failOn) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if event.EventType == e.eventType {
		return errors.New("outbox insert failed")
	}
	return e.next.Emit(ctx, tx, event)
}

func failingOutbox(eventType enums.OutboxEventType) func(*ServiceParams) {
	return func(p *ServiceParams) {
		p.Outbox = failOn{next: p.Outbox, eventType: eventType}
	}
}

func (f fixture) claimCount(t *testing.T, donationID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(&models.Claim{}).Where("donation_id = ?", donationID).Count(&n).Error)
	return n
}

func (f fixture) seedDonation(t *testing.T, kg string) models.Donation {
	t.Helper()
	donation := models.Donation{
		ID:         uuid.New(),
		DonorID:    uuid.New(),
		Title:      "Bakery surplus",
		QuantityKg: decimal.RequireFromString(kg),
		Status:     enums.DonationStatusAvailable,
		Latitude:   30.0444,
		Longitude:  31.2357,
	}
	require.NoError(t, f.conn.Create(&donation).Error)
	return donation
}

func (f fixture) loadDonation(t *testing.T, id uuid.UUID) models.Donation {
	t.Helper()
	var donation models.Donation
	require.NoError(t, f.conn.Where("id = ?", id).First(&donation).Error)
	return donation
}

func (f fixture) loadClaim(t *testing.T, id uuid.UUID) models.Claim {
	t.Helper()
	var claim models.Claim
	require.NoError(t, f.conn.Where("id = ?", id).First(&claim).Error)
	return claim
}

func (f fixture) eventTypes(t *testing.T) []string {
	t.Helper()
	var types []string
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Order("created_at ASC, rowid ASC").Pluck("event_type", &types).Error)
	return types
}

func (f fixture) claim(t *testing.T, donationID, courierID uuid.UUID) *ClaimResult {
	t.Helper()
	result, err := f.svc.AttemptClaim(context.Background(), ClaimInput{
		DonationID:  donationID,
		CourierID:   courierID,
		CourierRole: enums.RoleVolunteer,
	})
	require.NoError(t, err)
	return result
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	assert.Equal(t, code, typed.Code(), "error: %v", err)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestAttemptClaimReservesDonation(t *testing.T) {
	f := newFixture(t, nil)
	donation := f.seedDonation(t, "5.5")
	courier := uuid.New()

	result := f.claim(t, donation.ID, courier)
	assert.Equal(t, fixedCode, result.PickupCode)
	assert.Equal(t, enums.DonationStatusReserved, result.Donation.Status)
	require.NotNil(t, result.Donation.PickupCode)
	assert.Equal(t, fixedCode, *result.Donation.PickupCode)
	assert.Equal(t, enums.ClaimStatusActive, result.Claim.Status)
	assert.Equal(t, courier, result.Claim.CourierID)

	stored := f.loadDonation(t, donation.ID)
	assert.Equal(t, enums.DonationStatusReserved, stored.Status)
	require.NotNil(t, stored.PickupCode)
	assert.Equal(t, fixedCode, *stored.PickupCode)
	assert.Equal(t, []string{string(enums.EventDonationClaimed)}, f.eventTypes(t))
}

func TestAttemptClaimRequiresVolunteer(t *testing.T) {
	f := newFixture(t, nil)
	donation := f.seedDonation(t, "1")
	_, err := f.svc.AttemptClaim(context.Background(), ClaimInput{
		DonationID:  donation.ID,
		CourierID:   uuid.New(),
		CourierRole: enums.RoleDonor,
	})
	requireCode(t, err, pkgerrors.CodeForbidden)
	assert.Equal(t, enums.DonationStatusAvailable, f.loadDonation(t, donation.ID).Status)
}

func TestAttemptClaimMissingDonation(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.AttemptClaim(context.Background(), ClaimInput{
		DonationID:  uuid.New(),
		CourierID:   uuid.New(),
		CourierRole: enums.RoleVolunteer,
	})
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestAttemptClaimTwiceConflicts(t *testing.T) {
	f := newFixture(t, nil)
	donation := f.seedDonation(t, "1")
	courier := uuid.New()
	f.claim(t, donation.ID, courier)

	for _, who := range []uuid.UUID{courier, uuid.New()} {
		_, err := f.svc.AttemptClaim(context.Background(), ClaimInput{
			DonationID:  donation.ID,
			CourierID:   who,
			CourierRole: enums.RoleVolunteer,
		})
		requireCode(t, err, pkgerrors.CodeConflict)
	}

	var claims int64
	require.NoError(t, f.conn.Model(&models.Claim{}).Where("donation_id = ?", donation.ID).Count(&claims).Error)
	assert.EqualValues(t, 1, claims)
}

func TestAttemptClaimRejectsExpiredDonation(t *testing.T) {
	f := newFixture(t, nil)
	donation := f.seedDonation(t, "1")
	require.NoError(t, f.conn.Model(&models.Donation{}).Where("id = ?", donation.ID).
		Update("expires_at", testNow.Add(-time.Minute)).Error)

	_, err := f.svc.AttemptClaim(context.Background(), ClaimInput{
		DonationID:  donation.ID,
		CourierID:   uuid.New(),
		CourierRole: enums.RoleVolunteer,
	})
	requireCode(t, err, pkgerrors.CodeConflict)
}

func TestConcurrentClaimsHaveSingleWinner(t *testing.T) {
	f := newFixture(t, nil)
	donation := f.seedDonation(t, "3")

	const attempts = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []uuid.UUID
		conflicts int
		other     []error
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		courier := uuid.New()
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.AttemptClaim(context.Background(), ClaimInput{
				DonationID:  donation.ID,
				CourierID:   courier,
				CourierRole: enums.RoleVolunteer,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, courier)
			case pkgerrors.Is(err, pkgerrors.CodeConflict):
				conflicts++
			default:
				other = append(other, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Empty(t, other)
	require.Len(t, winners, 1)
	assert.Equal(t, attempts-1, conflicts)

	var claim models.Claim
	require.NoError(t, f.conn.Where("donation_id = ?", donation.ID).First(&claim).Error)
	assert.Equal(t, winners[0], claim.CourierID)
	assert.Equal(t, enums.DonationStatusReserved, f.loadDonation(t, donation.ID).Status)
}

func TestPickupVerifiesCode(t *testing.T) {
	f := newFixture(t, nil)
	donation := f.seedDonation(t, "2")
	courier := uuid.New()
	result := f.claim(t, donation.ID, courier)

	for _, bad := range []string{"000000", "42817", "abcdef", ""} {
		_, err := f.svc.Pickup(context.Background(), PickupInput{ClaimID: result.Claim.ID, CourierID: courier, Code: bad})
		requireCode(t, err, pkgerrors.CodeInvalidCode)
	}
	assert.Equal(t, enums.ClaimStatusActive, f.loadClaim(t, result.Claim.ID).Status)

	view, err := f.svc.Pickup(context.Background(), PickupInput{ClaimID: result.Claim.ID, CourierID: courier, Code: fixedCode})
	require.NoError(t, err)
	assert.Equal(t, enums.ClaimStatusPickedUp, view.Status)
	require.NotNil(t, view.PickedUpAt)
	require.NotNil(t, view.Donation)
	assert.Equal(t, enums.DonationStatusPickedUp, view.Donation.Status)
	assert.Equal(t, enums.DonationStatusPickedUp, f.loadDonation(t, donation.ID).Status)

	_, err = f.svc.Pickup(context.Background(), PickupInput{ClaimID: result.Claim.ID, CourierID: courier, Code: fixedCode})
	requireCode(t, err, pkgerrors.CodeConflict)
}

func TestTransitionsRequireClaimOwner(t *testing.T) {
	f := newFixture(t, nil)
	donation := f.seedDonation(t, "2")
	result := f.claim(t, donation.ID, uuid.New())
	intruder := uuid.New()

	_, err := f.svc.Pickup(context.Background(), PickupInput{ClaimID: result.Claim.ID, CourierID: intruder, Code: fixedCode})
	requireCode(t, err, pkgerrors.CodeForbidden)
	_, err = f.svc.Deliver(context.Background(), DeliverInput{ClaimID: result.Claim.ID, CourierID: intruder})
	requireCode(t, err, pkgerrors.CodeForbidden)
	_, err = f.svc.Cancel(context.Background(), CancelInput{ClaimID: result.Claim.ID, CourierID: intruder})
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.Cancel(context.Background(), CancelInput{ClaimID: uuid.New(), CourierID: intruder})
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestDeliverRequiresPickupFirst(t *testing.T) {
	f := newFixture(t, nil)
	donation := f.seedDonation(t, "2")
	courier := uuid.New()
	result := f.claim(t, donation.ID, courier)

	_, err := f.svc.Deliver(context.Background(), DeliverInput{ClaimID: result.Claim.ID, CourierID: courier})
	requireCode(t, err, pkgerrors.CodeConflict)
	assert.Equal(t, enums.ClaimStatusActive, f.loadClaim(t, result.Claim.ID).Status)
}

func TestDeliverRejectsLongNotes(t *testing.T) {
	f := newFixture(t, nil)
	donation := f.seedDonation(t, "2")
	courier := uuid.New()
	result := f.claim(t, donation.ID, courier)
	_, err := f.svc.Pickup(context.Background(), PickupInput{ClaimID: result.Claim.ID, CourierID: courier, Code: fixedCode})
	require.NoError(t, err)

	notes := strings.Repeat("n", maxNotesLength+1)
	_, err = f.svc.Deliver(context.Background(), DeliverInput{ClaimID: result.Claim.ID, CourierID: courier, Notes: &notes})
	requireCode(t, err, pkgerrors.CodeValidation)
	assert.Equal(t, enums.ClaimStatusPickedUp, f.loadClaim(t, result.Claim.ID).Status)
}

func TestDeliverChecksOwnerAndStateBeforeNotes(t *testing.T) {
	f := newFixture(t, nil)
	donation := f.seedDonation(t, "2")
	courier := uuid.New()
	result := f.claim(t, donation.ID, courier)
	notes := strings.Repeat("n", maxNotesLength+1)

	_, err := f.svc.Deliver(context.Background(), DeliverInput{ClaimID: result.Claim.ID, CourierID: uuid.New(), Notes: &notes})
	requireCode(t, err, pkgerrors.CodeForbidden)

	_, err = f.svc.Deliver(context.Background(), DeliverInput{ClaimID: result.Claim.ID, CourierID: courier, Notes: &notes})
	requireCode(t, err, pkgerrors.CodeConflict)
}

func TestAttemptClaimRollsBackWhenEventFails(t *testing.T) {
	f := newFixtureWith(t, nil, failingOutbox(enums.EventDonationClaimed))
	donation := f.seedDonation(t, "2")

	_, err := f.svc.AttemptClaim(context.Background(), ClaimInput{
		DonationID:  donation.ID,
		CourierID:   uuid.New(),
		CourierRole: enums.RoleVolunteer,
	})
	require.Error(t, err)

	stored := f.loadDonation(t, donation.ID)
	assert.Equal(t, enums.DonationStatusAvailable, stored.Status)
	assert.Nil(t, stored.PickupCode)
	assert.Zero(t, f.claimCount(t, donation.ID))
	assert.Empty(t, f.eventTypes(t))
}

func TestAttemptClaimRollsBackWhenCodeGenerationFails(t *testing.T) {
	f := newFixtureWith(t, nil, func(p *ServiceParams) {
		p.Codes = func() (string, error) { return "", errors.New("entropy unavailable") }
	})
	donation := f.seedDonation(t, "2")

	_, err := f.svc.AttemptClaim(context.Background(), ClaimInput{
		DonationID:  donation.ID,
		CourierID:   uuid.New(),
		CourierRole: enums.RoleVolunteer,
	})
	require.Error(t, err)

	stored := f.loadDonation(t, donation.ID)
	assert.Equal(t, enums.DonationStatusAvailable, stored.Status)
	assert.Nil(t, stored.PickupCode)
	assert.Zero(t, f.claimCount(t, donation.ID))
}

func TestTransitionRollsBackWhenEventFails(t *testing.T) {
	cases := map[enums.OutboxEventType]func(Service, uuid.UUID, uuid.UUID) error{
		enums.EventClaimPickedUp: func(svc Service, claimID, courier uuid.UUID) error {
			_, err := svc.Pickup(context.Background(), PickupInput{ClaimID: claimID, CourierID: courier, Code: fixedCode})
			return err
		},
		enums.EventClaimCancelled: func(svc Service, claimID, courier uuid.UUID) error {
			_, err := svc.Cancel(context.Background(), CancelInput{ClaimID: claimID, CourierID: courier})
			return err
		},
	}
	for eventType, run := range cases {
		t.Run(string(eventType), func(t *testing.T) {
			f := newFixtureWith(t, nil, failingOutbox(eventType))
			donation := f.seedDonation(t, "2")
			courier := uuid.New()
			result := f.claim(t, donation.ID, courier)

			require.Error(t, run(f.svc, result.Claim.ID, courier))

			claim := f.loadClaim(t, result.Claim.ID)
			assert.Equal(t, enums.ClaimStatusActive, claim.Status)
			assert.Nil(t, claim.PickedUpAt)
			assert.Nil(t, claim.CancelledAt)
			stored := f.loadDonation(t, donation.ID)
			assert.Equal(t, enums.DonationStatusReserved, stored.Status)
			require.NotNil(t, stored.PickupCode)
			assert.Equal(t, fixedCode, *stored.PickupCode)
			assert.Equal(t, []string{string(enums.EventDonationClaimed)}, f.eventTypes(t))
		})
	}
}

func TestCancelRetiresDonation(t *testing.T) {
	f := newFixture(t, nil)
	donation := f.seedDonation(t, "2")
	courier := uuid.New()
	result := f.claim(t, donation.ID, courier)

	view, err := f.svc.Cancel(context.Background(), CancelInput{ClaimID: result.Claim.ID, CourierID: courier})
	require.NoError(t, err)
	assert.Equal(t, enums.ClaimStatusCancelled, view.Status)
	require.NotNil(t, view.CancelledAt)

	stored := f.loadDonation(t, donation.ID)
	assert.Equal(t, enums.DonationStatusCancelled, stored.Status)
	require.NotNil(t, stored.PickupCode)
	assert.Equal(t, fixedCode, *stored.PickupCode)

	_, err = f.svc.Cancel(context.Background(), CancelInput{ClaimID: result.Claim.ID, CourierID: courier})
	requireCode(t, err, pkgerrors.CodeConflict)

	_, err = f.svc.AttemptClaim(context.Background(), ClaimInput{
		DonationID:  donation.ID,
		CourierID:   uuid.New(),
		CourierRole: enums.RoleVolunteer,
	})
	requireCode(t, err, pkgerrors.CodeConflict)
}

func TestCancelAfterPickup(t *testing.T) {
	f := newFixture(t, nil)
	donation := f.seedDonation(t, "2")
	courier := uuid.New()
	result := f.claim(t, donation.ID, courier)
	_, err := f.svc.Pickup(context.Background(), PickupInput{ClaimID: result.Claim.ID, CourierID: courier, Code: fixedCode})
	require.NoError(t, err)

	view, err := f.svc.Cancel(context.Background(), CancelInput{ClaimID: result.Claim.ID, CourierID: courier})
	require.NoError(t, err)
	assert.Equal(t, enums.ClaimStatusCancelled, view.Status)
}

func TestFullLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := newFixture(t, reg)
	donation := f.seedDonation(t, "5.5")
	courier := uuid.New()

	result := f.claim(t, donation.ID, courier)
	_, err := f.svc.Pickup(context.Background(), PickupInput{ClaimID: result.Claim.ID, CourierID: courier, Code: " " + fixedCode + " "})
	require.NoError(t, err)

	notes := "  left with the front desk  "
	view, err := f.svc.Deliver(context.Background(), DeliverInput{ClaimID: result.Claim.ID, CourierID: courier, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, enums.ClaimStatusDelivered, view.Status)
	require.NotNil(t, view.DeliveredAt)
	require.NotNil(t, view.Notes)
	assert.Equal(t, "left with the front desk", *view.Notes)
	assert.Equal(t, enums.DonationStatusDelivered, f.loadDonation(t, donation.ID).Status)

	_, err = f.svc.Cancel(context.Background(), CancelInput{ClaimID: result.Claim.ID, CourierID: courier})
	requireCode(t, err, pkgerrors.CodeConflict)

	assert.Equal(t, []string{
		string(enums.EventDonationClaimed),
		string(enums.EventClaimPickedUp),
		string(enums.EventDonationDelivered),
	}, f.eventTypes(t))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	var successes, conflicts float64
	for _, mf := range mfs {
		if mf.GetName() != "claim_operations_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() != "outcome" {
					continue
				}
				switch label.GetValue() {
				case metrics.OutcomeSuccess:
					successes += m.GetCounter().GetValue()
				case metrics.OutcomeConflict:
					conflicts += m.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, 3.0, successes)
	assert.Equal(t, 1.0, conflicts)
}

func TestListForCourier(t *testing.T) {
	f := newFixture(t, nil)
	courier := uuid.New()
	first := f.seedDonation(t, "1")
	second := f.seedDonation(t, "2")
	f.claim(t, first.ID, courier)
	f.claim(t, second.ID, courier)
	f.claim(t, f.seedDonation(t, "3").ID, uuid.New())

	views, err := f.svc.ListForCourier(context.Background(), courier)
	require.NoError(t, err)
	require.Len(t, views, 2)
	for _, v := range views {
		assert.Equal(t, courier, v.CourierID)
		require.NotNil(t, v.Donation)
		require.NotNil(t, v.Donation.PickupCode)
	}
}
