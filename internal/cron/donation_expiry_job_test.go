package cron

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/zerohunger/zerohunger-backend/internal/donations"
	"github.com/zerohunger/zerohunger-backend/pkg/db"
	"github.com/zerohunger/zerohunger-backend/pkg/db/models"
	"github.com/zerohunger/zerohunger-backend/pkg/enums"
	"github.com/zerohunger/zerohunger-backend/pkg/logger"
	"github.com/zerohunger/zerohunger-backend/pkg/outbox"
	"github.com/zerohunger/zerohunger-backend/pkg/outbox/payloads"
)

var expiryNow = time.Date(2026, 4, 1, 18, 0, 0, 0, time.UTC)

func newExpiryFixture(t *testing.T) (*donationExpiryJob, *gorm.DB) {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:expiry_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Donation{}, &models.Claim{}, &models.OutboxEvent{}))

	jobIface, err := NewDonationExpiryJob(DonationExpiryJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "cron-test"}),
		DB:        db.FromConn(conn),
		Donations: donations.NewRepository(conn),
		Outbox:    outbox.NewService(outbox.NewRepository(conn), nil),
	})
	require.NoError(t, err)
	job := jobIface.(*donationExpiryJob)
	job.now = func() time.Time { return expiryNow }
	return job, conn
}

func seedExpiring(t *testing.T, conn *gorm.DB, status enums.DonationStatus, expiresAt *time.Time) models.Donation {
	t.Helper()
	donation := models.Donation{
		ID:         uuid.New(),
		DonorID:    uuid.New(),
		Title:      "Soup",
		QuantityKg: decimal.RequireFromString("6"),
		Status:     status,
		Latitude:   30.05,
		Longitude:  31.23,
		ExpiresAt:  expiresAt,
	}
	require.NoError(t, conn.Create(&donation).Error)
	return donation
}

func TestDonationExpiryJobExpiresOnlyStaleAvailable(t *testing.T) {
	job, conn := newExpiryFixture(t)
	past := expiryNow.Add(-time.Hour)
	future := expiryNow.Add(time.Hour)

	stale := seedExpiring(t, conn, enums.DonationStatusAvailable, &past)
	fresh := seedExpiring(t, conn, enums.DonationStatusAvailable, &future)
	open := seedExpiring(t, conn, enums.DonationStatusAvailable, nil)
	reserved := seedExpiring(t, conn, enums.DonationStatusReserved, &past)

	require.NoError(t, job.Run(context.Background()))

	statusOf := func(id uuid.UUID) enums.DonationStatus {
		var d models.Donation
		require.NoError(t, conn.Where("id = ?", id).First(&d).Error)
		return d.Status
	}
	assert.Equal(t, enums.DonationStatusExpired, statusOf(stale.ID))
	assert.Equal(t, enums.DonationStatusAvailable, statusOf(fresh.ID))
	assert.Equal(t, enums.DonationStatusAvailable, statusOf(open.ID))
	assert.Equal(t, enums.DonationStatusReserved, statusOf(reserved.ID))

	var events []models.OutboxEvent
	require.NoError(t, conn.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventDonationExpired, events[0].EventType)
	assert.Equal(t, stale.ID, events[0].AggregateID)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(events[0].Payload, &envelope))
	var payload payloads.DonationLifecycleEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	assert.Equal(t, stale.DonorID, payload.DonorID)
	assert.Equal(t, enums.DonationStatusExpired, payload.Status)
}

func TestDonationExpiryJobIsIdempotent(t *testing.T) {
	job, conn := newExpiryFixture(t)
	past := expiryNow.Add(-time.Minute)
	seedExpiring(t, conn, enums.DonationStatusAvailable, &past)

	require.NoError(t, job.Run(context.Background()))
	require.NoError(t, job.Run(context.Background()))

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestDonationExpiryJobRequiresDependencies(t *testing.T) {
	_, err := NewDonationExpiryJob(DonationExpiryJobParams{})
	assert.Error(t, err)
}
