package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/zerohunger/zerohunger-backend/pkg/config"
	"github.com/zerohunger/zerohunger-backend/pkg/db/models"
	"github.com/zerohunger/zerohunger-backend/pkg/enums"
	"github.com/zerohunger/zerohunger-backend/pkg/outbox"
	"github.com/zerohunger/zerohunger-backend/pkg/outbox/payloads"
)

func TestEventRegistryResolveSuccess(t *testing.T) {
	reg := newTestEventRegistry(t)

	claimID := uuid.New()
	payloadBytes := mustMarshal(t, payloads.ClaimLifecycleEvent{
		ClaimID:    claimID,
		DonationID: uuid.New(),
		QuantityKg: decimal.RequireFromString("10.5"),
		Status:     enums.ClaimStatusActive,
		PickupCode: "042817",
	})

	event := models.OutboxEvent{
		EventType:     enums.EventDonationClaimed,
		AggregateType: enums.AggregateClaim,
		AggregateID:   claimID,
		Payload:       mustEnvelope(t, enums.EventDonationClaimed, payloadBytes),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "donation-topic" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
	payload, ok := resolved.Payload.(*payloads.ClaimLifecycleEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.ClaimID != claimID || payload.PickupCode != "042817" {
		t.Fatalf("payload mismatch %+v", payload)
	}
	if !payload.QuantityKg.Equal(decimal.RequireFromString("10.5")) {
		t.Fatalf("quantity mismatch %s", payload.QuantityKg)
	}
	if resolved.Envelope.EventID == "" || resolved.Envelope.OccurredAt.IsZero() {
		t.Fatalf("envelope incomplete %+v", resolved.Envelope)
	}
}

func TestEventRegistryResolveDonationEvent(t *testing.T) {
	reg := newTestEventRegistry(t)
	donationID := uuid.New()
	event := models.OutboxEvent{
		EventType:     enums.EventDonationExpired,
		AggregateType: enums.AggregateDonation,
		AggregateID:   donationID,
		Payload: mustEnvelope(t, enums.EventDonationExpired, mustMarshal(t, payloads.DonationLifecycleEvent{
			DonationID: donationID,
			Status:     enums.DonationStatusExpired,
		})),
	}
	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := resolved.Payload.(*payloads.DonationLifecycleEvent); !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
}

func TestEventRegistryResolveRejectsBadRows(t *testing.T) {
	reg := newTestEventRegistry(t)
	valid := mustMarshal(t, payloads.ClaimLifecycleEvent{ClaimID: uuid.New()})

	cases := map[string]models.OutboxEvent{
		"unknown event": {
			EventType:     "order_created",
			AggregateType: enums.AggregateClaim,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, "order_created", valid),
		},
		"aggregate mismatch": {
			EventType:     enums.EventDonationClaimed,
			AggregateType: enums.AggregateDonation,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, enums.EventDonationClaimed, valid),
		},
		"missing aggregate id": {
			EventType:     enums.EventDonationClaimed,
			AggregateType: enums.AggregateClaim,
			AggregateID:   uuid.Nil,
			Payload:       mustEnvelope(t, enums.EventDonationClaimed, valid),
		},
		"null payload": {
			EventType:     enums.EventDonationClaimed,
			AggregateType: enums.AggregateClaim,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, enums.EventDonationClaimed, []byte("null")),
		},
	}

	for name, event := range cases {
		_, err := reg.Resolve(event)
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		var nonRetry NonRetryableError
		if !errors.As(err, &nonRetry) {
			t.Fatalf("%s: expected non-retryable error, got %T", name, err)
		}
	}
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	if _, err := NewEventRegistry(config.PubSubConfig{}); err == nil {
		t.Fatal("expected missing topic to fail")
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{DonationTopic: "donation-topic"})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func mustEnvelope(t *testing.T, eventType enums.OutboxEventType, payload []byte) json.RawMessage {
	t.Helper()
	envelope := outbox.PayloadEnvelope{
		Version:    outbox.CurrentVersion,
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return data
}
