package enums

import "slices"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateDonation OutboxAggregateType = "donation"
	AggregateClaim    OutboxAggregateType = "claim"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateDonation,
	AggregateClaim,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains(validAggregateTypes, a)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse("aggregate type", value, validAggregateTypes)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventDonationCreated   OutboxEventType = "donation_created"
	EventDonationClaimed   OutboxEventType = "donation_claimed"
	EventClaimPickedUp     OutboxEventType = "claim_picked_up"
	EventDonationDelivered OutboxEventType = "donation_delivered"
	EventClaimCancelled    OutboxEventType = "claim_cancelled"
	EventDonationExpired   OutboxEventType = "donation_expired"
)

var validOutboxEventTypes = []OutboxEventType{
	EventDonationCreated,
	EventDonationClaimed,
	EventClaimPickedUp,
	EventDonationDelivered,
	EventClaimCancelled,
	EventDonationExpired,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	return slices.Contains(validOutboxEventTypes, e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse("event type", value, validOutboxEventTypes)
}
