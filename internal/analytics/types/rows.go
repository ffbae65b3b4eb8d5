package types

import (
	"encoding/json"
	"fmt"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// PartitionField is the column donation_events is day-partitioned on.
const PartitionField = "occurred_at"

// DonationEventRow is one row of the donation_events fact table, written per
// lifecycle event.
type DonationEventRow struct {
	EventID        string             `bigquery:"event_id"`
	EventType      string             `bigquery:"event_type"`
	OccurredAt     time.Time          `bigquery:"occurred_at"`
	DonationID     string             `bigquery:"donation_id"`
	DonorID        string             `bigquery:"donor_id"`
	ClaimID        *string            `bigquery:"claim_id"`
	CourierID      *string            `bigquery:"courier_id"`
	Status         string             `bigquery:"status"`
	PreviousStatus *string            `bigquery:"previous_status"`
	QuantityKg     float64            `bigquery:"quantity_kg"`
	Latitude       *float64           `bigquery:"latitude"`
	Longitude      *float64           `bigquery:"longitude"`
	ActorUserID    *string            `bigquery:"actor_user_id"`
	ActorRole      *string            `bigquery:"actor_role"`
	Payload        cbigquery.NullJSON `bigquery:"payload"`
}

// DonationEventSchema derives the table schema from DonationEventRow.
func DonationEventSchema() (cbigquery.Schema, error) {
	return cbigquery.InferSchema(DonationEventRow{})
}

// JSONColumn marshals v for a JSON column. Nil and empty raw input become
// NULL; raw JSON passes through untouched.
func JSONColumn(v any) (cbigquery.NullJSON, error) {
	var raw []byte
	switch val := v.(type) {
	case nil:
		return cbigquery.NullJSON{}, nil
	case json.RawMessage:
		raw = val
	case []byte:
		raw = val
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return cbigquery.NullJSON{}, fmt.Errorf("marshal json column: %w", err)
		}
		raw = b
	}
	if len(raw) == 0 {
		return cbigquery.NullJSON{}, nil
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(raw)}, nil
}
