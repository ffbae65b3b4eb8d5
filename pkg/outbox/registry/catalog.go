// Package registry maps outbox event types to their aggregate, topic and
// payload schema. The publisher resolves rows through EventRegistry;
// consumers decode envelopes through DecoderRegistry. Both are built from
// the same catalog so the two sides cannot drift apart.
package registry

import (
	"encoding/json"

	"github.com/zerohunger/zerohunger-backend/pkg/enums"
	"github.com/zerohunger/zerohunger-backend/pkg/outbox/payloads"
)

type schema struct {
	aggregate enums.OutboxAggregateType
	newValue  func() any
	decode    decoderFunc
}

// catalog lists every event the outbox may carry.
var catalog = map[enums.OutboxEventType]schema{
	enums.EventDonationCreated:   donationSchema,
	enums.EventDonationExpired:   donationSchema,
	enums.EventDonationClaimed:   claimSchema,
	enums.EventClaimPickedUp:     claimSchema,
	enums.EventDonationDelivered: claimSchema,
	enums.EventClaimCancelled:    claimSchema,
}

var (
	donationSchema = schemaFor[payloads.DonationLifecycleEvent](enums.AggregateDonation)
	claimSchema    = schemaFor[payloads.ClaimLifecycleEvent](enums.AggregateClaim)
)

func schemaFor[T any](aggregate enums.OutboxAggregateType) schema {
	return schema{
		aggregate: aggregate,
		newValue:  func() any { return new(T) },
		decode: func(raw json.RawMessage) (any, error) {
			var v T
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, err
			}
			return v, nil
		},
	}
}
