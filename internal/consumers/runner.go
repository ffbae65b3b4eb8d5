package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/zerohunger/zerohunger-backend/pkg/enums"
	"github.com/zerohunger/zerohunger-backend/pkg/logger"
	"github.com/zerohunger/zerohunger-backend/pkg/outbox"
	"github.com/zerohunger/zerohunger-backend/pkg/outbox/registry"
)

// Event is a decoded donation lifecycle message.
type Event struct {
	ID         uuid.UUID
	Type       enums.OutboxEventType
	Version    int
	OccurredAt time.Time
	Actor      *outbox.ActorRef
	// Payload is a payloads.ClaimLifecycleEvent or payloads.DonationLifecycleEvent.
	Payload interface{}
	Raw     json.RawMessage
}

// Handler reacts to a lifecycle event. Returning an error redelivers the
// message.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts functions to the Handler interface.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls the underlying function.
func (fn HandlerFunc) Handle(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// ErrPermanent marks handler failures that retrying cannot fix. The message
// is acked and dropped.
var ErrPermanent = errors.New("permanent consumer failure")

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

type idempotencyChecker interface {
	Reserve(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Forget(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Runner pulls one subscription and hands each new event to its handler
// at most once per consumer name, as tracked in Redis.
type Runner struct {
	name     string
	sub      receiver
	decoders *registry.DecoderRegistry
	handler  Handler
	manager  idempotencyChecker
	logg     *logger.Logger
}

// NewRunner builds a runner for the named consumer.
func NewRunner(name string, sub receiver, handler Handler, manager idempotencyChecker, logg *logger.Logger) (*Runner, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("consumer name is required")
	}
	if sub == nil {
		return nil, errors.New("subscription is required")
	}
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Runner{
		name:     name,
		sub:      sub,
		decoders: registry.NewLifecycleDecoders(),
		handler:  handler,
		manager:  manager,
		logg:     logg,
	}, nil
}

// Name returns the consumer name used for idempotency keys.
func (r *Runner) Name() string {
	return r.name
}

type processResult struct {
	nack bool
}

// Run consumes messages until ctx is canceled.
func (r *Runner) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return r.sub.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if r.process(innerCtx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (r *Runner) process(ctx context.Context, msg *gcppubsub.Message) processResult {
	fields := map[string]any{
		"consumer":   r.name,
		"message_id": msg.ID,
	}
	logCtx := r.logg.WithFields(ctx, fields)

	event, err := r.decode(msg)
	if err != nil {
		fields["error"] = err.Error()
		r.logg.Warn(r.logg.WithFields(ctx, fields), "dropping undecodable event")
		return processResult{}
	}
	fields["event_id"] = event.ID.String()
	fields["event_type"] = event.Type
	logCtx = r.logg.WithFields(ctx, fields)

	fresh, err := r.manager.Reserve(logCtx, r.name, event.ID)
	if err != nil {
		r.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if !fresh {
		r.logg.Info(logCtx, "event already processed")
		return processResult{}
	}

	if err := r.handler.Handle(logCtx, event); err != nil {
		if errors.Is(err, ErrPermanent) {
			r.logg.Error(logCtx, "dropping event after permanent failure", err)
			return processResult{}
		}
		r.logg.Error(logCtx, "handler error", err)
		_ = r.manager.Forget(logCtx, r.name, event.ID)
		return processResult{nack: true}
	}

	r.logg.Debug(logCtx, "event handled")
	return processResult{}
}

func (r *Runner) decode(msg *gcppubsub.Message) (Event, error) {
	envelope, eventID, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		return Event{}, err
	}
	if attr := strings.TrimSpace(msg.Attributes["event_type"]); attr != "" && attr != string(envelope.EventType) {
		return Event{}, fmt.Errorf("event_type attribute %q does not match envelope %q", attr, envelope.EventType)
	}
	version := envelope.Version
	if version <= 0 {
		version = outbox.CurrentVersion
	}
	payload, err := r.decoders.Decode(envelope.EventType, version, envelope.Data)
	if err != nil {
		return Event{}, fmt.Errorf("decode payload: %w", err)
	}
	return Event{
		ID:         eventID,
		Type:       envelope.EventType,
		Version:    version,
		OccurredAt: envelope.OccurredAt.UTC(),
		Actor:      envelope.Actor,
		Payload:    payload,
		Raw:        envelope.Data,
	}, nil
}
