package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/zerohunger/zerohunger-backend/pkg/enums"
	"github.com/zerohunger/zerohunger-backend/pkg/outbox"
)

type decoderFunc func(payload json.RawMessage) (any, error)

type versionedType struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry holds payload decoders keyed by event type and schema
// version, so consumers can keep reading old envelopes after a bump.
type DecoderRegistry struct {
	mu       sync.RWMutex
	decoders map[versionedType]decoderFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: make(map[versionedType]decoderFunc)}
}

func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decoder decoderFunc) {
	r.mu.Lock()
	r.decoders[versionedType{eventType, version}] = decoder
	r.mu.Unlock()
}

func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error) {
	r.mu.RLock()
	decode, ok := r.decoders[versionedType{eventType, version}]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("decoder not registered for %s@v%d", eventType, version)
	}
	return decode(payload)
}

// NewLifecycleDecoders registers the current-version decoder of every
// catalog event. Decoded payloads are values, not pointers.
func NewLifecycleDecoders() *DecoderRegistry {
	reg := NewDecoderRegistry()
	for eventType, s := range catalog {
		reg.Register(eventType, outbox.CurrentVersion, s.decode)
	}
	return reg
}
