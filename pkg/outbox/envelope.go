package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// EnvelopeVersion is written on every new event. Consumers reject anything newer.
const EnvelopeVersion = 1

// ActorRef identifies who produced the event.
type ActorRef struct {
	SessionKey string `json:"sessionKey"`
	UserID     string `json:"userId,omitempty"`
}

// PayloadEnvelope is what lands in outbox_events.payload and on the wire.
// It repeats the routing columns so subscribers do not depend on the channel name.
type PayloadEnvelope struct {
	Version       int                       `json:"version"`
	EventID       string                    `json:"eventId"`
	EventType     enums.OutboxEventType     `json:"eventType"`
	AggregateType enums.OutboxAggregateType `json:"aggregateType"`
	AggregateID   string                    `json:"aggregateId"`
	OccurredAt    time.Time                 `json:"occurredAt"`
	Actor         *ActorRef                 `json:"actor,omitempty"`
	Data          json.RawMessage           `json:"data"`
}

// DecodeEnvelope unpacks a stored payload and rejects envelopes the relay
// cannot interpret.
func DecodeEnvelope(raw json.RawMessage) (PayloadEnvelope, error) {
	var envelope PayloadEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	switch {
	case envelope.Version < 1 || envelope.Version > EnvelopeVersion:
		return PayloadEnvelope{}, fmt.Errorf("unsupported envelope version %d", envelope.Version)
	case envelope.EventID == "":
		return PayloadEnvelope{}, errors.New("envelope missing event id")
	}
	return envelope, nil
}
