package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const envelopeVersion = 1

// ActorRef identifies who produced the event. Guests carry only a session.
type ActorRef struct {
	UserID    *string `json:"userId,omitempty"`
	SessionID *string `json:"sessionId,omitempty"`
	Role      string  `json:"role,omitempty"`
}

// PayloadEnvelope is the JSON stored in outbox_events.payload and relayed to
// subscribers unchanged. CorrelationID is the request id of the HTTP call
// that produced the event, when there was one.
type PayloadEnvelope struct {
	Version       int             `json:"version"`
	EventID       string          `json:"eventId"`
	OccurredAt    time.Time       `json:"occurredAt"`
	CorrelationID string          `json:"correlationId,omitempty"`
	Actor         *ActorRef       `json:"actor,omitempty"`
	Data          json.RawMessage `json:"data"`
}

type correlationKey struct{}

// WithCorrelationID tags ctx so events emitted under it carry id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the id set by WithCorrelationID, if any.
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

func newEnvelope(ctx context.Context, event DomainEvent) (PayloadEnvelope, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return PayloadEnvelope{}, fmt.Errorf("encode %s data: %w", event.EventType, err)
	}
	env := PayloadEnvelope{
		Version:       event.Version,
		EventID:       uuid.NewString(),
		OccurredAt:    event.OccurredAt.UTC(),
		CorrelationID: CorrelationID(ctx),
		Actor:         event.Actor,
		Data:          data,
	}
	if env.Version == 0 {
		env.Version = envelopeVersion
	}
	if event.OccurredAt.IsZero() {
		env.OccurredAt = time.Now().UTC()
	}
	return env, nil
}

// DecodeEnvelope parses a stored payload. Rows without an event id or with an
// unknown version can never be relayed.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.EventID == "" {
		return PayloadEnvelope{}, errors.New("envelope missing event id")
	}
	if env.Version < 1 || env.Version > envelopeVersion {
		return PayloadEnvelope{}, fmt.Errorf("unsupported envelope version %d", env.Version)
	}
	return env, nil
}
