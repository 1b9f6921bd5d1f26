package main

import (
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

// relayMessage is what subscribers receive on the channel.
type relayMessage struct {
	OutboxID      string                    `json:"outboxId"`
	EventType     enums.OutboxEventType     `json:"eventType"`
	AggregateType enums.OutboxAggregateType `json:"aggregateType"`
	AggregateID   string                    `json:"aggregateId"`
	Envelope      outbox.PayloadEnvelope    `json:"envelope"`
}

// buildMessage fails only for rows that can never be relayed.
func buildMessage(row models.OutboxEvent) (relayMessage, error) {
	if !row.EventType.IsValid() {
		return relayMessage{}, fmt.Errorf("unknown event type %q", row.EventType)
	}
	if want := row.EventType.Aggregate(); row.AggregateType != want {
		return relayMessage{}, fmt.Errorf("event %s belongs to %s, row says %s", row.EventType, want, row.AggregateType)
	}
	envelope, err := outbox.DecodeEnvelope(row.Payload)
	if err != nil {
		return relayMessage{}, err
	}
	return relayMessage{
		OutboxID:      row.ID.String(),
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID.String(),
		Envelope:      envelope,
	}, nil
}

// logFields describes a row for log lines. envelope may be nil when the
// payload did not decode.
func logFields(row models.OutboxEvent, envelope *outbox.PayloadEnvelope) map[string]any {
	fields := map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_type": row.AggregateType,
		"aggregate_id":   row.AggregateID.String(),
		"attempt_count":  row.AttemptCount,
	}
	if row.LastError != nil {
		fields["last_error"] = *row.LastError
	}
	if envelope == nil {
		return fields
	}
	fields["event_id"] = envelope.EventID
	fields["occurred_at"] = envelope.OccurredAt.Format(time.RFC3339Nano)
	if envelope.CorrelationID != "" {
		fields["correlation_id"] = envelope.CorrelationID
	}
	return fields
}
