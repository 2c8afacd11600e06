// Package events is the domain event bus. Publishing is fire-and-forget: the
// settlement engine never awaits subscriber completion, and publish failures
// are logged, not surfaced.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/fairwaylabs/fairway-pos-backend/pkg/enums"
)

// Envelope wraps every published event with identity and timing metadata.
type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  enums.EventType `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       any             `json:"data"`
}

// NewEnvelope stamps a payload with a fresh event id and the current time.
func NewEnvelope(eventType enums.EventType, data any) Envelope {
	return Envelope{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}
