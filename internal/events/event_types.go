package events

import (
	"time"

	"github.com/Behnamfe76/ticket-portal/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSessionChanged   EventType = "session.changed"
	EventExchangeSettled  EventType = "exchange.settled"
	EventReadinessChanged EventType = "readiness.changed"
)

// Event represents a state transition emitted by the session core.
type Event struct {
	Type      EventType   `json:"type"`
	Scope     string      `json:"scope,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// SessionChangedPayload payload.
type SessionChangedPayload struct {
	OldState domain.AuthState `json:"old_state"`
	NewState domain.AuthState `json:"new_state"`
	UserID   string           `json:"user_id,omitempty"`
	Reason   string           `json:"reason"`
}

// ExchangeSettledPayload payload. The code itself is never carried.
type ExchangeSettledPayload struct {
	Succeeded bool          `json:"succeeded"`
	Attempts  int           `json:"attempts"`
	Elapsed   time.Duration `json:"elapsed"`
	Error     string        `json:"error,omitempty"`
}

// ReadinessChangedPayload payload.
type ReadinessChangedPayload struct {
	Endpoint string `json:"endpoint"`
	Ready    bool   `json:"ready"`
}
