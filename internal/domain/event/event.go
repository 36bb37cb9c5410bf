package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is the domain event published for each committed transition. It is
// produced exactly once per commit and never for rejected attempts.
type Event struct {
	ID            string         `json:"id"`
	Type          Type           `json:"type"`
	TenantID      string         `json:"tenant_id"`
	InstanceID    string         `json:"instance_id"`
	FromState     string         `json:"from_state"`
	ToState       string         `json:"to_state"`
	Payload       map[string]any `json:"payload"`
	EmittedAt     time.Time      `json:"emitted_at"`
	CorrelationID string         `json:"correlation_id"`
}

// New creates a domain event with a fresh ID and correlation ID.
func New(eventType Type, tenantID, instanceID, fromState, toState string, payload map[string]any) *Event {
	id := uuid.NewString()
	return &Event{
		ID:            id,
		Type:          eventType,
		TenantID:      tenantID,
		InstanceID:    instanceID,
		FromState:     fromState,
		ToState:       toState,
		Payload:       payload,
		EmittedAt:     time.Now().UTC(),
		CorrelationID: id,
	}
}

// NewWithCorrelation creates an event linked to an existing correlation
// chain, used by sagas to tie follow-on transitions to their upstream event.
func NewWithCorrelation(eventType Type, tenantID, instanceID, fromState, toState string, payload map[string]any, correlationID string) *Event {
	e := New(eventType, tenantID, instanceID, fromState, toState, payload)
	e.CorrelationID = correlationID
	return e
}

// WithPayload returns a copy of the event with one added payload entry.
func (e *Event) WithPayload(key string, value any) *Event {
	newPayload := make(map[string]any, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	copied := *e
	copied.Payload = newPayload
	return &copied
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}

// GetPayloadFloat retrieves a float64 value from the payload
func (e *Event) GetPayloadFloat(key string) float64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case float64:
			return v
		case int64:
			return float64(v)
		case int:
			return float64(v)
		}
	}
	return 0.0
}

// GetPayloadBool retrieves a bool value from the payload
func (e *Event) GetPayloadBool(key string) bool {
	if val, ok := e.Payload[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return false
}
