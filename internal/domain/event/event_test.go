package event

import "testing"

func TestNew(t *testing.T) {
	evt := New("quote.submitted", "acme", "quote-1", "draft", "submitted", map[string]any{
		"action": "submit",
		"margin": 17.5,
	})

	if evt.ID == "" {
		t.Error("New() should generate an ID")
	}
	if evt.CorrelationID != evt.ID {
		t.Error("New() should seed the correlation chain with the event ID")
	}
	if evt.TenantID != "acme" || evt.InstanceID != "quote-1" {
		t.Errorf("New() identity = (%s, %s), want (acme, quote-1)", evt.TenantID, evt.InstanceID)
	}
	if evt.FromState != "draft" || evt.ToState != "submitted" {
		t.Errorf("New() states = (%s, %s), want (draft, submitted)", evt.FromState, evt.ToState)
	}
	if evt.EmittedAt.IsZero() {
		t.Error("New() should set EmittedAt")
	}
}

func TestNewWithCorrelation(t *testing.T) {
	evt := NewWithCorrelation("order.created", "acme", "order-1", "", "new", nil, "corr-123")

	if evt.CorrelationID != "corr-123" {
		t.Errorf("CorrelationID = %v, want corr-123", evt.CorrelationID)
	}
	if evt.ID == "corr-123" {
		t.Error("event ID must stay distinct from the correlation ID")
	}
}

func TestWithPayload_Immutable(t *testing.T) {
	original := New("quote.submitted", "acme", "quote-1", "draft", "submitted", map[string]any{
		"margin": 17.5,
	})

	updated := original.WithPayload("actor", "user-7")

	if _, ok := original.Payload["actor"]; ok {
		t.Error("WithPayload() must not mutate the original event")
	}
	if updated.GetPayloadString("actor") != "user-7" {
		t.Errorf("updated payload actor = %v, want user-7", updated.GetPayloadString("actor"))
	}
	if updated.GetPayloadFloat("margin") != 17.5 {
		t.Error("WithPayload() must carry existing payload entries")
	}
}

func TestPayloadGetters(t *testing.T) {
	evt := New("quote.submitted", "acme", "quote-1", "draft", "submitted", map[string]any{
		"actor":   "user-7",
		"margin":  12.0,
		"retries": 3,
		"urgent":  true,
	})

	if got := evt.GetPayloadString("actor"); got != "user-7" {
		t.Errorf("GetPayloadString(actor) = %v, want user-7", got)
	}
	if got := evt.GetPayloadFloat("margin"); got != 12.0 {
		t.Errorf("GetPayloadFloat(margin) = %v, want 12.0", got)
	}
	if got := evt.GetPayloadInt("retries"); got != 3 {
		t.Errorf("GetPayloadInt(retries) = %v, want 3", got)
	}
	if !evt.GetPayloadBool("urgent") {
		t.Error("GetPayloadBool(urgent) = false, want true")
	}

	// Missing keys return zero values.
	if evt.GetPayloadString("missing") != "" || evt.GetPayloadInt("missing") != 0 ||
		evt.GetPayloadFloat("missing") != 0 || evt.GetPayloadBool("missing") {
		t.Error("missing payload keys must return zero values")
	}
}
