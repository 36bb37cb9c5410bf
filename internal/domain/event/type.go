package event

// Type identifies the type of domain event. Transition event types are
// derived from workflow definitions (e.g. "quote.submitted",
// "period.closed"), so no closed enumeration exists; the constants below are
// the engine's own lifecycle types.
type Type string

const (
	// TypeInstanceCreated is emitted when a business object enters a workflow
	TypeInstanceCreated Type = "workflow.instance_created"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}
