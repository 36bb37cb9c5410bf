package entity

import "time"

// WorkflowInstance is one business object moving through a workflow. It is
// identified by (TenantID, InstanceID), mutated only through committed
// transitions, and never deleted; a terminal state is a data value.
type WorkflowInstance struct {
	TenantID          string         `json:"tenant_id"`
	InstanceID        string         `json:"instance_id"`
	DefinitionName    string         `json:"definition_name"`
	DefinitionVersion int            `json:"definition_version"`
	CurrentState      string         `json:"current_state"`

	// Version is the optimistic-concurrency token. Every committed
	// transition increments it; attempts carrying a stale value fail with
	// a conflict and no side effects.
	Version int64 `json:"version"`

	// Context is the free-form business payload gates evaluate against
	// (outstanding exception counts, margins, approvals).
	Context map[string]any `json:"context"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ContextCopy returns a shallow copy of the context map, so callers can
// build merged evaluation contexts without mutating stored state.
func (w *WorkflowInstance) ContextCopy() map[string]any {
	copied := make(map[string]any, len(w.Context))
	for k, v := range w.Context {
		copied[k] = v
	}
	return copied
}
