package gate

import (
	"fmt"
	"sync"

	"github.com/anungis437/nzila-automation-sub005/internal/domain/entity"
	"github.com/anungis437/nzila-automation-sub005/internal/domain/workflow"
)

// Verdict is the outcome of a single gate or of a whole evaluation.
type Verdict string

const (
	VerdictPass  Verdict = "PASS"
	VerdictBlock Verdict = "BLOCK"
	VerdictWarn  Verdict = "WARN"
)

// Result is what one gate returns for a proposed transition.
type Result struct {
	Gate    string  `json:"gate"`
	Verdict Verdict `json:"verdict"`
	Reason  string  `json:"reason,omitempty"`
}

// Pass builds a passing result.
func Pass() Result {
	return Result{Verdict: VerdictPass}
}

// Block builds a blocking result with a user-facing reason.
func Block(reason string) Result {
	return Result{Verdict: VerdictBlock, Reason: reason}
}

// Warn builds a non-blocking result whose reason is attached to the
// committed audit entry for visibility.
func Warn(reason string) Result {
	return Result{Verdict: VerdictWarn, Reason: reason}
}

// EvalContext is the read-only snapshot a gate evaluates against. Context is
// the stored instance context merged with the attempt's patch; gates must not
// mutate it.
type EvalContext struct {
	TenantID   string
	Instance   *entity.WorkflowInstance
	Transition *workflow.Transition
	Context    map[string]any
}

// Float retrieves a numeric context value.
func (ec *EvalContext) Float(key string) (float64, bool) {
	switch v := ec.Context[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Int retrieves an integer context value.
func (ec *EvalContext) Int(key string) (int64, bool) {
	switch v := ec.Context[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// Bool retrieves a boolean context value.
func (ec *EvalContext) Bool(key string) (bool, bool) {
	if v, ok := ec.Context[key].(bool); ok {
		return v, true
	}
	return false, false
}

// String retrieves a string context value.
func (ec *EvalContext) String(key string) (string, bool) {
	if v, ok := ec.Context[key].(string); ok {
		return v, true
	}
	return "", false
}

// Gate is a named, pure policy predicate over a proposed transition. Gates
// must be side-effect-free and deterministic for the same context; they are
// re-evaluated on every attempt, never cached.
type Gate interface {
	// Name returns the stable gate identifier used in definitions
	Name() string

	// Evaluate judges the proposed transition
	Evaluate(ec *EvalContext) Result
}

// Registry holds the gates a definition may reference by ID.
type Registry struct {
	mu    sync.RWMutex
	gates map[string]Gate
}

// NewRegistry creates an empty gate registry.
func NewRegistry() *Registry {
	return &Registry{gates: make(map[string]Gate)}
}

// Register adds a gate. Re-registering a name is a wiring bug.
func (r *Registry) Register(g Gate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.gates[g.Name()]; exists {
		return fmt.Errorf("gate already registered: %s", g.Name())
	}
	r.gates[g.Name()] = g
	return nil
}

// Get looks up a gate by name.
func (r *Registry) Get(name string) (Gate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.gates[name]
	return g, ok
}
