package workflow

import "fmt"

// State is a named workflow state. States are supplied as data by the host
// application, so no fixed enumeration exists at this level.
type State string

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// Transition describes one directed edge of a workflow graph.
type Transition struct {
	From             State
	To               State
	Action           string
	RequiredGates    []string
	EvidenceRequired bool
	Label            string

	// EventType overrides the event type emitted when this transition
	// commits. Empty means "<definition name>.<to state>".
	EventType string
}

// Definition is an immutable workflow description identified by name and
// version. It must be compiled before the engine can drive instances with it.
type Definition struct {
	Name        string
	Version     int
	States      []State
	Initial     State
	Terminal    []State
	Transitions []Transition

	// GlobalGates run on every transition of this definition, after the
	// transition's own required gates.
	GlobalGates []string
}

// Key returns the registry key for a definition identified by name and version.
func Key(name string, version int) string {
	return fmt.Sprintf("%s:%d", name, version)
}

// CompiledDefinition is a validated definition with a transition table keyed
// by (state, action) for unambiguous dispatch.
type CompiledDefinition struct {
	def      *Definition
	states   map[State]bool
	terminal map[State]bool
	table    map[transitionKey]*Transition
}

type transitionKey struct {
	from   State
	action string
}

// Compile validates the definition and builds its transition table.
// Rejected at compile time: duplicate states, dangling from/to states,
// duplicate (from, action) pairs, and outgoing edges from terminal states.
// Cycles are legal; only terminal out-degree is constrained.
func (d *Definition) Compile() (*CompiledDefinition, error) {
	if len(d.States) == 0 {
		return nil, fmt.Errorf("definition %s: %w", d.Name, ErrNoStates)
	}

	states := make(map[State]bool, len(d.States))
	for _, s := range d.States {
		if states[s] {
			return nil, fmt.Errorf("definition %s: %w: %s", d.Name, ErrDuplicateState, s)
		}
		states[s] = true
	}

	if !states[d.Initial] {
		return nil, fmt.Errorf("definition %s: initial %w: %s", d.Name, ErrUnknownState, d.Initial)
	}

	terminal := make(map[State]bool, len(d.Terminal))
	for _, s := range d.Terminal {
		if !states[s] {
			return nil, fmt.Errorf("definition %s: terminal %w: %s", d.Name, ErrUnknownState, s)
		}
		terminal[s] = true
	}

	table := make(map[transitionKey]*Transition, len(d.Transitions))
	for i := range d.Transitions {
		t := &d.Transitions[i]
		if t.Action == "" {
			return nil, fmt.Errorf("definition %s: %w (from %s)", d.Name, ErrEmptyAction, t.From)
		}
		if !states[t.From] {
			return nil, fmt.Errorf("definition %s: transition from %w: %s", d.Name, ErrUnknownState, t.From)
		}
		if !states[t.To] {
			return nil, fmt.Errorf("definition %s: transition to %w: %s", d.Name, ErrUnknownState, t.To)
		}
		if terminal[t.From] {
			return nil, fmt.Errorf("definition %s: %w: %s", d.Name, ErrTerminalOutgoing, t.From)
		}

		key := transitionKey{from: t.From, action: t.Action}
		if _, exists := table[key]; exists {
			return nil, fmt.Errorf("definition %s: %w: (%s, %s)", d.Name, ErrDuplicateTransition, t.From, t.Action)
		}
		table[key] = t
	}

	return &CompiledDefinition{
		def:      d,
		states:   states,
		terminal: terminal,
		table:    table,
	}, nil
}

// Name returns the definition name.
func (c *CompiledDefinition) Name() string {
	return c.def.Name
}

// Version returns the definition version.
func (c *CompiledDefinition) Version() int {
	return c.def.Version
}

// Initial returns the initial state.
func (c *CompiledDefinition) Initial() State {
	return c.def.Initial
}

// GlobalGates returns the gate IDs that run on every transition.
func (c *CompiledDefinition) GlobalGates() []string {
	return c.def.GlobalGates
}

// IsTerminal returns true if the state accepts no further actions.
func (c *CompiledDefinition) IsTerminal(s State) bool {
	return c.terminal[s]
}

// HasState returns true if the state belongs to the definition.
func (c *CompiledDefinition) HasState(s State) bool {
	return c.states[s]
}

// Lookup resolves the transition for (state, action). The compile-time
// uniqueness check guarantees at most one match.
func (c *CompiledDefinition) Lookup(from State, action string) (*Transition, bool) {
	t, ok := c.table[transitionKey{from: from, action: action}]
	return t, ok
}

// PermittedActions returns the action names available from a state.
func (c *CompiledDefinition) PermittedActions(from State) []string {
	actions := make([]string, 0)
	for key := range c.table {
		if key.from == from {
			actions = append(actions, key.action)
		}
	}
	return actions
}

// EventTypeFor returns the event type emitted when the transition commits.
func (c *CompiledDefinition) EventTypeFor(t *Transition) string {
	if t.EventType != "" {
		return t.EventType
	}
	return fmt.Sprintf("%s.%s", c.def.Name, t.To)
}
