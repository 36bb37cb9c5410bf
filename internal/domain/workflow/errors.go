package workflow

import "errors"

var (
	// ErrNoStates is returned when a definition declares no states
	ErrNoStates = errors.New("definition has no states")

	// ErrUnknownState is returned when a transition or the initial state references a state outside the definition
	ErrUnknownState = errors.New("unknown state")

	// ErrDuplicateState is returned when the same state is declared twice
	ErrDuplicateState = errors.New("duplicate state")

	// ErrDuplicateTransition is returned when two transitions share the same (from, action) pair
	ErrDuplicateTransition = errors.New("duplicate transition")

	// ErrTerminalOutgoing is returned when a terminal state has an outgoing transition
	ErrTerminalOutgoing = errors.New("terminal state has outgoing transition")

	// ErrEmptyAction is returned when a transition declares no action name
	ErrEmptyAction = errors.New("transition has empty action name")
)
