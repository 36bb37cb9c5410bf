package workflow

import (
	"errors"
	"testing"
)

func quoteDefinition() *Definition {
	return &Definition{
		Name:    "quote",
		Version: 1,
		States:  []State{"draft", "submitted", "accepted", "rejected"},
		Initial: "draft",
		Terminal: []State{
			"accepted",
			"rejected",
		},
		Transitions: []Transition{
			{From: "draft", To: "submitted", Action: "submit", Label: "Submit quote"},
			{From: "submitted", To: "accepted", Action: "accept", Label: "Accept quote"},
			{From: "submitted", To: "rejected", Action: "reject", Label: "Reject quote"},
			{From: "submitted", To: "draft", Action: "recall", Label: "Recall to draft"},
		},
	}
}

func TestDefinition_Compile(t *testing.T) {
	compiled, err := quoteDefinition().Compile()
	if err != nil {
		t.Fatalf("Compile() failed: %v", err)
	}

	if compiled.Name() != "quote" || compiled.Version() != 1 {
		t.Errorf("Compile() identity = %s:%d, want quote:1", compiled.Name(), compiled.Version())
	}

	if compiled.Initial() != "draft" {
		t.Errorf("Initial() = %v, want draft", compiled.Initial())
	}
}

func TestDefinition_Compile_NoStates(t *testing.T) {
	def := &Definition{Name: "empty"}

	_, err := def.Compile()
	if !errors.Is(err, ErrNoStates) {
		t.Errorf("Compile() error = %v, want %v", err, ErrNoStates)
	}
}

func TestDefinition_Compile_UnknownInitial(t *testing.T) {
	def := quoteDefinition()
	def.Initial = "nonexistent"

	_, err := def.Compile()
	if !errors.Is(err, ErrUnknownState) {
		t.Errorf("Compile() error = %v, want %v", err, ErrUnknownState)
	}
}

func TestDefinition_Compile_DanglingTransition(t *testing.T) {
	def := quoteDefinition()
	def.Transitions = append(def.Transitions, Transition{
		From: "draft", To: "archived", Action: "archive",
	})

	_, err := def.Compile()
	if !errors.Is(err, ErrUnknownState) {
		t.Errorf("Compile() error = %v, want %v", err, ErrUnknownState)
	}
}

func TestDefinition_Compile_DuplicateTransition(t *testing.T) {
	def := quoteDefinition()
	def.Transitions = append(def.Transitions, Transition{
		From: "draft", To: "rejected", Action: "submit",
	})

	_, err := def.Compile()
	if !errors.Is(err, ErrDuplicateTransition) {
		t.Errorf("Compile() error = %v, want %v", err, ErrDuplicateTransition)
	}
}

func TestDefinition_Compile_TerminalOutgoing(t *testing.T) {
	def := quoteDefinition()
	def.Transitions = append(def.Transitions, Transition{
		From: "accepted", To: "draft", Action: "reopen",
	})

	_, err := def.Compile()
	if !errors.Is(err, ErrTerminalOutgoing) {
		t.Errorf("Compile() error = %v, want %v", err, ErrTerminalOutgoing)
	}
}

func TestDefinition_Compile_DuplicateState(t *testing.T) {
	def := quoteDefinition()
	def.States = append(def.States, "draft")

	_, err := def.Compile()
	if !errors.Is(err, ErrDuplicateState) {
		t.Errorf("Compile() error = %v, want %v", err, ErrDuplicateState)
	}
}

func TestDefinition_Compile_EmptyAction(t *testing.T) {
	def := quoteDefinition()
	def.Transitions = append(def.Transitions, Transition{
		From: "draft", To: "submitted",
	})

	_, err := def.Compile()
	if !errors.Is(err, ErrEmptyAction) {
		t.Errorf("Compile() error = %v, want %v", err, ErrEmptyAction)
	}
}

func TestDefinition_Compile_CyclesAllowed(t *testing.T) {
	// recall (submitted -> draft) plus submit (draft -> submitted) form a cycle
	compiled, err := quoteDefinition().Compile()
	if err != nil {
		t.Fatalf("Compile() rejected cyclic graph: %v", err)
	}

	tr, ok := compiled.Lookup("submitted", "recall")
	if !ok {
		t.Fatal("Lookup(submitted, recall) not found")
	}
	if tr.To != "draft" {
		t.Errorf("recall target = %v, want draft", tr.To)
	}
}

func TestCompiledDefinition_Lookup(t *testing.T) {
	compiled, err := quoteDefinition().Compile()
	if err != nil {
		t.Fatalf("Compile() failed: %v", err)
	}

	tests := []struct {
		from   State
		action string
		found  bool
		to     State
	}{
		{"draft", "submit", true, "submitted"},
		{"submitted", "accept", true, "accepted"},
		{"draft", "accept", false, ""},
		{"accepted", "submit", false, ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_"+tt.action, func(t *testing.T) {
			tr, ok := compiled.Lookup(tt.from, tt.action)
			if ok != tt.found {
				t.Fatalf("Lookup(%s, %s) found = %v, want %v", tt.from, tt.action, ok, tt.found)
			}
			if ok && tr.To != tt.to {
				t.Errorf("Lookup(%s, %s) target = %v, want %v", tt.from, tt.action, tr.To, tt.to)
			}
		})
	}
}

func TestCompiledDefinition_IsTerminal(t *testing.T) {
	compiled, err := quoteDefinition().Compile()
	if err != nil {
		t.Fatalf("Compile() failed: %v", err)
	}

	if !compiled.IsTerminal("accepted") || !compiled.IsTerminal("rejected") {
		t.Error("accepted and rejected should be terminal")
	}
	if compiled.IsTerminal("draft") {
		t.Error("draft should not be terminal")
	}
}

func TestCompiledDefinition_PermittedActions(t *testing.T) {
	compiled, err := quoteDefinition().Compile()
	if err != nil {
		t.Fatalf("Compile() failed: %v", err)
	}

	actions := compiled.PermittedActions("submitted")
	if len(actions) != 3 {
		t.Errorf("PermittedActions(submitted) returned %d actions, want 3", len(actions))
	}

	if got := compiled.PermittedActions("accepted"); len(got) != 0 {
		t.Errorf("PermittedActions(accepted) returned %d actions, want 0", len(got))
	}
}

func TestCompiledDefinition_EventTypeFor(t *testing.T) {
	def := quoteDefinition()
	def.Transitions[1].EventType = "quote.won"

	compiled, err := def.Compile()
	if err != nil {
		t.Fatalf("Compile() failed: %v", err)
	}

	accept, _ := compiled.Lookup("submitted", "accept")
	if got := compiled.EventTypeFor(accept); got != "quote.won" {
		t.Errorf("EventTypeFor(accept) = %v, want quote.won", got)
	}

	submit, _ := compiled.Lookup("draft", "submit")
	if got := compiled.EventTypeFor(submit); got != "quote.submitted" {
		t.Errorf("EventTypeFor(submit) = %v, want quote.submitted", got)
	}
}
