package saga

import (
	"context"
	"errors"
	"time"

	"github.com/anungis437/nzila-automation-sub005/internal/domain/event"
)

var (
	// ErrEmptyName is returned when a saga has no name
	ErrEmptyName = errors.New("saga requires a name")

	// ErrEmptyTrigger is returned when a saga has no triggering event type
	ErrEmptyTrigger = errors.New("saga requires a trigger event type")

	// ErrNoSteps is returned when a saga declares no steps
	ErrNoSteps = errors.New("saga requires at least one step")

	// ErrDuplicateSaga is returned when registering a saga name twice
	ErrDuplicateSaga = errors.New("saga already registered")
)

// Step is one unit of saga work. Execute performs the step; Compensate
// undoes it when a later step fails. Compensate may be nil for steps with
// nothing to undo.
type Step struct {
	Name       string
	Execute    func(ctx context.Context, evt *event.Event) error
	Compensate func(ctx context.Context, evt *event.Event) error
}

// Saga is an ordered multi-step reaction to a domain event. Steps run in
// declaration order; on failure, the completed steps are compensated in
// reverse order.
type Saga struct {
	Name    string
	Trigger event.Type
	Steps   []Step
}

func (s *Saga) validate() error {
	if s.Name == "" {
		return ErrEmptyName
	}
	if s.Trigger == "" {
		return ErrEmptyTrigger
	}
	if len(s.Steps) == 0 {
		return ErrNoSteps
	}
	return nil
}

// Status classifies how a saga execution ended.
type Status string

const (
	StatusCompleted          Status = "COMPLETED"
	StatusCompensated        Status = "COMPENSATED"
	StatusCompensationFailed Status = "COMPENSATION_FAILED"
)

// Execution records one run of a saga against one triggering event.
type Execution struct {
	SagaName      string    `json:"saga_name"`
	EventID       string    `json:"event_id"`
	CorrelationID string    `json:"correlation_id"`
	Status        Status    `json:"status"`
	StepsRun      []string  `json:"steps_run"`
	FailedStep    string    `json:"failed_step,omitempty"`
	Error         string    `json:"error,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}
