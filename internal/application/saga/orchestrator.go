package saga

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anungis437/nzila-automation-sub005/internal/application/dispatcher"
	"github.com/anungis437/nzila-automation-sub005/internal/domain/event"
	"go.uber.org/zap"
)

// Orchestrator wires sagas to the event dispatcher and runs them with
// reverse-order compensation. A saga failure never propagates back to the
// transition that emitted the trigger; the transition already committed, so
// the failure is recorded and logged instead.
type Orchestrator struct {
	dispatcher dispatcher.Dispatcher
	logger     *zap.Logger
	now        func() time.Time

	mu         sync.Mutex
	sagas      map[string]*Saga
	executions []Execution
}

// NewOrchestrator creates a saga orchestrator bound to a dispatcher.
func NewOrchestrator(d dispatcher.Dispatcher, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		dispatcher: d,
		logger:     logger,
		now:        time.Now,
		sagas:      make(map[string]*Saga),
	}
}

// Register validates the saga and subscribes it to its trigger event type.
func (o *Orchestrator) Register(s *Saga) error {
	if err := s.validate(); err != nil {
		return fmt.Errorf("saga %s: %w", s.Name, err)
	}

	o.mu.Lock()
	if _, exists := o.sagas[s.Name]; exists {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateSaga, s.Name)
	}
	o.sagas[s.Name] = s
	o.mu.Unlock()

	o.dispatcher.SubscribeNamed(s.Trigger, "saga:"+s.Name, func(ctx context.Context, evt *event.Event) error {
		o.run(ctx, s, evt)
		return nil
	})

	o.logger.Info("Saga registered",
		zap.String("saga", s.Name),
		zap.String("trigger", s.Trigger.String()),
		zap.Int("steps", len(s.Steps)))
	return nil
}

// Executions returns a snapshot of recorded saga runs, oldest first.
func (o *Orchestrator) Executions() []Execution {
	o.mu.Lock()
	defer o.mu.Unlock()

	snapshot := make([]Execution, len(o.executions))
	copy(snapshot, o.executions)
	return snapshot
}

// run executes the saga's steps in order. When a step fails, the steps that
// already completed are compensated in reverse order before the execution is
// recorded.
func (o *Orchestrator) run(ctx context.Context, s *Saga, evt *event.Event) {
	exec := Execution{
		SagaName:      s.Name,
		EventID:       evt.ID,
		CorrelationID: evt.CorrelationID,
		StartedAt:     o.now().UTC(),
	}

	var completed []Step
	var failedStep string
	var runErr error

	for _, step := range s.Steps {
		if err := o.safeStep(ctx, step.Execute, evt); err != nil {
			failedStep = step.Name
			runErr = err
			break
		}
		completed = append(completed, step)
		exec.StepsRun = append(exec.StepsRun, step.Name)
	}

	if runErr == nil {
		exec.Status = StatusCompleted
		o.record(exec)

		o.logger.Info("Saga completed",
			zap.String("saga", s.Name),
			zap.String("event_id", evt.ID),
			zap.String("correlation_id", evt.CorrelationID))
		return
	}

	exec.FailedStep = failedStep
	exec.Error = runErr.Error()
	exec.Status = StatusCompensated

	o.logger.Error("Saga step failed, compensating",
		zap.String("saga", s.Name),
		zap.String("event_id", evt.ID),
		zap.String("step", failedStep),
		zap.Error(runErr))

	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.Compensate == nil {
			continue
		}
		if err := o.safeStep(ctx, step.Compensate, evt); err != nil {
			exec.Status = StatusCompensationFailed
			o.logger.Error("Saga compensation failed, manual intervention required",
				zap.String("saga", s.Name),
				zap.String("event_id", evt.ID),
				zap.String("step", step.Name),
				zap.Error(err))
			break
		}
	}

	o.record(exec)
}

func (o *Orchestrator) record(exec Execution) {
	exec.FinishedAt = o.now().UTC()

	o.mu.Lock()
	defer o.mu.Unlock()
	o.executions = append(o.executions, exec)
}

// safeStep runs a step function with panic containment.
func (o *Orchestrator) safeStep(ctx context.Context, fn func(ctx context.Context, evt *event.Event) error, evt *event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step panic: %v", r)
		}
	}()

	return fn(ctx, evt)
}
