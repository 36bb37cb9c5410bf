package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/anungis437/nzila-automation-sub005/internal/application/dispatcher"
	"github.com/anungis437/nzila-automation-sub005/internal/domain/event"
	"go.uber.org/zap"
)

func triggerEvent() *event.Event {
	return event.New("quote.accepted", "acme", "quote-1", "submitted", "accepted", map[string]any{
		"actor_id": "bob",
	})
}

func step(name string, log *[]string, fail bool) Step {
	return Step{
		Name: name,
		Execute: func(ctx context.Context, evt *event.Event) error {
			if fail {
				return errors.New(name + " failed")
			}
			*log = append(*log, "exec:"+name)
			return nil
		},
		Compensate: func(ctx context.Context, evt *event.Event) error {
			*log = append(*log, "undo:"+name)
			return nil
		},
	}
}

func TestRegister(t *testing.T) {
	d := dispatcher.NewDispatcher(zap.NewNop())
	o := NewOrchestrator(d, zap.NewNop())

	t.Run("rejects invalid sagas", func(t *testing.T) {
		cases := []struct {
			name string
			saga *Saga
			want error
		}{
			{"missing name", &Saga{Trigger: "quote.accepted", Steps: []Step{{Name: "s"}}}, ErrEmptyName},
			{"missing trigger", &Saga{Name: "fulfillment", Steps: []Step{{Name: "s"}}}, ErrEmptyTrigger},
			{"no steps", &Saga{Name: "fulfillment", Trigger: "quote.accepted"}, ErrNoSteps},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				if err := o.Register(tc.saga); !errors.Is(err, tc.want) {
					t.Errorf("expected %v, got %v", tc.want, err)
				}
			})
		}
	})

	t.Run("rejects duplicate name", func(t *testing.T) {
		var log []string
		saga := &Saga{Name: "fulfillment", Trigger: "quote.accepted", Steps: []Step{step("reserve", &log, false)}}
		if err := o.Register(saga); err != nil {
			t.Fatalf("first register failed: %v", err)
		}
		if err := o.Register(saga); !errors.Is(err, ErrDuplicateSaga) {
			t.Errorf("expected ErrDuplicateSaga, got %v", err)
		}
	})
}

func TestRunCompletes(t *testing.T) {
	d := dispatcher.NewDispatcher(zap.NewNop())
	o := NewOrchestrator(d, zap.NewNop())

	var log []string
	saga := &Saga{
		Name:    "fulfillment",
		Trigger: "quote.accepted",
		Steps: []Step{
			step("reserve_stock", &log, false),
			step("schedule_delivery", &log, false),
			step("notify_sales", &log, false),
		},
	}
	if err := o.Register(saga); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	evt := triggerEvent()
	if err := d.Dispatch(context.Background(), evt); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	want := []string{"exec:reserve_stock", "exec:schedule_delivery", "exec:notify_sales"}
	if len(log) != len(want) {
		t.Fatalf("expected %v, got %v", want, log)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, log)
		}
	}

	execs := o.Executions()
	if len(execs) != 1 {
		t.Fatalf("expected 1 execution, got %d", len(execs))
	}
	if execs[0].Status != StatusCompleted {
		t.Errorf("status = %s, want %s", execs[0].Status, StatusCompleted)
	}
	if execs[0].EventID != evt.ID {
		t.Errorf("event id = %s, want %s", execs[0].EventID, evt.ID)
	}
	if execs[0].CorrelationID != evt.CorrelationID {
		t.Errorf("correlation id = %s, want %s", execs[0].CorrelationID, evt.CorrelationID)
	}
}

func TestRunCompensatesInReverseOrder(t *testing.T) {
	d := dispatcher.NewDispatcher(zap.NewNop())
	o := NewOrchestrator(d, zap.NewNop())

	var log []string
	saga := &Saga{
		Name:    "fulfillment",
		Trigger: "quote.accepted",
		Steps: []Step{
			step("reserve_stock", &log, false),
			step("schedule_delivery", &log, false),
			step("charge_deposit", &log, true),
		},
	}
	if err := o.Register(saga); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if err := d.Dispatch(context.Background(), triggerEvent()); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	want := []string{
		"exec:reserve_stock", "exec:schedule_delivery",
		"undo:schedule_delivery", "undo:reserve_stock",
	}
	if len(log) != len(want) {
		t.Fatalf("expected %v, got %v", want, log)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, log)
		}
	}

	execs := o.Executions()
	if len(execs) != 1 {
		t.Fatalf("expected 1 execution, got %d", len(execs))
	}
	if execs[0].Status != StatusCompensated {
		t.Errorf("status = %s, want %s", execs[0].Status, StatusCompensated)
	}
	if execs[0].FailedStep != "charge_deposit" {
		t.Errorf("failed step = %s, want charge_deposit", execs[0].FailedStep)
	}
}

func TestRunSkipsNilCompensation(t *testing.T) {
	d := dispatcher.NewDispatcher(zap.NewNop())
	o := NewOrchestrator(d, zap.NewNop())

	var log []string
	first := step("notify_sales", &log, false)
	first.Compensate = nil

	saga := &Saga{
		Name:    "fulfillment",
		Trigger: "quote.accepted",
		Steps:   []Step{first, step("charge_deposit", &log, true)},
	}
	if err := o.Register(saga); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if err := d.Dispatch(context.Background(), triggerEvent()); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	if len(log) != 1 || log[0] != "exec:notify_sales" {
		t.Fatalf("expected only the execute entry, got %v", log)
	}
	if got := o.Executions()[0].Status; got != StatusCompensated {
		t.Errorf("status = %s, want %s", got, StatusCompensated)
	}
}

func TestRunRecordsCompensationFailure(t *testing.T) {
	d := dispatcher.NewDispatcher(zap.NewNop())
	o := NewOrchestrator(d, zap.NewNop())

	var log []string
	broken := step("reserve_stock", &log, false)
	broken.Compensate = func(ctx context.Context, evt *event.Event) error {
		return errors.New("release failed")
	}

	saga := &Saga{
		Name:    "fulfillment",
		Trigger: "quote.accepted",
		Steps:   []Step{broken, step("charge_deposit", &log, true)},
	}
	if err := o.Register(saga); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if err := d.Dispatch(context.Background(), triggerEvent()); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	if got := o.Executions()[0].Status; got != StatusCompensationFailed {
		t.Errorf("status = %s, want %s", got, StatusCompensationFailed)
	}
}

func TestRunRecoversFromStepPanic(t *testing.T) {
	d := dispatcher.NewDispatcher(zap.NewNop())
	o := NewOrchestrator(d, zap.NewNop())

	var log []string
	panicking := Step{
		Name: "charge_deposit",
		Execute: func(ctx context.Context, evt *event.Event) error {
			panic("payment provider down")
		},
	}

	saga := &Saga{
		Name:    "fulfillment",
		Trigger: "quote.accepted",
		Steps:   []Step{step("reserve_stock", &log, false), panicking},
	}
	if err := o.Register(saga); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if err := d.Dispatch(context.Background(), triggerEvent()); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	execs := o.Executions()
	if len(execs) != 1 {
		t.Fatalf("expected 1 execution, got %d", len(execs))
	}
	if execs[0].Status != StatusCompensated {
		t.Errorf("status = %s, want %s", execs[0].Status, StatusCompensated)
	}
	if len(log) != 2 || log[1] != "undo:reserve_stock" {
		t.Errorf("expected compensation after panic, got %v", log)
	}
}

func TestSagaFailureDoesNotFailDispatch(t *testing.T) {
	d := dispatcher.NewDispatcher(zap.NewNop())
	o := NewOrchestrator(d, zap.NewNop())

	var log []string
	saga := &Saga{
		Name:    "fulfillment",
		Trigger: "quote.accepted",
		Steps:   []Step{step("charge_deposit", &log, true)},
	}
	if err := o.Register(saga); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	// The triggering transition already committed; saga failure is recorded,
	// not returned to the publisher.
	if err := d.Dispatch(context.Background(), triggerEvent()); err != nil {
		t.Fatalf("expected dispatch to succeed despite saga failure, got %v", err)
	}
}
