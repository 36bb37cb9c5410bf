package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/anungis437/nzila-automation-sub005/internal/application/saga"
	"github.com/anungis437/nzila-automation-sub005/internal/application/workflow"
	"github.com/anungis437/nzila-automation-sub005/internal/container"
	"github.com/anungis437/nzila-automation-sub005/internal/domain/event"
	domainwf "github.com/anungis437/nzila-automation-sub005/internal/domain/workflow"
)

// registerDefinitions installs the stock workflow definitions. Definitions
// are data; tenants drive instances of these graphs through the engine.
func registerDefinitions(engine workflow.Engine) error {
	quote := &domainwf.Definition{
		Name:     "quote",
		Version:  1,
		States:   []domainwf.State{"draft", "submitted", "accepted", "rejected"},
		Initial:  "draft",
		Terminal: []domainwf.State{"accepted", "rejected"},
		Transitions: []domainwf.Transition{
			{From: "draft", To: "submitted", Action: "submit", RequiredGates: []string{"margin_floor", "discount_ceiling"}, Label: "Submit for review"},
			{From: "submitted", To: "draft", Action: "recall", Label: "Recall to draft"},
			{From: "submitted", To: "accepted", Action: "accept", RequiredGates: []string{"dual_approval"}, EvidenceRequired: true, Label: "Accept"},
			{From: "submitted", To: "rejected", Action: "reject", Label: "Reject"},
		},
	}
	if err := engine.RegisterDefinition(quote); err != nil {
		return err
	}

	closePeriod := &domainwf.Definition{
		Name:     "close_period",
		Version:  1,
		States:   []domainwf.State{"open", "closing", "closed"},
		Initial:  "open",
		Terminal: []domainwf.State{"closed"},
		Transitions: []domainwf.Transition{
			{From: "open", To: "closing", Action: "begin_close", Label: "Begin close"},
			{From: "closing", To: "open", Action: "reopen", Label: "Reopen"},
			{From: "closing", To: "closed", Action: "close", RequiredGates: []string{"open_exceptions"}, EvidenceRequired: true, EventType: "period.closed", Label: "Close period"},
		},
	}
	return engine.RegisterDefinition(closePeriod)
}

// registerSagas wires the stock follow-on reactions to committed transitions.
func registerSagas(app *container.Container, logger *zap.Logger) error {
	// Accepted quotes kick off fulfillment; each step must be undone if a
	// later one fails.
	fulfillment := &saga.Saga{
		Name:    "quote_fulfillment",
		Trigger: "quote.accepted",
		Steps: []saga.Step{
			{
				Name: "reserve_stock",
				Execute: func(ctx context.Context, evt *event.Event) error {
					logger.Info("Reserving stock",
						zap.String("tenant_id", evt.TenantID),
						zap.String("instance_id", evt.InstanceID))
					return nil
				},
				Compensate: func(ctx context.Context, evt *event.Event) error {
					logger.Info("Releasing stock reservation",
						zap.String("tenant_id", evt.TenantID),
						zap.String("instance_id", evt.InstanceID))
					return nil
				},
			},
			{
				Name: "notify_sales",
				Execute: func(ctx context.Context, evt *event.Event) error {
					logger.Info("Notifying sales",
						zap.String("tenant_id", evt.TenantID),
						zap.String("actor_id", evt.GetPayloadString("actor_id")))
					return nil
				},
			},
		},
	}
	if err := app.Orchestrator.Register(fulfillment); err != nil {
		return err
	}

	// Closed periods archive their evidence reference for the retention job.
	archival := &saga.Saga{
		Name:    "period_archival",
		Trigger: "period.closed",
		Steps: []saga.Step{
			{
				Name: "archive_evidence",
				Execute: func(ctx context.Context, evt *event.Event) error {
					logger.Info("Archiving close-period evidence",
						zap.String("tenant_id", evt.TenantID),
						zap.String("instance_id", evt.InstanceID),
						zap.String("evidence_pack_id", evt.GetPayloadString("evidence_pack_id")))
					return nil
				},
			},
		},
	}
	return app.Orchestrator.Register(archival)
}
