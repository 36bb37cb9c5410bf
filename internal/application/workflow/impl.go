package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/anungis437/nzila-automation-sub005/internal/application/dispatcher"
	"github.com/anungis437/nzila-automation-sub005/internal/application/gate"
	"github.com/anungis437/nzila-automation-sub005/internal/application/port"
	"github.com/anungis437/nzila-automation-sub005/internal/domain/audit"
	"github.com/anungis437/nzila-automation-sub005/internal/domain/entity"
	"github.com/anungis437/nzila-automation-sub005/internal/domain/event"
	"github.com/anungis437/nzila-automation-sub005/internal/domain/evidence"
	domainwf "github.com/anungis437/nzila-automation-sub005/internal/domain/workflow"
	"go.uber.org/zap"
)

const targetTypeInstance = "workflow_instance"

// errVersionRace marks an optimistic-concurrency loss detected inside the
// commit transaction, after the initial version check already passed.
var errVersionRace = errors.New("version changed during commit")

// engineImpl is the concrete implementation of Engine
type engineImpl struct {
	instanceRepo port.InstanceRepository
	auditRepo    port.AuditRepository
	evidenceRepo port.EvidenceRepository
	txManager    port.TransactionManager
	evaluator    *gate.Evaluator
	dispatcher   dispatcher.Dispatcher
	logger       *zap.Logger
	now          func() time.Time

	// Registered definitions keyed by name:version
	defMu       sync.RWMutex
	definitions map[string]*domainwf.CompiledDefinition

	// Chain-tail serialization points, one per tenant. Appends for one
	// tenant must produce a strictly ordered chain; different tenants
	// proceed in parallel.
	chainMu sync.Mutex
	chains  map[string]*sync.Mutex
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithClock overrides the engine's time source, used by tests to pin
// timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	instanceRepo port.InstanceRepository,
	auditRepo port.AuditRepository,
	evidenceRepo port.EvidenceRepository,
	txManager port.TransactionManager,
	evaluator *gate.Evaluator,
	d dispatcher.Dispatcher,
	logger *zap.Logger,
	opts ...EngineOption,
) Engine {
	e := &engineImpl{
		instanceRepo: instanceRepo,
		auditRepo:    auditRepo,
		evidenceRepo: evidenceRepo,
		txManager:    txManager,
		evaluator:    evaluator,
		dispatcher:   d,
		logger:       logger,
		now:          time.Now,
		definitions:  make(map[string]*domainwf.CompiledDefinition),
		chains:       make(map[string]*sync.Mutex),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// RegisterDefinition compiles and registers a workflow definition
func (e *engineImpl) RegisterDefinition(def *domainwf.Definition) error {
	compiled, err := def.Compile()
	if err != nil {
		return fmt.Errorf("compile definition: %w", err)
	}

	key := domainwf.Key(def.Name, def.Version)

	e.defMu.Lock()
	defer e.defMu.Unlock()

	if _, exists := e.definitions[key]; exists {
		return fmt.Errorf("%w: %s", ErrDefinitionExists, key)
	}
	e.definitions[key] = compiled

	e.logger.Info("Workflow definition registered",
		zap.String("definition", def.Name),
		zap.Int("version", def.Version),
		zap.Int("states", len(def.States)),
		zap.Int("transitions", len(def.Transitions)))
	return nil
}

func (e *engineImpl) definition(name string, version int) (*domainwf.CompiledDefinition, error) {
	e.defMu.RLock()
	defer e.defMu.RUnlock()

	compiled, ok := e.definitions[domainwf.Key(name, version)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDefinitionNotFound, domainwf.Key(name, version))
	}
	return compiled, nil
}

// tenantChain returns the chain-tail mutex for a tenant, creating it on
// first use.
func (e *engineImpl) tenantChain(tenantID string) *sync.Mutex {
	e.chainMu.Lock()
	defer e.chainMu.Unlock()

	mu, ok := e.chains[tenantID]
	if !ok {
		mu = &sync.Mutex{}
		e.chains[tenantID] = mu
	}
	return mu
}

// CreateInstance enters a business object into a workflow
func (e *engineImpl) CreateInstance(ctx context.Context, tenantID, instanceID, definitionName string, definitionVersion int, actorID string, initialContext map[string]any) (*entity.WorkflowInstance, error) {
	compiled, err := e.definition(definitionName, definitionVersion)
	if err != nil {
		return nil, err
	}

	existing, err := e.instanceRepo.Get(ctx, tenantID, instanceID)
	if err != nil {
		return nil, fmt.Errorf("load instance: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrInstanceExists, tenantID, instanceID)
	}

	if initialContext == nil {
		initialContext = map[string]any{}
	}

	now := e.now().UTC()
	instance := &entity.WorkflowInstance{
		TenantID:          tenantID,
		InstanceID:        instanceID,
		DefinitionName:    definitionName,
		DefinitionVersion: definitionVersion,
		CurrentState:      compiled.Initial().String(),
		Version:           1,
		Context:           initialContext,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	snapshot, err := audit.CanonicalSnapshot(initialContext)
	if err != nil {
		return nil, err
	}

	chainLock := e.tenantChain(tenantID)
	chainLock.Lock()
	defer chainLock.Unlock()

	var entry *audit.Entry
	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.instanceRepo.Create(txCtx, instance); err != nil {
			return fmt.Errorf("create instance: %w", err)
		}

		entry, err = e.appendEntry(txCtx, &audit.Entry{
			TenantID:       tenantID,
			ActorID:        actorID,
			Action:         "create",
			TargetType:     targetTypeInstance,
			TargetID:       instanceID,
			Outcome:        audit.OutcomeCommitted,
			BeforeState:    "",
			AfterState:     instance.CurrentState,
			BeforeSnapshot: "{}",
			AfterSnapshot:  snapshot,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Workflow instance created",
		zap.String("tenant_id", tenantID),
		zap.String("instance_id", instanceID),
		zap.String("definition", definitionName),
		zap.String("state", instance.CurrentState))

	evt := event.New(event.TypeInstanceCreated, tenantID, instanceID, "", instance.CurrentState, map[string]any{
		"definition":     definitionName,
		"actor_id":       actorID,
		"audit_sequence": entry.SequenceNo,
	})
	e.dispatcher.DispatchAsync(ctx, evt)

	return instance, nil
}

// Attempt tries one governed transition
func (e *engineImpl) Attempt(ctx context.Context, req AttemptRequest) (*AttemptResult, error) {
	if req.TenantID == "" || req.InstanceID == "" || req.Action == "" {
		return nil, fmt.Errorf("tenant id, instance id and action are required")
	}

	instance, err := e.instanceRepo.Get(ctx, req.TenantID, req.InstanceID)
	if err != nil {
		return nil, fmt.Errorf("load instance: %w", err)
	}
	if instance == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrInstanceNotFound, req.TenantID, req.InstanceID)
	}

	// Stale version: fail without side effects. The caller must re-read
	// and retry; nothing is audited because nothing was decided.
	if req.ExpectedVersion != instance.Version {
		return &AttemptResult{Outcome: OutcomeConflict}, nil
	}

	compiled, err := e.definition(instance.DefinitionName, instance.DefinitionVersion)
	if err != nil {
		return nil, err
	}

	currentState := domainwf.State(instance.CurrentState)

	if compiled.IsTerminal(currentState) {
		return e.recordRejection(ctx, req, instance, audit.OutcomeWorkflowTerminated, nil, nil)
	}

	transition, ok := compiled.Lookup(currentState, req.Action)
	if !ok {
		return e.recordRejection(ctx, req, instance, audit.OutcomeIllegalAction, nil, nil)
	}

	// Read-only evaluation context: stored context plus the patch. Stored
	// context is only mutated on commit.
	evalContext := instance.ContextCopy()
	for k, v := range req.ContextPatch {
		evalContext[k] = v
	}

	gateIDs := append(append([]string{}, transition.RequiredGates...), compiled.GlobalGates()...)
	report := e.evaluator.Evaluate(&gate.EvalContext{
		TenantID:   req.TenantID,
		Instance:   instance,
		Transition: transition,
		Context:    evalContext,
	}, gateIDs)

	if report.Verdict == gate.VerdictBlock {
		return e.recordRejection(ctx, req, instance, audit.OutcomeGovernanceBlocked, report.BlockReasons, report.WarnReasons)
	}

	if transition.EvidenceRequired && len(req.Evidence) == 0 {
		return e.recordRejection(ctx, req, instance, audit.OutcomeEvidenceMissing, nil, report.WarnReasons)
	}

	beforeSnapshot, err := audit.CanonicalSnapshot(instance.Context)
	if err != nil {
		return nil, err
	}
	afterSnapshot, err := audit.CanonicalSnapshot(evalContext)
	if err != nil {
		return nil, err
	}

	newVersion := instance.Version + 1

	var pack *evidence.Pack
	if transition.EvidenceRequired {
		transitionID := fmt.Sprintf("%s:%s:%s:v%d", req.TenantID, req.InstanceID, req.Action, newVersion)
		pack, err = evidence.BuildPack(transitionID, req.Evidence, e.now())
		if err != nil {
			return nil, fmt.Errorf("build evidence pack: %w", err)
		}
	}

	chainLock := e.tenantChain(req.TenantID)
	chainLock.Lock()
	defer chainLock.Unlock()

	// State advance, audit append and evidence persist commit as one
	// atomic unit; a partial application must never be observable.
	var entry *audit.Entry
	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		updated, err := e.instanceRepo.UpdateStateContext(txCtx, req.TenantID, req.InstanceID, transition.To.String(), evalContext, req.ExpectedVersion)
		if err != nil {
			return fmt.Errorf("update instance: %w", err)
		}
		if !updated {
			return errVersionRace
		}

		if pack != nil {
			if err := e.evidenceRepo.Save(txCtx, pack); err != nil {
				return fmt.Errorf("save evidence pack: %w", err)
			}
		}

		entry, err = e.appendEntry(txCtx, &audit.Entry{
			TenantID:       req.TenantID,
			ActorID:        req.ActorID,
			Action:         req.Action,
			TargetType:     targetTypeInstance,
			TargetID:       req.InstanceID,
			Outcome:        audit.OutcomeCommitted,
			BeforeState:    instance.CurrentState,
			AfterState:     transition.To.String(),
			BeforeSnapshot: beforeSnapshot,
			AfterSnapshot:  afterSnapshot,
			Reasons:        report.WarnReasons,
		})
		return err
	})
	if errors.Is(err, errVersionRace) {
		return &AttemptResult{Outcome: OutcomeConflict}, nil
	}
	if err != nil {
		return nil, err
	}

	e.logger.Info("Transition committed",
		zap.String("tenant_id", req.TenantID),
		zap.String("instance_id", req.InstanceID),
		zap.String("action", req.Action),
		zap.String("from_state", instance.CurrentState),
		zap.String("to_state", transition.To.String()),
		zap.Int64("audit_sequence", entry.SequenceNo),
		zap.Strings("warn_reasons", report.WarnReasons))

	payload := map[string]any{
		"action":         req.Action,
		"actor_id":       req.ActorID,
		"audit_sequence": entry.SequenceNo,
	}
	result := &AttemptResult{
		Outcome:       OutcomeCommitted,
		NewState:      transition.To.String(),
		AuditSequence: entry.SequenceNo,
		WarnReasons:   report.WarnReasons,
	}
	if pack != nil {
		payload["evidence_pack_id"] = pack.ID
		result.EvidencePackID = pack.ID
	}

	evt := event.New(event.Type(compiled.EventTypeFor(transition)), req.TenantID, req.InstanceID, instance.CurrentState, transition.To.String(), payload)
	e.dispatcher.DispatchAsync(ctx, evt)

	return result, nil
}

// recordRejection appends a failed-action audit entry and returns the
// rejection outcome. The instance is untouched and no event is emitted;
// rejections are audit facts, not domain events.
func (e *engineImpl) recordRejection(ctx context.Context, req AttemptRequest, instance *entity.WorkflowInstance, outcome audit.Outcome, blockReasons, warnReasons []string) (*AttemptResult, error) {
	snapshot, err := audit.CanonicalSnapshot(instance.Context)
	if err != nil {
		return nil, err
	}

	reasons := append(append([]string{}, blockReasons...), warnReasons...)

	chainLock := e.tenantChain(req.TenantID)
	chainLock.Lock()
	defer chainLock.Unlock()

	var entry *audit.Entry
	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		entry, err = e.appendEntry(txCtx, &audit.Entry{
			TenantID:       req.TenantID,
			ActorID:        req.ActorID,
			Action:         req.Action,
			TargetType:     targetTypeInstance,
			TargetID:       req.InstanceID,
			Outcome:        outcome,
			BeforeState:    instance.CurrentState,
			AfterState:     instance.CurrentState,
			BeforeSnapshot: snapshot,
			AfterSnapshot:  snapshot,
			Reasons:        reasons,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Transition rejected",
		zap.String("tenant_id", req.TenantID),
		zap.String("instance_id", req.InstanceID),
		zap.String("action", req.Action),
		zap.String("outcome", string(outcome)),
		zap.Strings("reasons", reasons),
		zap.Int64("audit_sequence", entry.SequenceNo))

	return &AttemptResult{
		Outcome:       Outcome(outcome),
		AuditSequence: entry.SequenceNo,
		BlockReasons:  blockReasons,
		WarnReasons:   warnReasons,
	}, nil
}

// appendEntry is the single audit append path. The caller must hold the
// tenant's chain mutex and run inside a transaction.
func (e *engineImpl) appendEntry(ctx context.Context, entry *audit.Entry) (*audit.Entry, error) {
	tailSeq, tailHash, err := e.auditRepo.Tail(ctx, entry.TenantID)
	if err != nil {
		return nil, fmt.Errorf("read chain tail: %w", err)
	}

	entry.SequenceNo = tailSeq + 1
	entry.PrevHash = tailHash
	entry.Timestamp = e.now().UTC()
	if entry.Reasons == nil {
		entry.Reasons = []string{}
	}
	entry.EntryHash = audit.ComputeHash(entry.PrevHash, entry)

	if err := e.auditRepo.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("append audit entry: %w", err)
	}
	return entry, nil
}

// GetInstance returns the current instance state
func (e *engineImpl) GetInstance(ctx context.Context, tenantID, instanceID string) (*entity.WorkflowInstance, error) {
	instance, err := e.instanceRepo.Get(ctx, tenantID, instanceID)
	if err != nil {
		return nil, fmt.Errorf("load instance: %w", err)
	}
	if instance == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrInstanceNotFound, tenantID, instanceID)
	}
	return instance, nil
}

// VerifyChain recomputes the tenant's audit chain over a sequence range
func (e *engineImpl) VerifyChain(ctx context.Context, tenantID string, fromSeq, toSeq int64) (bool, error) {
	entries, err := e.auditRepo.Range(ctx, tenantID, fromSeq, toSeq)
	if err != nil {
		return false, fmt.Errorf("load chain range: %w", err)
	}

	if err := audit.Verify(entries); err != nil {
		e.logger.Error("Audit chain verification failed",
			zap.String("tenant_id", tenantID),
			zap.Int64("from_seq", fromSeq),
			zap.Int64("to_seq", toSeq),
			zap.Error(err))
		return false, nil
	}
	return true, nil
}

// ExportChain returns the tenant's audit entries for compliance tooling
func (e *engineImpl) ExportChain(ctx context.Context, tenantID string, fromSeq, toSeq int64) ([]*audit.Entry, error) {
	entries, err := e.auditRepo.Range(ctx, tenantID, fromSeq, toSeq)
	if err != nil {
		return nil, fmt.Errorf("load chain range: %w", err)
	}
	return entries, nil
}

// VerifyEvidencePack proves a stored pack matches the supplied artifacts
func (e *engineImpl) VerifyEvidencePack(ctx context.Context, packID string, artifacts []evidence.Artifact) (bool, error) {
	pack, err := e.evidenceRepo.Get(ctx, packID)
	if err != nil {
		return false, fmt.Errorf("load evidence pack: %w", err)
	}
	if pack == nil {
		return false, nil
	}
	return evidence.Verify(pack, artifacts), nil
}

// Subscribe attaches a handler to the engine's event feed
func (e *engineImpl) Subscribe(eventType event.Type, handler dispatcher.Handler) {
	e.dispatcher.Subscribe(eventType, handler)
}

// Verify interface compliance
var _ Engine = (*engineImpl)(nil)
