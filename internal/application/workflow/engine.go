package workflow

import (
	"context"
	"errors"

	"github.com/anungis437/nzila-automation-sub005/internal/application/dispatcher"
	"github.com/anungis437/nzila-automation-sub005/internal/domain/audit"
	"github.com/anungis437/nzila-automation-sub005/internal/domain/entity"
	"github.com/anungis437/nzila-automation-sub005/internal/domain/event"
	"github.com/anungis437/nzila-automation-sub005/internal/domain/evidence"
	domainwf "github.com/anungis437/nzila-automation-sub005/internal/domain/workflow"
)

var (
	// ErrInstanceNotFound is returned when the (tenant, instance) pair is unknown
	ErrInstanceNotFound = errors.New("workflow instance not found")

	// ErrInstanceExists is returned when creating an instance that already exists
	ErrInstanceExists = errors.New("workflow instance already exists")

	// ErrDefinitionNotFound is returned when an instance references an unregistered definition
	ErrDefinitionNotFound = errors.New("workflow definition not found")

	// ErrDefinitionExists is returned when registering a duplicate name and version
	ErrDefinitionExists = errors.New("workflow definition already registered")
)

// Outcome classifies an attempt. Only Committed mutates the instance;
// Conflict additionally leaves no audit trace, because the caller simply
// raced and must re-read and retry.
type Outcome string

const (
	OutcomeCommitted          Outcome = "COMMITTED"
	OutcomeConflict           Outcome = "CONFLICT"
	OutcomeIllegalAction      Outcome = "ILLEGAL_ACTION"
	OutcomeGovernanceBlocked  Outcome = "GOVERNANCE_BLOCKED"
	OutcomeEvidenceMissing    Outcome = "EVIDENCE_MISSING"
	OutcomeWorkflowTerminated Outcome = "WORKFLOW_TERMINATED"
)

// AttemptRequest carries one transition attempt. TenantID is mandatory on
// every call; there is no ambient tenant state.
type AttemptRequest struct {
	TenantID   string
	InstanceID string
	Action     string
	ActorID    string

	// ContextPatch is merged into a read-only evaluation context for the
	// gates; it reaches stored context only if the transition commits.
	ContextPatch map[string]any

	// Evidence supplies the artifacts for evidence-required transitions
	Evidence []evidence.Artifact

	// ExpectedVersion is the optimistic-concurrency token from the
	// caller's last read of the instance
	ExpectedVersion int64
}

// AttemptResult reports what happened to an attempt.
type AttemptResult struct {
	Outcome        Outcome  `json:"outcome"`
	NewState       string   `json:"new_state,omitempty"`
	AuditSequence  int64    `json:"audit_sequence,omitempty"`
	BlockReasons   []string `json:"block_reasons,omitempty"`
	WarnReasons    []string `json:"warn_reasons,omitempty"`
	EvidencePackID string   `json:"evidence_pack_id,omitempty"`
}

// Engine drives workflow instances through governed transitions. Every
// committed or rejected attempt flows through the single audit append path,
// so a write site cannot skip auditing.
type Engine interface {
	// RegisterDefinition compiles and registers a workflow definition
	RegisterDefinition(def *domainwf.Definition) error

	// CreateInstance enters a business object into a workflow at the
	// definition's initial state
	CreateInstance(ctx context.Context, tenantID, instanceID, definitionName string, definitionVersion int, actorID string, initialContext map[string]any) (*entity.WorkflowInstance, error)

	// Attempt tries one governed transition
	Attempt(ctx context.Context, req AttemptRequest) (*AttemptResult, error)

	// GetInstance returns the current instance state
	GetInstance(ctx context.Context, tenantID, instanceID string) (*entity.WorkflowInstance, error)

	// VerifyChain recomputes the tenant's audit chain over the sequence
	// range and reports whether every link holds
	VerifyChain(ctx context.Context, tenantID string, fromSeq, toSeq int64) (bool, error)

	// ExportChain returns the tenant's audit entries for external
	// compliance tooling
	ExportChain(ctx context.Context, tenantID string, fromSeq, toSeq int64) ([]*audit.Entry, error)

	// VerifyEvidencePack proves a stored pack matches the supplied
	// artifact set
	VerifyEvidencePack(ctx context.Context, packID string, artifacts []evidence.Artifact) (bool, error)

	// Subscribe attaches a handler to the engine's event feed
	Subscribe(eventType event.Type, handler dispatcher.Handler)
}
