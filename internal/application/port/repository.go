package port

import (
	"context"

	"github.com/anungis437/nzila-automation-sub005/internal/domain/audit"
	"github.com/anungis437/nzila-automation-sub005/internal/domain/entity"
	"github.com/anungis437/nzila-automation-sub005/internal/domain/evidence"
)

// InstanceRepository defines persistence operations for WorkflowInstance
type InstanceRepository interface {
	Create(ctx context.Context, instance *entity.WorkflowInstance) error

	// Get returns the instance or nil when it does not exist
	Get(ctx context.Context, tenantID, instanceID string) (*entity.WorkflowInstance, error)

	// UpdateStateContext advances state, context and version in one
	// statement guarded by the expected version. It returns false, with no
	// error, when the stored version differs (optimistic-concurrency loss).
	UpdateStateContext(ctx context.Context, tenantID, instanceID, newState string, context map[string]any, expectedVersion int64) (bool, error)

	// List returns a tenant's instances with pagination
	List(ctx context.Context, tenantID string, limit, offset int) ([]*entity.WorkflowInstance, error)
}

// AuditRepository defines persistence operations for the append-only audit
// chain. There is no update or delete: the chain only grows.
type AuditRepository interface {
	Append(ctx context.Context, entry *audit.Entry) error

	// Tail returns the tenant's last sequence number and entry hash, or
	// (0, audit.Seed) for an empty chain.
	Tail(ctx context.Context, tenantID string) (int64, string, error)

	// Range returns entries with fromSeq <= SequenceNo <= toSeq in order
	Range(ctx context.Context, tenantID string, fromSeq, toSeq int64) ([]*audit.Entry, error)
}

// EvidenceRepository defines persistence operations for evidence packs
type EvidenceRepository interface {
	Save(ctx context.Context, pack *evidence.Pack) error

	// Get returns the pack with its artifacts, or nil when unknown
	Get(ctx context.Context, packID string) (*evidence.Pack, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
