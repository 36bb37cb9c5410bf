package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anungis437/nzila-automation-sub005/internal/application/port"
	"github.com/anungis437/nzila-automation-sub005/internal/domain/entity"
	"github.com/anungis437/nzila-automation-sub005/pkg/database"
	"go.uber.org/zap"
)

// InstanceRepository implements port.InstanceRepository on sqlite. The
// context map is stored as JSON; timestamps are stored as RFC3339Nano text so
// they round-trip exactly.
type InstanceRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewInstanceRepository creates a new instance repository
func NewInstanceRepository(db *database.DB, logger *zap.Logger) port.InstanceRepository {
	return &InstanceRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new workflow instance
func (r *InstanceRepository) Create(ctx context.Context, instance *entity.WorkflowInstance) error {
	contextJSON, err := json.Marshal(instance.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}

	query := `
		INSERT INTO workflow_instances (
			tenant_id, instance_id, definition_name, definition_version,
			current_state, version, context, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = getExecutor(ctx, r.db).ExecContext(ctx, query,
		instance.TenantID,
		instance.InstanceID,
		instance.DefinitionName,
		instance.DefinitionVersion,
		instance.CurrentState,
		instance.Version,
		string(contextJSON),
		instance.CreatedAt.UTC().Format(time.RFC3339Nano),
		instance.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		r.logger.Error("Failed to create instance",
			zap.String("tenant_id", instance.TenantID),
			zap.String("instance_id", instance.InstanceID),
			zap.Error(err))
		return fmt.Errorf("failed to create instance: %w", err)
	}

	return nil
}

// Get retrieves a workflow instance, or nil when it does not exist
func (r *InstanceRepository) Get(ctx context.Context, tenantID, instanceID string) (*entity.WorkflowInstance, error) {
	query := `
		SELECT tenant_id, instance_id, definition_name, definition_version,
			current_state, version, context, created_at, updated_at
		FROM workflow_instances
		WHERE tenant_id = ? AND instance_id = ?
	`

	instance, err := scanInstance(getExecutor(ctx, r.db).QueryRowContext(ctx, query, tenantID, instanceID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get instance",
			zap.String("tenant_id", tenantID),
			zap.String("instance_id", instanceID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}

	return instance, nil
}

// UpdateStateContext advances state, context and version in one statement
// guarded by the expected version. Zero rows affected means another writer
// already advanced the instance.
func (r *InstanceRepository) UpdateStateContext(ctx context.Context, tenantID, instanceID, newState string, context map[string]any, expectedVersion int64) (bool, error) {
	contextJSON, err := json.Marshal(context)
	if err != nil {
		return false, fmt.Errorf("marshal context: %w", err)
	}

	query := `
		UPDATE workflow_instances
		SET current_state = ?, context = ?, version = version + 1, updated_at = ?
		WHERE tenant_id = ? AND instance_id = ? AND version = ?
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		newState,
		string(contextJSON),
		time.Now().UTC().Format(time.RFC3339Nano),
		tenantID,
		instanceID,
		expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to update instance",
			zap.String("tenant_id", tenantID),
			zap.String("instance_id", instanceID),
			zap.Error(err))
		return false, fmt.Errorf("failed to update instance: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected == 1, nil
}

// List retrieves a tenant's instances with pagination
func (r *InstanceRepository) List(ctx context.Context, tenantID string, limit, offset int) ([]*entity.WorkflowInstance, error) {
	query := `
		SELECT tenant_id, instance_id, definition_name, definition_version,
			current_state, version, context, created_at, updated_at
		FROM workflow_instances
		WHERE tenant_id = ?
		ORDER BY created_at DESC, instance_id
		LIMIT ? OFFSET ?
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, tenantID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list instances", zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	defer rows.Close()

	var instances []*entity.WorkflowInstance
	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}
		instances = append(instances, instance)
	}

	return instances, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInstance(row rowScanner) (*entity.WorkflowInstance, error) {
	var instance entity.WorkflowInstance
	var contextJSON, createdAt, updatedAt string

	err := row.Scan(
		&instance.TenantID,
		&instance.InstanceID,
		&instance.DefinitionName,
		&instance.DefinitionVersion,
		&instance.CurrentState,
		&instance.Version,
		&contextJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(contextJSON), &instance.Context); err != nil {
		return nil, fmt.Errorf("unmarshal context: %w", err)
	}
	if instance.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if instance.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &instance, nil
}

// Verify interface compliance
var _ port.InstanceRepository = (*InstanceRepository)(nil)
