package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anungis437/nzila-automation-sub005/internal/application/port"
	"github.com/anungis437/nzila-automation-sub005/internal/domain/audit"
	"github.com/anungis437/nzila-automation-sub005/pkg/database"
	"go.uber.org/zap"
)

// AuditRepository implements port.AuditRepository on sqlite. The table is
// append-only: no update or delete statements exist in this package, and the
// (tenant_id, sequence_no) unique index makes a double-append fail loudly.
// Timestamps are stored in the same RFC3339Nano form the chain hashes, so a
// stored entry re-hashes to the same value it was written with.
type AuditRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *database.DB, logger *zap.Logger) port.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts one chain entry
func (r *AuditRepository) Append(ctx context.Context, entry *audit.Entry) error {
	reasons := entry.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	reasonsJSON, err := json.Marshal(reasons)
	if err != nil {
		return fmt.Errorf("marshal reasons: %w", err)
	}

	query := `
		INSERT INTO audit_entries (
			tenant_id, sequence_no, actor_id, action, target_type, target_id,
			outcome, before_state, after_state, before_snapshot, after_snapshot,
			reasons, timestamp, prev_hash, entry_hash
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		entry.TenantID,
		entry.SequenceNo,
		entry.ActorID,
		entry.Action,
		entry.TargetType,
		entry.TargetID,
		string(entry.Outcome),
		entry.BeforeState,
		entry.AfterState,
		entry.BeforeSnapshot,
		entry.AfterSnapshot,
		string(reasonsJSON),
		audit.CanonicalTime(entry.Timestamp),
		entry.PrevHash,
		entry.EntryHash,
	)
	if err != nil {
		r.logger.Error("Failed to append audit entry",
			zap.String("tenant_id", entry.TenantID),
			zap.Int64("sequence_no", entry.SequenceNo),
			zap.Error(err))
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	entry.ID = id

	return nil
}

// Tail returns the tenant's last sequence number and entry hash, or the
// chain seed for an empty chain
func (r *AuditRepository) Tail(ctx context.Context, tenantID string) (int64, string, error) {
	query := `
		SELECT sequence_no, entry_hash
		FROM audit_entries
		WHERE tenant_id = ?
		ORDER BY sequence_no DESC
		LIMIT 1
	`

	var seq int64
	var hash string
	err := getExecutor(ctx, r.db).QueryRowContext(ctx, query, tenantID).Scan(&seq, &hash)
	if err == sql.ErrNoRows {
		return 0, audit.Seed, nil
	}
	if err != nil {
		r.logger.Error("Failed to read chain tail", zap.String("tenant_id", tenantID), zap.Error(err))
		return 0, "", fmt.Errorf("failed to read chain tail: %w", err)
	}

	return seq, hash, nil
}

// Range returns entries with fromSeq <= sequence_no <= toSeq in order
func (r *AuditRepository) Range(ctx context.Context, tenantID string, fromSeq, toSeq int64) ([]*audit.Entry, error) {
	query := `
		SELECT id, tenant_id, sequence_no, actor_id, action, target_type, target_id,
			outcome, before_state, after_state, before_snapshot, after_snapshot,
			reasons, timestamp, prev_hash, entry_hash
		FROM audit_entries
		WHERE tenant_id = ? AND sequence_no >= ? AND sequence_no <= ?
		ORDER BY sequence_no
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, tenantID, fromSeq, toSeq)
	if err != nil {
		r.logger.Error("Failed to query chain range", zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, fmt.Errorf("failed to query chain range: %w", err)
	}
	defer rows.Close()

	var entries []*audit.Entry
	for rows.Next() {
		var entry audit.Entry
		var outcome, reasonsJSON, timestamp string

		err := rows.Scan(
			&entry.ID,
			&entry.TenantID,
			&entry.SequenceNo,
			&entry.ActorID,
			&entry.Action,
			&entry.TargetType,
			&entry.TargetID,
			&outcome,
			&entry.BeforeState,
			&entry.AfterState,
			&entry.BeforeSnapshot,
			&entry.AfterSnapshot,
			&reasonsJSON,
			&timestamp,
			&entry.PrevHash,
			&entry.EntryHash,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		entry.Outcome = audit.Outcome(outcome)
		if err := json.Unmarshal([]byte(reasonsJSON), &entry.Reasons); err != nil {
			return nil, fmt.Errorf("unmarshal reasons: %w", err)
		}
		if entry.Timestamp, err = time.Parse(time.RFC3339Nano, timestamp); err != nil {
			return nil, fmt.Errorf("parse timestamp: %w", err)
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// Verify interface compliance
var _ port.AuditRepository = (*AuditRepository)(nil)
