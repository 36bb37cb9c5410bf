package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/anungis437/nzila-automation-sub005/internal/application/port"
	"github.com/anungis437/nzila-automation-sub005/internal/domain/evidence"
	"github.com/anungis437/nzila-automation-sub005/pkg/database"
	"go.uber.org/zap"
)

// EvidenceRepository implements port.EvidenceRepository on sqlite. Artifacts
// are stored one row each, with their position preserved so a loaded pack
// carries its artifacts in the committed (sorted) order.
type EvidenceRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewEvidenceRepository creates a new evidence repository
func NewEvidenceRepository(db *database.DB, logger *zap.Logger) port.EvidenceRepository {
	return &EvidenceRepository{
		db:     db,
		logger: logger,
	}
}

// Save persists a pack and its artifacts
func (r *EvidenceRepository) Save(ctx context.Context, pack *evidence.Pack) error {
	ex := getExecutor(ctx, r.db)

	packQuery := `
		INSERT INTO evidence_packs (id, transition_id, merkle_root, pack_digest, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := ex.ExecContext(ctx, packQuery,
		pack.ID,
		pack.TransitionID,
		pack.MerkleRoot,
		pack.PackDigest,
		pack.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		r.logger.Error("Failed to save evidence pack", zap.String("pack_id", pack.ID), zap.Error(err))
		return fmt.Errorf("failed to save evidence pack: %w", err)
	}

	artifactQuery := `
		INSERT INTO evidence_artifacts (pack_id, position, kind, content_ref, sha256)
		VALUES (?, ?, ?, ?, ?)
	`
	for i, artifact := range pack.Artifacts {
		_, err := ex.ExecContext(ctx, artifactQuery,
			pack.ID,
			i,
			artifact.Kind,
			artifact.ContentRef,
			artifact.SHA256,
		)
		if err != nil {
			r.logger.Error("Failed to save evidence artifact",
				zap.String("pack_id", pack.ID),
				zap.Int("position", i),
				zap.Error(err))
			return fmt.Errorf("failed to save evidence artifact: %w", err)
		}
	}

	return nil
}

// Get retrieves a pack with its artifacts, or nil when unknown
func (r *EvidenceRepository) Get(ctx context.Context, packID string) (*evidence.Pack, error) {
	ex := getExecutor(ctx, r.db)

	packQuery := `
		SELECT id, transition_id, merkle_root, pack_digest, created_at
		FROM evidence_packs
		WHERE id = ?
	`

	var pack evidence.Pack
	var createdAt string
	err := ex.QueryRowContext(ctx, packQuery, packID).Scan(
		&pack.ID,
		&pack.TransitionID,
		&pack.MerkleRoot,
		&pack.PackDigest,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get evidence pack", zap.String("pack_id", packID), zap.Error(err))
		return nil, fmt.Errorf("failed to get evidence pack: %w", err)
	}

	if pack.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	artifactQuery := `
		SELECT kind, content_ref, sha256
		FROM evidence_artifacts
		WHERE pack_id = ?
		ORDER BY position
	`

	rows, err := ex.QueryContext(ctx, artifactQuery, packID)
	if err != nil {
		return nil, fmt.Errorf("failed to query evidence artifacts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var artifact evidence.Artifact
		if err := rows.Scan(&artifact.Kind, &artifact.ContentRef, &artifact.SHA256); err != nil {
			return nil, fmt.Errorf("failed to scan evidence artifact: %w", err)
		}
		pack.Artifacts = append(pack.Artifacts, artifact)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &pack, nil
}

// Verify interface compliance
var _ port.EvidenceRepository = (*EvidenceRepository)(nil)
