package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/anungis437/nzila-automation-sub005/internal/domain/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// stubAuditRepo serves a fixed chain; only Range is used by the exporter.
type stubAuditRepo struct {
	entries []*audit.Entry
}

func (s *stubAuditRepo) Append(ctx context.Context, entry *audit.Entry) error {
	s.entries = append(s.entries, entry)
	return nil
}

func (s *stubAuditRepo) Tail(ctx context.Context, tenantID string) (int64, string, error) {
	if len(s.entries) == 0 {
		return 0, audit.Seed, nil
	}
	last := s.entries[len(s.entries)-1]
	return last.SequenceNo, last.EntryHash, nil
}

func (s *stubAuditRepo) Range(ctx context.Context, tenantID string, fromSeq, toSeq int64) ([]*audit.Entry, error) {
	result := make([]*audit.Entry, 0)
	for _, entry := range s.entries {
		if entry.TenantID == tenantID && entry.SequenceNo >= fromSeq && entry.SequenceNo <= toSeq {
			result = append(result, entry)
		}
	}
	return result, nil
}

func buildChain(t *testing.T, tenantID string, n int) []*audit.Entry {
	t.Helper()

	entries := make([]*audit.Entry, 0, n)
	prevHash := audit.Seed
	for seq := 1; seq <= n; seq++ {
		entry := &audit.Entry{
			TenantID:       tenantID,
			SequenceNo:     int64(seq),
			ActorID:        "alice",
			Action:         "submit",
			TargetType:     "workflow_instance",
			TargetID:       "quote-1",
			Outcome:        audit.OutcomeCommitted,
			BeforeState:    "draft",
			AfterState:     "submitted",
			BeforeSnapshot: "{}",
			AfterSnapshot:  "{}",
			Reasons:        []string{},
			Timestamp:      time.Date(2026, 8, 1, 12, 0, seq, 0, time.UTC),
			PrevHash:       prevHash,
		}
		entry.EntryHash = audit.ComputeHash(prevHash, entry)
		prevHash = entry.EntryHash
		entries = append(entries, entry)
	}
	return entries
}

func TestExportXLSX(t *testing.T) {
	repo := &stubAuditRepo{entries: buildChain(t, "acme", 3)}
	exporter := NewChainExporter(repo, zap.NewNop())

	var buf bytes.Buffer
	require.NoError(t, exporter.ExportXLSX(context.Background(), "acme", 1, 10, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Audit Chain")
	require.NoError(t, err)
	require.Len(t, rows, 4, "header plus three entries")

	assert.Equal(t, "Sequence", rows[0][0])
	assert.Equal(t, "Entry Hash", rows[0][11])

	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "alice", rows[1][2])
	assert.Equal(t, "COMMITTED", rows[1][6])
	assert.Equal(t, audit.Seed, rows[1][10])

	// Hash columns chain row to row, like the stored entries.
	assert.Equal(t, rows[1][11], rows[2][10])
	assert.Equal(t, rows[2][11], rows[3][10])
}

func TestExportXLSXRefusesBrokenChain(t *testing.T) {
	entries := buildChain(t, "acme", 3)
	entries[1].ActorID = "mallory" // retroactive edit

	exporter := NewChainExporter(&stubAuditRepo{entries: entries}, zap.NewNop())

	var buf bytes.Buffer
	err := exporter.ExportXLSX(context.Background(), "acme", 1, 10, &buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, audit.ErrChainIntegrity)
	assert.Zero(t, buf.Len(), "no workbook bytes on failure")
}

func TestExportXLSXEmptyRange(t *testing.T) {
	exporter := NewChainExporter(&stubAuditRepo{}, zap.NewNop())

	var buf bytes.Buffer
	require.NoError(t, exporter.ExportXLSX(context.Background(), "acme", 1, 10, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Audit Chain")
	require.NoError(t, err)
	require.Len(t, rows, 1, "header only")
}
