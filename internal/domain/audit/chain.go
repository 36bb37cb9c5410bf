package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Seed is the prev hash of the first entry of every tenant chain.
const Seed = "0000000000000000000000000000000000000000000000000000000000000000"

// ErrChainIntegrity is returned by Verify when a recomputed hash does not
// match the stored one. It signals external tampering; it is never produced
// by a normal append.
var ErrChainIntegrity = errors.New("audit chain integrity violation")

// canonicalEntry fixes the serialization used for hashing. All fields are
// scalars or string slices (no maps) so json.Marshal field order is
// deterministic. Bump the version constant if the layout ever changes.
type canonicalEntry struct {
	Version        string   `json:"v"`
	TenantID       string   `json:"tenant_id"`
	SequenceNo     int64    `json:"sequence_no"`
	ActorID        string   `json:"actor_id"`
	Action         string   `json:"action"`
	TargetType     string   `json:"target_type"`
	TargetID       string   `json:"target_id"`
	Outcome        string   `json:"outcome"`
	BeforeState    string   `json:"before_state"`
	AfterState     string   `json:"after_state"`
	BeforeSnapshot string   `json:"before_snapshot"`
	AfterSnapshot  string   `json:"after_snapshot"`
	Reasons        []string `json:"reasons"`
	Timestamp      string   `json:"timestamp"`
}

// canonicalVersion identifies the canonicalization layout, so independent
// implementations reproduce identical hashes for identical logical content.
const canonicalVersion = "audit-v1"

// CanonicalTime formats a timestamp the way the chain hashes it.
func CanonicalTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// CanonicalSnapshot serializes a context map into the canonical form stored
// in snapshot fields. encoding/json sorts map keys, so the result is stable
// for the same logical content.
func CanonicalSnapshot(context map[string]any) (string, error) {
	if context == nil {
		context = map[string]any{}
	}
	raw, err := json.Marshal(context)
	if err != nil {
		return "", fmt.Errorf("canonicalize snapshot: %w", err)
	}
	return string(raw), nil
}

// ComputeHash computes the entry hash from the previous hash and the entry's
// canonical serialization. The stored EntryHash field is ignored.
func ComputeHash(prevHash string, e *Entry) string {
	reasons := e.Reasons
	if reasons == nil {
		reasons = []string{}
	}

	canonical := canonicalEntry{
		Version:        canonicalVersion,
		TenantID:       e.TenantID,
		SequenceNo:     e.SequenceNo,
		ActorID:        e.ActorID,
		Action:         e.Action,
		TargetType:     e.TargetType,
		TargetID:       e.TargetID,
		Outcome:        string(e.Outcome),
		BeforeState:    e.BeforeState,
		AfterState:     e.AfterState,
		BeforeSnapshot: e.BeforeSnapshot,
		AfterSnapshot:  e.AfterSnapshot,
		Reasons:        reasons,
		Timestamp:      CanonicalTime(e.Timestamp),
	}

	// Field-order-deterministic struct marshal cannot fail.
	raw, _ := json.Marshal(canonical)

	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write([]byte("\n"))
	h.Write(raw)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify walks entries in order, recomputing every link from stored fields.
// Entries must belong to one tenant and be ordered by sequence number. The
// first entry anchors on its stored PrevHash (Seed when SequenceNo is 1), so
// partial ranges verify too. Any edit, deletion, or reordering is reported
// as ErrChainIntegrity at the first broken link.
func Verify(entries []*Entry) error {
	if len(entries) == 0 {
		return nil
	}

	if entries[0].SequenceNo == 1 && entries[0].PrevHash != Seed {
		return fmt.Errorf("%w: entry 1 prev hash is not the chain seed", ErrChainIntegrity)
	}

	prevHash := entries[0].PrevHash
	prevSeq := entries[0].SequenceNo - 1

	for _, e := range entries {
		if e.SequenceNo != prevSeq+1 {
			return fmt.Errorf("%w: sequence gap between %d and %d", ErrChainIntegrity, prevSeq, e.SequenceNo)
		}
		if e.PrevHash != prevHash {
			return fmt.Errorf("%w: entry %d prev hash mismatch", ErrChainIntegrity, e.SequenceNo)
		}
		if computed := ComputeHash(e.PrevHash, e); computed != e.EntryHash {
			return fmt.Errorf("%w: entry %d hash mismatch", ErrChainIntegrity, e.SequenceNo)
		}
		prevHash = e.EntryHash
		prevSeq = e.SequenceNo
	}

	return nil
}
