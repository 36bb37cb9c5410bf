package audit

import "time"

// Outcome labels what an audit entry records: a committed transition or a
// rejected attempt. Rejections stay in the log so every attempt is
// forensically visible.
type Outcome string

const (
	OutcomeCommitted          Outcome = "COMMITTED"
	OutcomeIllegalAction      Outcome = "ILLEGAL_ACTION"
	OutcomeGovernanceBlocked  Outcome = "GOVERNANCE_BLOCKED"
	OutcomeEvidenceMissing    Outcome = "EVIDENCE_MISSING"
	OutcomeWorkflowTerminated Outcome = "WORKFLOW_TERMINATED"
)

// Entry is one record of the per-tenant hash chain. EntryHash covers the
// canonical serialization of every field except EntryHash itself,
// concatenated with PrevHash, so any retroactive edit breaks verification.
type Entry struct {
	ID             int64     `json:"id"`
	TenantID       string    `json:"tenant_id"`
	SequenceNo     int64     `json:"sequence_no"`
	ActorID        string    `json:"actor_id"`
	Action         string    `json:"action"`
	TargetType     string    `json:"target_type"`
	TargetID       string    `json:"target_id"`
	Outcome        Outcome   `json:"outcome"`
	BeforeState    string    `json:"before_state"`
	AfterState     string    `json:"after_state"`
	BeforeSnapshot string    `json:"before_snapshot"`
	AfterSnapshot  string    `json:"after_snapshot"`
	Reasons        []string  `json:"reasons"`
	Timestamp      time.Time `json:"timestamp"`
	PrevHash       string    `json:"prev_hash"`
	EntryHash      string    `json:"entry_hash"`
}
