package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNoArtifacts is returned when a pack is requested for an empty artifact set
	ErrNoArtifacts = errors.New("evidence pack requires at least one artifact")

	// ErrEmptyTransitionID is returned when the pack has no transition identity to bind to
	ErrEmptyTransitionID = errors.New("evidence pack requires a transition id")
)

// Artifact references one piece of evidence. Large payloads live behind a
// content-addressed ContentRef; only the reference and its digest are hashed
// here, never the full content.
type Artifact struct {
	Kind       string `json:"kind"`
	ContentRef string `json:"content_ref"`
	SHA256     string `json:"sha256"`
}

// Pack is a cryptographically committed bundle of artifacts justifying a
// sensitive transition. MerkleRoot summarizes the artifact hashes;
// PackDigest binds the root to the transition identity and creation time so
// structurally identical packs for different transitions stay distinguishable.
type Pack struct {
	ID           string     `json:"id"`
	TransitionID string     `json:"transition_id"`
	Artifacts    []Artifact `json:"artifacts"`
	MerkleRoot   string     `json:"merkle_root"`
	PackDigest   string     `json:"pack_digest"`
	CreatedAt    time.Time  `json:"created_at"`
}

// BuildPack hashes and commits the artifact set for a transition. Artifacts
// missing a SHA256 get one computed over their content reference. Input order
// does not matter: artifacts are sorted by (kind, sha256) before the tree is
// built, so the same set always yields the same root.
func BuildPack(transitionID string, artifacts []Artifact, createdAt time.Time) (*Pack, error) {
	if transitionID == "" {
		return nil, ErrEmptyTransitionID
	}
	if len(artifacts) == 0 {
		return nil, ErrNoArtifacts
	}

	normalized := make([]Artifact, len(artifacts))
	copy(normalized, artifacts)
	for i := range normalized {
		if normalized[i].SHA256 == "" {
			normalized[i].SHA256 = hashString(normalized[i].ContentRef)
		}
	}

	sortArtifacts(normalized)

	root := merkleRoot(leafHashes(normalized))
	created := createdAt.UTC()

	return &Pack{
		ID:           uuid.NewString(),
		TransitionID: transitionID,
		Artifacts:    normalized,
		MerkleRoot:   root,
		PackDigest:   packDigest(root, transitionID, created),
		CreatedAt:    created,
	}, nil
}

// Verify recomputes the Merkle root and pack digest from the supplied
// artifacts and compares against the pack. It proves a pack matches a
// specific artifact set without trusting the storage layer.
func Verify(p *Pack, artifacts []Artifact) bool {
	if p == nil || len(artifacts) == 0 {
		return false
	}

	normalized := make([]Artifact, len(artifacts))
	copy(normalized, artifacts)
	for i := range normalized {
		if normalized[i].SHA256 == "" {
			normalized[i].SHA256 = hashString(normalized[i].ContentRef)
		}
	}
	sortArtifacts(normalized)

	root := merkleRoot(leafHashes(normalized))
	if root != p.MerkleRoot {
		return false
	}

	return packDigest(root, p.TransitionID, p.CreatedAt) == p.PackDigest
}

func sortArtifacts(artifacts []Artifact) {
	sort.Slice(artifacts, func(i, j int) bool {
		if artifacts[i].Kind != artifacts[j].Kind {
			return artifacts[i].Kind < artifacts[j].Kind
		}
		return artifacts[i].SHA256 < artifacts[j].SHA256
	})
}

func leafHashes(artifacts []Artifact) []string {
	hashes := make([]string, len(artifacts))
	for i, a := range artifacts {
		hashes[i] = a.SHA256
	}
	return hashes
}

// merkleRoot folds a level of hashes pairwise until one remains. An odd
// trailing hash is promoted unpaired rather than duplicated with itself,
// which closes a known Merkle forgery ambiguity.
func merkleRoot(level []string) string {
	if len(level) == 0 {
		return ""
	}

	for len(level) > 1 {
		next := make([]string, 0, (len(level)+1)/2)
		for i := 0; i+1 < len(level); i += 2 {
			next = append(next, hashString(level[i]+level[i+1]))
		}
		if len(level)%2 == 1 {
			next = append(next, level[len(level)-1])
		}
		level = next
	}

	return level[0]
}

func packDigest(root, transitionID string, createdAt time.Time) string {
	return hashString(fmt.Sprintf("%s|%s|%s", root, transitionID, createdAt.UTC().Format(time.RFC3339Nano)))
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
