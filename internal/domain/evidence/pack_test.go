package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func refHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func approvalArtifacts() []Artifact {
	return []Artifact{
		{Kind: "approval", ContentRef: "s3://evidence/approval-cfo.pdf", SHA256: refHash("approval-cfo")},
		{Kind: "approval", ContentRef: "s3://evidence/approval-controller.pdf", SHA256: refHash("approval-controller")},
		{Kind: "reconciliation", ContentRef: "s3://evidence/recon-2026-02.xlsx", SHA256: refHash("recon")},
	}
}

func TestBuildPack_EmptyArtifacts(t *testing.T) {
	_, err := BuildPack("acme:close-1:in_progress->closed:2", nil, time.Now())
	assert.True(t, errors.Is(err, ErrNoArtifacts))
}

func TestBuildPack_EmptyTransitionID(t *testing.T) {
	_, err := BuildPack("", approvalArtifacts(), time.Now())
	assert.True(t, errors.Is(err, ErrEmptyTransitionID))
}

func TestBuildPack_DeterministicUnderPermutation(t *testing.T) {
	now := time.Date(2026, 2, 28, 18, 0, 0, 0, time.UTC)
	artifacts := approvalArtifacts()

	reference, err := BuildPack("t-1", artifacts, now)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := make([]Artifact, len(artifacts))
		copy(shuffled, artifacts)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		pack, err := BuildPack("t-1", shuffled, now)
		require.NoError(t, err)
		assert.Equal(t, reference.MerkleRoot, pack.MerkleRoot, "permutation %d changed the root", i)
		assert.Equal(t, reference.PackDigest, pack.PackDigest, "permutation %d changed the digest", i)
	}
}

func TestBuildPack_ComputesMissingHashes(t *testing.T) {
	artifacts := []Artifact{
		{Kind: "approval", ContentRef: "s3://evidence/approval.pdf"},
	}

	pack, err := BuildPack("t-1", artifacts, time.Now())
	require.NoError(t, err)
	assert.Equal(t, refHash("s3://evidence/approval.pdf"), pack.Artifacts[0].SHA256)
}

func TestBuildPack_DoesNotMutateInput(t *testing.T) {
	artifacts := []Artifact{
		{Kind: "b", ContentRef: "ref-b"},
		{Kind: "a", ContentRef: "ref-a"},
	}

	_, err := BuildPack("t-1", artifacts, time.Now())
	require.NoError(t, err)

	assert.Equal(t, "b", artifacts[0].Kind, "caller slice order must not change")
	assert.Empty(t, artifacts[0].SHA256, "caller artifacts must not gain hashes")
}

func TestBuildPack_SingleArtifact(t *testing.T) {
	artifacts := approvalArtifacts()[:1]

	pack, err := BuildPack("t-1", artifacts, time.Now())
	require.NoError(t, err)

	// A single leaf is its own root.
	assert.Equal(t, artifacts[0].SHA256, pack.MerkleRoot)
}

func TestBuildPack_OddCountPromotesUnpaired(t *testing.T) {
	artifacts := approvalArtifacts() // three leaves

	pack, err := BuildPack("t-1", artifacts, time.Now())
	require.NoError(t, err)

	// Manually: leaves sorted by (kind, sha256), first two paired, third
	// promoted, then paired with the first-level hash.
	sorted := make([]Artifact, len(artifacts))
	copy(sorted, artifacts)
	sortArtifacts(sorted)

	pair := refHash(sorted[0].SHA256 + sorted[1].SHA256)
	want := refHash(pair + sorted[2].SHA256)
	assert.Equal(t, want, pack.MerkleRoot)
}

func TestPackDigest_BindsTransitionIdentity(t *testing.T) {
	now := time.Date(2026, 2, 28, 18, 0, 0, 0, time.UTC)
	artifacts := approvalArtifacts()

	a, err := BuildPack("t-1", artifacts, now)
	require.NoError(t, err)
	b, err := BuildPack("t-2", artifacts, now)
	require.NoError(t, err)

	assert.Equal(t, a.MerkleRoot, b.MerkleRoot, "same artifact set, same root")
	assert.NotEqual(t, a.PackDigest, b.PackDigest, "different transitions must yield different digests")
}

func TestVerify_MatchingArtifacts(t *testing.T) {
	artifacts := approvalArtifacts()

	pack, err := BuildPack("t-1", artifacts, time.Now())
	require.NoError(t, err)

	assert.True(t, Verify(pack, artifacts))

	// Any input order verifies.
	reversed := []Artifact{artifacts[2], artifacts[1], artifacts[0]}
	assert.True(t, Verify(pack, reversed))
}

func TestVerify_RejectsTamperedArtifacts(t *testing.T) {
	artifacts := approvalArtifacts()

	pack, err := BuildPack("t-1", artifacts, time.Now())
	require.NoError(t, err)

	tampered := make([]Artifact, len(artifacts))
	copy(tampered, artifacts)
	tampered[0].SHA256 = refHash("forged")
	assert.False(t, Verify(pack, tampered))

	missing := artifacts[:2]
	assert.False(t, Verify(pack, missing))

	extra := append(append([]Artifact{}, artifacts...), Artifact{Kind: "approval", ContentRef: "x", SHA256: refHash("x")})
	assert.False(t, Verify(pack, extra))
}

func TestVerify_RejectsTamperedDigest(t *testing.T) {
	artifacts := approvalArtifacts()

	pack, err := BuildPack("t-1", artifacts, time.Now())
	require.NoError(t, err)

	pack.TransitionID = "t-other"
	assert.False(t, Verify(pack, artifacts), "digest must no longer match after transition id edit")
}

func TestVerify_NilAndEmpty(t *testing.T) {
	artifacts := approvalArtifacts()
	pack, err := BuildPack("t-1", artifacts, time.Now())
	require.NoError(t, err)

	assert.False(t, Verify(nil, artifacts))
	assert.False(t, Verify(pack, nil))
}
