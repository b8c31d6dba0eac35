package ledger

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/opencontainers/go-digest"

	"clipforge/internal/artifact"
	"clipforge/internal/services"
)

func mustParse(t *testing.T, fingerprint string) digest.Digest {
	t.Helper()
	dgst, err := digest.Parse(fingerprint)
	if err != nil {
		t.Fatalf("parse digest: %v", err)
	}
	return dgst
}

func openTestArtifacts(t *testing.T) *artifact.Store {
	t.Helper()
	store, err := artifact.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("artifact store: %v", err)
	}
	return store
}

// seedRun records a two-stage provenance chain with real stored artifacts and
// returns the run id plus both fingerprints.
func seedRun(t *testing.T, store *Store, artifacts *artifact.Store) (string, string, string) {
	t.Helper()
	ctx := context.Background()

	run, err := store.NewRun(ctx, "file:///a.mkv")
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}

	sourceDigest, _, err := artifacts.PutBytes([]byte("raw source footage"))
	if err != nil {
		t.Fatalf("put source: %v", err)
	}
	segmentsDigest, _, err := artifacts.PutBytes([]byte(`[{"start":0,"end":30}]`))
	if err != nil {
		t.Fatalf("put segments: %v", err)
	}

	for _, entry := range []*Entry{
		{RunID: run.ID, Stage: StageAcquire, Attempt: 1, Outcome: OutcomeSucceeded,
			OutputFingerprint: sourceDigest.String()},
		{RunID: run.ID, Stage: StageAnalyze, Attempt: 1, Outcome: OutcomeSucceeded,
			InputFingerprints: []string{sourceDigest.String()},
			OutputFingerprint: segmentsDigest.String(), ModelVersion: "signal/1"},
	} {
		if err := store.Append(ctx, entry); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	return run.ID, sourceDigest.String(), segmentsDigest.String()
}

func TestVerifyCleanRun(t *testing.T) {
	store := openTestStore(t)
	artifacts := openTestArtifacts(t)
	runID, _, _ := seedRun(t, store, artifacts)

	report, err := NewVerifier(store, artifacts, nil).Verify(context.Background(), runID)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !report.Clean() {
		t.Fatalf("expected clean report, got %+v", report)
	}
	if report.Checked != 2 {
		t.Fatalf("expected 2 fingerprints checked, got %d", report.Checked)
	}
}

func TestVerifyDetectsTamperedArtifact(t *testing.T) {
	store := openTestStore(t)
	artifacts := openTestArtifacts(t)
	runID, sourceFP, _ := seedRun(t, store, artifacts)

	// Flip the stored payload behind the fingerprint's back.
	path := artifacts.Path(mustParse(t, sourceFP))
	if err := os.WriteFile(path, []byte("tampered bytes"), 0o644); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	report, err := NewVerifier(store, artifacts, nil).Verify(context.Background(), runID)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(report.Mismatches) != 1 {
		t.Fatalf("expected 1 mismatch, got %+v", report)
	}
	m := report.Mismatches[0]
	if m.Reason != ReasonHashMismatch || m.Stage != StageAcquire || m.Fingerprint != sourceFP {
		t.Fatalf("unexpected mismatch %+v", m)
	}
}

func TestVerifyDetectsMissingArtifact(t *testing.T) {
	store := openTestStore(t)
	artifacts := openTestArtifacts(t)
	runID, _, segmentsFP := seedRun(t, store, artifacts)

	if err := os.Remove(artifacts.Path(mustParse(t, segmentsFP))); err != nil {
		t.Fatalf("remove artifact: %v", err)
	}

	report, err := NewVerifier(store, artifacts, nil).Verify(context.Background(), runID)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(report.Mismatches) != 1 || report.Mismatches[0].Reason != ReasonArtifactMissing {
		t.Fatalf("expected artifact_missing, got %+v", report)
	}
}

func TestVerifyDetectsChainGaps(t *testing.T) {
	store := openTestStore(t)
	artifacts := openTestArtifacts(t)
	ctx := context.Background()

	run, err := store.NewRun(ctx, "file:///a.mkv")
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	segmentsDigest, _, err := artifacts.PutBytes([]byte("segments"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	// Analyze succeeded without any acquire entry and without referencing an
	// upstream fingerprint.
	if err := store.Append(ctx, &Entry{
		RunID: run.ID, Stage: StageAnalyze, Attempt: 1, Outcome: OutcomeSucceeded,
		OutputFingerprint: segmentsDigest.String(),
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	report, err := NewVerifier(store, artifacts, nil).Verify(ctx, run.ID)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(report.Gaps) != 1 || report.Gaps[0].Stage != StageAcquire {
		t.Fatalf("expected acquire gap, got %+v", report)
	}
}

func TestVerifyDetectsBrokenLinkage(t *testing.T) {
	store := openTestStore(t)
	artifacts := openTestArtifacts(t)
	ctx := context.Background()

	run, err := store.NewRun(ctx, "file:///a.mkv")
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	sourceDigest, _, err := artifacts.PutBytes([]byte("source"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	segmentsDigest, _, err := artifacts.PutBytes([]byte("segments"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	otherDigest, _, err := artifacts.PutBytes([]byte("unrelated"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	for _, entry := range []*Entry{
		{RunID: run.ID, Stage: StageAcquire, Attempt: 1, Outcome: OutcomeSucceeded,
			OutputFingerprint: sourceDigest.String()},
		{RunID: run.ID, Stage: StageAnalyze, Attempt: 1, Outcome: OutcomeSucceeded,
			InputFingerprints: []string{otherDigest.String()},
			OutputFingerprint: segmentsDigest.String()},
	} {
		if err := store.Append(ctx, entry); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	report, err := NewVerifier(store, artifacts, nil).Verify(ctx, run.ID)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(report.Gaps) != 1 || report.Gaps[0].Stage != StageAnalyze {
		t.Fatalf("expected analyze linkage gap, got %+v", report)
	}
}

func TestVerifyUnknownRun(t *testing.T) {
	store := openTestStore(t)
	artifacts := openTestArtifacts(t)

	_, err := NewVerifier(store, artifacts, nil).Verify(context.Background(), "no-such-run")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
