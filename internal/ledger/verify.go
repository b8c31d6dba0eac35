package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"

	"clipforge/internal/artifact"
	"clipforge/internal/logging"
	"clipforge/internal/services"
)

const verifyWorkers = 4

// MismatchReason classifies why a recorded fingerprint failed verification.
type MismatchReason string

const (
	ReasonHashMismatch    MismatchReason = "hash_mismatch"
	ReasonArtifactMissing MismatchReason = "artifact_missing"
)

// Mismatch is a recorded fingerprint whose artifact no longer verifies.
type Mismatch struct {
	Stage       Stage          `json:"stage"`
	Fingerprint string         `json:"fingerprint"`
	Reason      MismatchReason `json:"reason"`
}

// Gap is a break in the provenance chain: a completed stage without a
// succeeded entry, or an entry that does not reference its predecessor's
// output.
type Gap struct {
	Stage  Stage  `json:"stage"`
	Reason string `json:"reason"`
}

// Report is the result of verifying one run's provenance.
type Report struct {
	RunID      string     `json:"run_id"`
	VerifiedAt time.Time  `json:"verified_at"`
	Checked    int        `json:"checked"`
	Mismatches []Mismatch `json:"mismatches,omitempty"`
	Gaps       []Gap      `json:"gaps,omitempty"`
}

// Clean reports whether every fingerprint verified and the chain is unbroken.
func (r Report) Clean() bool {
	return len(r.Mismatches) == 0 && len(r.Gaps) == 0
}

// Verifier rehashes a run's recorded artifacts against the ledger.
type Verifier struct {
	store     *Store
	artifacts *artifact.Store
	logger    *slog.Logger
}

func NewVerifier(store *Store, artifacts *artifact.Store, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Verifier{store: store, artifacts: artifacts, logger: logger}
}

// Verify checks every succeeded ledger entry of a run: each recorded output
// fingerprint is rehashed against its stored artifact, and the stage chain is
// checked for gaps. The ledger itself is never modified.
func (v *Verifier) Verify(ctx context.Context, runID string) (Report, error) {
	run, err := v.store.GetRun(ctx, runID)
	if err != nil {
		return Report{}, err
	}
	if run == nil {
		return Report{}, services.Wrap(services.ErrNotFound, "verify", "run", "run not found", nil)
	}

	entries, err := v.store.EntriesForRun(ctx, runID)
	if err != nil {
		return Report{}, err
	}

	report := Report{RunID: runID, VerifiedAt: time.Now().UTC()}

	latest := make(map[Stage]*Entry)
	for _, entry := range entries {
		if entry.Outcome == OutcomeSucceeded {
			latest[entry.Stage] = entry
		}
	}

	report.Gaps = chainGaps(latest)

	type check struct {
		stage       Stage
		fingerprint string
	}
	var checks []check
	seen := make(map[string]struct{})
	for _, stage := range stageOrder {
		entry, ok := latest[stage]
		if !ok || entry.OutputFingerprint == "" {
			continue
		}
		if _, dup := seen[entry.OutputFingerprint]; dup {
			continue
		}
		seen[entry.OutputFingerprint] = struct{}{}
		checks = append(checks, check{stage: stage, fingerprint: entry.OutputFingerprint})
	}
	report.Checked = len(checks)

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(verifyWorkers)
	for _, c := range checks {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			dgst, err := digest.Parse(c.fingerprint)
			if err != nil {
				mu.Lock()
				report.Mismatches = append(report.Mismatches, Mismatch{
					Stage: c.stage, Fingerprint: c.fingerprint, Reason: ReasonHashMismatch,
				})
				mu.Unlock()
				return nil
			}
			verifyErr := v.artifacts.Verify(dgst)
			if verifyErr == nil {
				return nil
			}
			reason := ReasonHashMismatch
			if errors.Is(verifyErr, artifact.ErrNotFound) {
				reason = ReasonArtifactMissing
			}
			mu.Lock()
			report.Mismatches = append(report.Mismatches, Mismatch{
				Stage: c.stage, Fingerprint: c.fingerprint, Reason: reason,
			})
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return Report{}, err
	}

	sort.Slice(report.Mismatches, func(i, j int) bool {
		return stageIndex(report.Mismatches[i].Stage) < stageIndex(report.Mismatches[j].Stage)
	})

	v.logger.Info("run verified",
		logging.String(logging.FieldRunID, runID),
		logging.Int("checked", report.Checked),
		logging.Int("mismatches", len(report.Mismatches)),
		logging.Int("gaps", len(report.Gaps)))
	return report, nil
}

// chainGaps inspects the succeeded entries against stage order: every stage
// before the furthest completed one must have succeeded, and each stage's
// inputs must reference its predecessor's output fingerprint.
func chainGaps(latest map[Stage]*Entry) []Gap {
	last := -1
	for i, stage := range stageOrder {
		if _, ok := latest[stage]; ok {
			last = i
		}
	}

	var gaps []Gap
	for i := 0; i <= last; i++ {
		stage := stageOrder[i]
		entry, ok := latest[stage]
		if !ok {
			gaps = append(gaps, Gap{Stage: stage, Reason: "stage has no succeeded entry"})
			continue
		}
		if i == 0 {
			continue
		}
		prev, ok := latest[stageOrder[i-1]]
		if !ok || prev.OutputFingerprint == "" {
			continue
		}
		if !containsFingerprint(entry.InputFingerprints, prev.OutputFingerprint) {
			gaps = append(gaps, Gap{Stage: stage, Reason: "inputs do not reference previous stage output"})
		}
	}
	return gaps
}

func containsFingerprint(fingerprints []string, want string) bool {
	for _, fp := range fingerprints {
		if fp == want {
			return true
		}
	}
	return false
}

func stageIndex(stage Stage) int {
	for i, s := range stageOrder {
		if s == stage {
			return i
		}
	}
	return len(stageOrder)
}
