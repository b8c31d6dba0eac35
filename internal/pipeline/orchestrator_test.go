package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"clipforge/internal/config"
	"clipforge/internal/ledger"
	"clipforge/internal/services"
	"clipforge/internal/testsupport"
)

type fakeStage struct {
	name ledger.Stage
	fn   func(ctx context.Context, state *State) (Result, error)
}

func (s *fakeStage) Name() ledger.Stage { return s.name }

func (s *fakeStage) Run(ctx context.Context, state *State) (Result, error) {
	return s.fn(ctx, state)
}

type failureHarness struct {
	cfg   *config.Config
	store *ledger.Store
}

func newFailureHarness(t *testing.T, stage Stage, opts ...testsupport.ConfigOption) (*failureHarness, *Orchestrator) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	artifacts := testsupport.MustOpenArtifacts(t, cfg)
	orch := NewOrchestrator(cfg, store, artifacts, nil, stage)
	return &failureHarness{cfg: cfg, store: store}, orch
}

func (h *failureHarness) claimNew(t *testing.T) (*ledger.Run, ledger.Stage) {
	t.Helper()
	ctx := context.Background()
	if _, err := h.store.NewRun(ctx, "file:///tmp/source.mkv"); err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	run, stage, err := h.store.ClaimNext(ctx, time.Hour)
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if run == nil {
		t.Fatal("expected a claimable run")
	}
	return run, stage
}

func TestExecuteAbandonsAfterExhaustedRetries(t *testing.T) {
	attempts := 0
	stage := &fakeStage{name: ledger.StageAcquire, fn: func(context.Context, *State) (Result, error) {
		attempts++
		return Result{}, services.Wrap(services.ErrTransient, "acquisition", "fetch", "upstream flake", nil)
	}}
	h, orch := newFailureHarness(t, stage, testsupport.WithMaxAttempts(2))

	run, claimed := h.claimNew(t)
	if err := orch.Execute(context.Background(), run, claimed); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
	final, err := h.store.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if final.Status != ledger.StatusAbandoned {
		t.Fatalf("expected abandoned, got %s", final.Status)
	}
	if final.ErrorMessage == "" {
		t.Fatal("expected error message on abandoned run")
	}

	entries, err := h.store.EntriesForRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("EntriesForRun: %v", err)
	}
	var started, failed int
	for _, entry := range entries {
		switch entry.Outcome {
		case ledger.OutcomeStarted:
			started++
		case ledger.OutcomeFailed:
			failed++
		}
	}
	if started != 2 || failed != 2 {
		t.Fatalf("expected 2 started and 2 failed entries, got %d/%d", started, failed)
	}
}

func TestExecuteFailsImmediatelyOnValidationError(t *testing.T) {
	attempts := 0
	stage := &fakeStage{name: ledger.StageAcquire, fn: func(context.Context, *State) (Result, error) {
		attempts++
		return Result{}, services.Wrap(services.ErrValidation, "acquisition", "fetch", "empty source reference", nil)
	}}
	h, orch := newFailureHarness(t, stage, testsupport.WithMaxAttempts(3))

	run, claimed := h.claimNew(t)
	if err := orch.Execute(context.Background(), run, claimed); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if attempts != 1 {
		t.Fatalf("validation errors must not retry, got %d attempts", attempts)
	}
	final, err := h.store.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if final.Status != ledger.StatusFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if final.ErrorMessage != "empty source reference" {
		t.Fatalf("unexpected error message %q", final.ErrorMessage)
	}
}

func TestExecuteFailsImmediatelyOnIntegrityError(t *testing.T) {
	attempts := 0
	stage := &fakeStage{name: ledger.StageAcquire, fn: func(context.Context, *State) (Result, error) {
		attempts++
		return Result{}, services.Wrap(services.ErrIntegrity, "acquisition", "fetch", "fingerprint mismatch", nil)
	}}
	h, orch := newFailureHarness(t, stage, testsupport.WithMaxAttempts(3))

	run, claimed := h.claimNew(t)
	if err := orch.Execute(context.Background(), run, claimed); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if attempts != 1 {
		t.Fatalf("integrity errors must not retry, got %d attempts", attempts)
	}
	final, err := h.store.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if final.Status != ledger.StatusFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
}

func TestExecuteReleasesRunOnCancellation(t *testing.T) {
	stage := &fakeStage{name: ledger.StageAcquire, fn: func(ctx context.Context, _ *State) (Result, error) {
		<-ctx.Done()
		return Result{}, ctx.Err()
	}}
	h, orch := newFailureHarness(t, stage)

	run, claimed := h.claimNew(t)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	if err := orch.Execute(ctx, run, claimed); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	final, err := h.store.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if final.Status != ledger.StatusPending {
		t.Fatalf("expected run released to pending, got %s", final.Status)
	}
	if final.LastHeartbeat != nil {
		t.Fatal("expected heartbeat cleared on release")
	}

	reclaimed, _, err := h.store.ClaimNext(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("ClaimNext after release: %v", err)
	}
	if reclaimed == nil || reclaimed.ID != run.ID {
		t.Fatal("expected released run to be claimable again")
	}
}

func TestExecuteClassifiesStageTimeout(t *testing.T) {
	stage := &fakeStage{name: ledger.StageAcquire, fn: func(ctx context.Context, _ *State) (Result, error) {
		<-ctx.Done()
		return Result{}, ctx.Err()
	}}
	h, orch := newFailureHarness(t, stage,
		testsupport.WithMaxAttempts(1),
		func(cfg *config.Config) { cfg.Workflow.StageTimeoutSeconds = 1 },
	)

	run, claimed := h.claimNew(t)
	if err := orch.Execute(context.Background(), run, claimed); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	final, err := h.store.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if final.Status != ledger.StatusAbandoned {
		t.Fatalf("expected timeout to exhaust the attempt budget, got %s", final.Status)
	}
	if final.ErrorMessage != "stage timed out" {
		t.Fatalf("unexpected error message %q", final.ErrorMessage)
	}
}

func TestRetryDelayBacksOffAndCaps(t *testing.T) {
	cfg := config.Workflow{RetryInitialSeconds: 2, RetryMaxSeconds: 10}
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second},
		{8, 10 * time.Second},
	}
	for _, tc := range cases {
		if got := retryDelay(cfg, tc.attempt); got != tc.want {
			t.Fatalf("attempt %d: got %v, want %v", tc.attempt, got, tc.want)
		}
	}
}
