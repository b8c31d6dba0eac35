package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/opencontainers/go-digest"

	"clipforge/internal/artifact"
	"clipforge/internal/config"
	"clipforge/internal/ledger"
	"clipforge/internal/logging"
	"clipforge/internal/services"
)

const heartbeatInterval = 30 * time.Second

// Orchestrator drives a claimed run through its remaining stages in order.
// Every stage boundary is persisted: a ledger entry pair around the stage and
// a durable run status after it, so an interrupted run resumes at the last
// completed stage instead of starting over.
type Orchestrator struct {
	cfg       *config.Config
	store     *ledger.Store
	artifacts *artifact.Store
	stages    map[ledger.Stage]Stage
	logger    *slog.Logger
}

func NewOrchestrator(cfg *config.Config, store *ledger.Store, artifacts *artifact.Store, logger *slog.Logger, stages ...Stage) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	byName := make(map[ledger.Stage]Stage, len(stages))
	for _, stage := range stages {
		byName[stage.Name()] = stage
	}
	return &Orchestrator{
		cfg:       cfg,
		store:     store,
		artifacts: artifacts,
		stages:    byName,
		logger:    logger,
	}
}

// Execute runs a claimed run from the given stage through publication. The
// run must already hold a processing status and a live heartbeat. Stage
// failures are classified: retriable errors retry with exponential backoff up
// to the attempt budget, permanent errors fail the run, integrity errors fail
// it immediately, and exhausted retries abandon it. A nil return means the
// run reached a terminal or durable state; the error return is reserved for
// shutdown and storage problems.
func (o *Orchestrator) Execute(ctx context.Context, run *ledger.Run, claimed ledger.Stage) error {
	state := &State{
		Run:     run,
		WorkDir: filepath.Join(o.cfg.Paths.DataDir, "work", run.ID),
	}
	if err := os.MkdirAll(state.WorkDir, 0o755); err != nil {
		return fmt.Errorf("create work directory: %w", err)
	}

	logger := o.logger.With(logging.String(logging.FieldRunID, run.ID))

	start, err := o.restoreState(ctx, state, claimed)
	if err != nil {
		return err
	}
	if start != claimed {
		logger.Warn("recorded stage output no longer verifies, rewinding",
			logging.String(logging.FieldStage, string(start)))
	}

	order := ledger.StageOrder()
	startIdx := stagePosition(start)

	for i := startIdx; i < len(order); i++ {
		if err := ctx.Err(); err != nil {
			return o.release(run, err)
		}

		stageName := order[i]
		stage, ok := o.stages[stageName]
		if !ok {
			o.failRun(run, fmt.Sprintf("no handler for stage %s", stageName))
			return o.persistRun(run)
		}

		run.Status = ledger.ProcessingStatus(stageName)
		run.SetProgress(string(stageName), string(stageName)+" started", float64(i)/float64(len(order))*100)
		now := time.Now().UTC()
		run.LastHeartbeat = &now
		if err := o.persistRun(run); err != nil {
			return err
		}

		if err := o.executeStage(ctx, logger, state, stage); err != nil {
			if ctx.Err() != nil {
				return o.release(run, ctx.Err())
			}
			return err
		}
		if run.Status.IsTerminal() {
			return o.persistRun(run)
		}

		run.Status = ledger.DoneStatus(stageName)
		run.SetProgress(string(stageName), string(stageName)+" completed", float64(i+1)/float64(len(order))*100)
		now = time.Now().UTC()
		run.LastHeartbeat = &now
		if run.Status == ledger.StatusPublished {
			run.LastHeartbeat = nil
		}
		if err := o.persistRun(run); err != nil {
			return err
		}
	}

	if run.Status == ledger.StatusPublished {
		_ = os.RemoveAll(state.WorkDir)
	}
	return nil
}

// executeStage runs one stage with per-attempt ledger entries, a stage
// timeout, and retry with exponential backoff for retriable failures. On
// permanent failure it marks the run failed or abandoned in place.
func (o *Orchestrator) executeStage(ctx context.Context, logger *slog.Logger, state *State, stage Stage) error {
	run := state.Run
	name := stage.Name()
	maxAttempts := o.cfg.Workflow.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	inputs := fingerprintStrings(expectedInputs(name, state))
	stageLogger := logger.With(logging.String(logging.FieldStage, string(name)))

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		started := time.Now().UTC()
		if err := o.store.Append(ctx, &ledger.Entry{
			RunID:             run.ID,
			Stage:             name,
			Attempt:           attempt,
			Outcome:           ledger.OutcomeStarted,
			InputFingerprints: inputs,
			StartedAt:         started,
		}); err != nil {
			return fmt.Errorf("append start entry: %w", err)
		}
		stageLogger.Info("stage started",
			logging.String(logging.FieldEventType, "stage_start"),
			logging.Int(logging.FieldAttempt, attempt))

		result, runErr := o.runAttempt(ctx, state, stage)
		finished := time.Now().UTC()

		if runErr == nil {
			if err := o.store.Append(ctx, &ledger.Entry{
				RunID:             run.ID,
				Stage:             name,
				Attempt:           attempt,
				Outcome:           ledger.OutcomeSucceeded,
				InputFingerprints: fingerprintStrings(result.Inputs),
				OutputFingerprint: result.Output.String(),
				ModelVersion:      result.ModelVersion,
				StartedAt:         started,
				FinishedAt:        &finished,
			}); err != nil {
				return fmt.Errorf("append success entry: %w", err)
			}
			stageLogger.Info("stage completed",
				logging.String(logging.FieldEventType, "stage_complete"),
				logging.String(logging.FieldFingerprint, result.Output.String()),
				logging.Duration("stage_duration", finished.Sub(started)))
			return nil
		}

		if appendErr := o.store.Append(ctx, &ledger.Entry{
			RunID:             run.ID,
			Stage:             name,
			Attempt:           attempt,
			Outcome:           ledger.OutcomeFailed,
			InputFingerprints: inputs,
			ErrorMessage:      runErr.Error(),
			StartedAt:         started,
			FinishedAt:        &finished,
		}); appendErr != nil {
			return fmt.Errorf("append failure entry: %w", appendErr)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if services.Fatal(runErr) {
			stageLogger.Error("integrity failure", logging.Error(runErr))
			o.failRun(run, services.Message(runErr))
			return nil
		}
		if !services.Retriable(runErr) {
			stageLogger.Error("stage failed permanently", logging.Error(runErr))
			o.failRun(run, services.Message(runErr))
			return nil
		}
		if attempt == maxAttempts {
			stageLogger.Error("retries exhausted, abandoning run",
				logging.Error(runErr),
				logging.Int(logging.FieldAttempt, attempt))
			run.Status = ledger.StatusAbandoned
			run.ErrorMessage = services.Message(runErr)
			run.LastHeartbeat = nil
			return nil
		}

		delay := retryDelay(o.cfg.Workflow, attempt)
		stageLogger.Warn("stage failed, retrying",
			logging.Error(runErr),
			logging.Int(logging.FieldAttempt, attempt),
			logging.Duration("retry_in", delay))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil
}

// runAttempt executes the stage under its timeout while a background loop
// keeps the run's claim heartbeat fresh.
func (o *Orchestrator) runAttempt(ctx context.Context, state *State, stage Stage) (Result, error) {
	name := stage.Name()
	stageCtx := services.WithRunID(ctx, state.Run.ID)
	stageCtx = services.WithStage(stageCtx, string(name))
	if timeout := time.Duration(o.cfg.Workflow.StageTimeoutSeconds) * time.Second; timeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(stageCtx, timeout)
		defer cancel()
	}

	hbCtx, hbCancel := context.WithCancel(ctx)
	hbDone := make(chan struct{})
	go func() {
		defer close(hbDone)
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				_ = o.store.Heartbeat(hbCtx, state.Run.ID)
			}
		}
	}()

	result, err := stage.Run(stageCtx, state)
	hbCancel()
	<-hbDone

	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		err = services.Wrap(services.ErrTimeout, string(name), "execute", "stage timed out", err)
	}
	return result, err
}

// release rolls the run back to its last durable boundary so another worker
// can pick it up after shutdown.
func (o *Orchestrator) release(run *ledger.Run, cause error) error {
	if rollback, ok := ledger.Rollback(run.Status); ok {
		run.Status = rollback
	}
	run.LastHeartbeat = nil
	if err := o.persistRun(run); err != nil {
		return err
	}
	return cause
}

func (o *Orchestrator) failRun(run *ledger.Run, message string) {
	run.SetFailed(message)
}

// persistRun writes run changes outside the request context so shutdown does
// not lose the final status transition.
func (o *Orchestrator) persistRun(run *ledger.Run) error {
	persistCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.store.UpdateRun(persistCtx, run); err != nil {
		return fmt.Errorf("persist run %s: %w", run.ID, err)
	}
	return nil
}

// expectedInputs mirrors what each stage will report as consumed
// fingerprints, for the start-of-stage ledger entry.
func expectedInputs(stage ledger.Stage, state *State) []digest.Digest {
	switch stage {
	case ledger.StageAnalyze:
		return []digest.Digest{state.SourceFingerprint}
	case ledger.StageEdit:
		return []digest.Digest{state.SegmentsFingerprint}
	case ledger.StageAdapt:
		return []digest.Digest{state.SourceFingerprint, state.PlanFingerprint}
	case ledger.StageOptimize:
		return []digest.Digest{state.ClipFingerprint, state.PlanFingerprint}
	case ledger.StagePublish:
		return []digest.Digest{state.ClipFingerprint, state.MetadataFingerprint}
	}
	return nil
}

func fingerprintStrings(digests []digest.Digest) []string {
	if len(digests) == 0 {
		return nil
	}
	out := make([]string, 0, len(digests))
	for _, d := range digests {
		if d != "" {
			out = append(out, d.String())
		}
	}
	return out
}

func retryDelay(cfg config.Workflow, attempt int) time.Duration {
	initial := time.Duration(cfg.RetryInitialSeconds) * time.Second
	if initial <= 0 {
		initial = time.Second
	}
	max := time.Duration(cfg.RetryMaxSeconds) * time.Second
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if max > 0 && delay >= max {
			return max
		}
	}
	if max > 0 && delay > max {
		return max
	}
	return delay
}

func stagePosition(stage ledger.Stage) int {
	for i, s := range ledger.StageOrder() {
		if s == stage {
			return i
		}
	}
	return 0
}
