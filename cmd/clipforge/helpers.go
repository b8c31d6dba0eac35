package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"clipforge/internal/artifact"
	"clipforge/internal/config"
	"clipforge/internal/ledger"
	"clipforge/internal/logging"
	"clipforge/internal/pipeline"
)

// claimStaleAfter mirrors the daemon's heartbeat lease: a claimed run whose
// heartbeat is older than this is considered orphaned and claimable again.
const claimStaleAfter = 5 * time.Minute

func newOrchestrator(cfg *config.Config, store *ledger.Store, artifacts *artifact.Store, logger *slog.Logger) *pipeline.Orchestrator {
	stages := pipeline.DefaultStages(cfg, artifacts, nil, logger)
	return pipeline.NewOrchestrator(cfg, store, artifacts, logger, stages...)
}

// newCommandLogger builds a logger for foreground commands. Pipeline output
// goes to the log file; the terminal stays reserved for command output.
func newCommandLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      "json",
		OutputPaths: []string{filepath.Join(cfg.Paths.LogDir, "clipforge.log")},
	})
}

// processRun claims and executes queued work until the target run reaches a
// terminal state. Other queued runs claimed along the way are processed too.
func processRun(ctx context.Context, store *ledger.Store, orch *pipeline.Orchestrator, runID string) (*ledger.Run, error) {
	for {
		run, err := store.GetRun(ctx, runID)
		if err != nil {
			return nil, err
		}
		if run == nil {
			return nil, fmt.Errorf("run %s not found", runID)
		}
		if run.Status.IsTerminal() {
			return run, nil
		}

		claimed, stage, err := store.ClaimNext(ctx, claimStaleAfter)
		if err != nil {
			return nil, err
		}
		if claimed == nil {
			return run, fmt.Errorf("run %s is %s but not claimable; another process may hold it", runID, run.Status)
		}
		if err := orch.Execute(ctx, claimed, stage); err != nil {
			return nil, err
		}
	}
}

// resolveRunID accepts a full run id or an unambiguous prefix.
func resolveRunID(ctx context.Context, store *ledger.Store, arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", fmt.Errorf("run id is required")
	}

	run, err := store.GetRun(ctx, arg)
	if err != nil {
		return "", err
	}
	if run != nil {
		return run.ID, nil
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		return "", err
	}
	var matches []string
	for _, candidate := range runs {
		if strings.HasPrefix(candidate.ID, arg) {
			matches = append(matches, candidate.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no run matches %q", arg)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("run id prefix %q is ambiguous (%d matches)", arg, len(matches))
	}
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func formatWhen(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatProgress(run *ledger.Run) string {
	if run.Status.IsTerminal() {
		return ""
	}
	if run.ProgressStage == "" {
		return ""
	}
	return fmt.Sprintf("%s %.0f%%", run.ProgressStage, run.ProgressPercent)
}

func sourceLabel(ref string) string {
	trimmed := strings.TrimPrefix(ref, "file://")
	if base := filepath.Base(trimmed); base != "." && base != string(filepath.Separator) {
		return base
	}
	return trimmed
}
