package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"clipforge/internal/artifact"
	"clipforge/internal/ledger"
	"clipforge/internal/testsupport"
)

func passthroughStages(artifacts *artifact.Store) []Stage {
	stages := make([]Stage, 0, len(ledger.StageOrder()))
	for _, name := range ledger.StageOrder() {
		stageName := name
		stages = append(stages, &fakeStage{name: stageName, fn: func(_ context.Context, state *State) (Result, error) {
			dgst, _, err := artifacts.PutBytes([]byte(state.Run.ID + "/" + string(stageName)))
			if err != nil {
				return Result{}, err
			}
			return Result{Output: dgst, ModelVersion: "stub/1"}, nil
		}})
	}
	return stages
}

func TestManagerProcessesQueuedRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(2))
	store := testsupport.MustOpenStore(t, cfg)
	artifacts := testsupport.MustOpenArtifacts(t, cfg)

	orch := NewOrchestrator(cfg, store, artifacts, nil, passthroughStages(artifacts)...)
	manager := NewManager(cfg, store, orch, nil)

	ctx := context.Background()
	ids := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		run, err := store.NewRun(ctx, fmt.Sprintf("file:///tmp/source-%d.mkv", i))
		if err != nil {
			t.Fatalf("NewRun: %v", err)
		}
		ids = append(ids, run.ID)
	}

	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer manager.Stop()

	deadline := time.Now().Add(15 * time.Second)
	for {
		counts, err := store.StatusCounts(ctx)
		if err != nil {
			t.Fatalf("StatusCounts: %v", err)
		}
		if counts[ledger.StatusPublished] == len(ids) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("runs never finished, status counts: %v", counts)
		}
		time.Sleep(100 * time.Millisecond)
	}

	for _, id := range ids {
		run, err := store.GetRun(ctx, id)
		if err != nil {
			t.Fatalf("GetRun: %v", err)
		}
		if run.Status != ledger.StatusPublished {
			t.Fatalf("run %s: expected published, got %s", id, run.Status)
		}
		if run.LastHeartbeat != nil {
			t.Fatalf("run %s: expected heartbeat cleared after publication", id)
		}
	}
}

func TestManagerStartTwiceFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	artifacts := testsupport.MustOpenArtifacts(t, cfg)

	manager := NewManager(cfg, store, NewOrchestrator(cfg, store, artifacts, nil), nil)
	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer manager.Stop()

	if err := manager.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail while running")
	}
}

func TestManagerStopRequeuesInterruptedRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(1))
	store := testsupport.MustOpenStore(t, cfg)
	artifacts := testsupport.MustOpenArtifacts(t, cfg)

	blocked := make(chan struct{})
	stage := &fakeStage{name: ledger.StageAcquire, fn: func(ctx context.Context, _ *State) (Result, error) {
		close(blocked)
		<-ctx.Done()
		return Result{}, ctx.Err()
	}}
	orch := NewOrchestrator(cfg, store, artifacts, nil, stage)
	manager := NewManager(cfg, store, orch, nil)

	ctx := context.Background()
	run, err := store.NewRun(ctx, "file:///tmp/source.mkv")
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}

	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	select {
	case <-blocked:
	case <-time.After(10 * time.Second):
		t.Fatal("worker never claimed the run")
	}
	manager.Stop()

	final, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if final.Status != ledger.StatusPending {
		t.Fatalf("expected interrupted run back at pending, got %s", final.Status)
	}
	if final.LastHeartbeat != nil {
		t.Fatal("expected heartbeat cleared after shutdown requeue")
	}
}
