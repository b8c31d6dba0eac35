package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/opencontainers/go-digest"

	"clipforge/internal/ledger"
)

// Restorer is implemented by stages that can rehydrate their recorded output
// into State when a run resumes. A stage whose restore fails simply runs
// again.
type Restorer interface {
	Restore(ctx context.Context, state *State, output digest.Digest) error
}

// restoreState rebuilds State for a resuming run: every stage before the
// claimed one is skipped when its recorded output fingerprint still verifies
// against the artifact store. The returned stage is where execution must
// start, which is earlier than claimed when a recorded output is missing,
// tampered with, or cannot be rehydrated.
func (o *Orchestrator) restoreState(ctx context.Context, state *State, claimed ledger.Stage) (ledger.Stage, error) {
	order := ledger.StageOrder()
	target := stagePosition(claimed)

	for i := 0; i < target; i++ {
		stageName := order[i]
		entry, err := o.store.LatestSuccess(ctx, state.Run.ID, stageName)
		if err != nil {
			return "", err
		}
		if entry == nil || entry.OutputFingerprint == "" {
			return stageName, nil
		}
		dgst, err := digest.Parse(entry.OutputFingerprint)
		if err != nil {
			return stageName, nil
		}
		if err := o.artifacts.Verify(dgst); err != nil {
			return stageName, nil
		}
		restorer, ok := o.stages[stageName].(Restorer)
		if !ok {
			return stageName, nil
		}
		if err := restorer.Restore(ctx, state, dgst); err != nil {
			return stageName, nil
		}
	}
	return claimed, nil
}

func (s *AcquireStage) Restore(ctx context.Context, state *State, output digest.Digest) error {
	sourcePath := filepath.Join(state.WorkDir, "source"+sourceExt(state.Run.SourceRef))
	if err := s.artifacts.Materialize(output, sourcePath); err != nil {
		return err
	}
	if state.Run.DescriptorJSON == "" {
		return fmt.Errorf("run %s has no recorded descriptor", state.Run.ID)
	}
	if err := json.Unmarshal([]byte(state.Run.DescriptorJSON), &state.Descriptor); err != nil {
		return fmt.Errorf("unmarshal descriptor: %w", err)
	}
	state.SourcePath = sourcePath
	state.SourceFingerprint = output
	return nil
}

func (s *AnalyzeStage) Restore(_ context.Context, state *State, output digest.Digest) error {
	payload, err := s.artifacts.ReadBytes(output)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, &state.Segments); err != nil {
		return fmt.Errorf("unmarshal segments: %w", err)
	}
	state.SegmentsFingerprint = output
	return nil
}

func (s *EditStage) Restore(_ context.Context, state *State, output digest.Digest) error {
	payload, err := s.artifacts.ReadBytes(output)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, &state.Plan); err != nil {
		return fmt.Errorf("unmarshal plan: %w", err)
	}
	state.PlanFingerprint = output
	return nil
}

func (s *AdaptStage) Restore(ctx context.Context, state *State, output digest.Digest) error {
	clipPath := filepath.Join(state.WorkDir, "clip.mp4")
	if err := s.artifacts.Materialize(output, clipPath); err != nil {
		return err
	}
	clipDesc, err := s.prober.Probe(ctx, clipPath)
	if err != nil {
		return err
	}
	state.ClipPath = clipPath
	state.ClipDescriptor = clipDesc
	state.ClipFingerprint = output
	return nil
}

func (s *OptimizeStage) Restore(_ context.Context, state *State, output digest.Digest) error {
	payload, err := s.artifacts.ReadBytes(output)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, &state.Metadata); err != nil {
		return fmt.Errorf("unmarshal metadata: %w", err)
	}
	state.MetadataFingerprint = output
	return nil
}
