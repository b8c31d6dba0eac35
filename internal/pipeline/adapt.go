package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/opencontainers/go-digest"

	"clipforge/internal/adaptation"
	"clipforge/internal/artifact"
	"clipforge/internal/ledger"
	"clipforge/internal/media"
)

// AdaptStage renders the edit plan into the vertical output clip and
// fingerprints the rendered file.
type AdaptStage struct {
	adapter   *adaptation.Adapter
	prober    media.Prober
	artifacts *artifact.Store
}

func NewAdaptStage(adapter *adaptation.Adapter, prober media.Prober, artifacts *artifact.Store) *AdaptStage {
	return &AdaptStage{adapter: adapter, prober: prober, artifacts: artifacts}
}

func (s *AdaptStage) Name() ledger.Stage { return ledger.StageAdapt }

func (s *AdaptStage) Run(ctx context.Context, state *State) (Result, error) {
	clipPath := filepath.Join(state.WorkDir, "clip.mp4")
	if _, err := s.adapter.Adapt(ctx, state.SourcePath, clipPath, state.Descriptor, state.Plan); err != nil {
		return Result{}, err
	}

	dgst, _, err := s.artifacts.PutFile(clipPath)
	if err != nil {
		return Result{}, fmt.Errorf("store clip artifact: %w", err)
	}

	clipDesc, err := s.prober.Probe(ctx, clipPath)
	if err != nil {
		return Result{}, err
	}

	state.ClipPath = clipPath
	state.ClipDescriptor = clipDesc
	state.ClipFingerprint = dgst

	return Result{
		Inputs:       []digest.Digest{state.SourceFingerprint, state.PlanFingerprint},
		Output:       dgst,
		ModelVersion: "render/1",
	}, nil
}
