package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opencontainers/go-digest"

	"clipforge/internal/artifact"
	"clipforge/internal/ledger"
	"clipforge/internal/optimization"
)

// OptimizeStage generates platform metadata for the rendered clip and
// persists it as a JSON artifact.
type OptimizeStage struct {
	optimizer *optimization.Optimizer
	artifacts *artifact.Store
}

func NewOptimizeStage(optimizer *optimization.Optimizer, artifacts *artifact.Store) *OptimizeStage {
	return &OptimizeStage{optimizer: optimizer, artifacts: artifacts}
}

func (s *OptimizeStage) Name() ledger.Stage { return ledger.StageOptimize }

func (s *OptimizeStage) Run(ctx context.Context, state *State) (Result, error) {
	record, err := s.optimizer.Optimize(state.Descriptor, state.Plan, state.ClipFingerprint)
	if err != nil {
		return Result{}, err
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return Result{}, fmt.Errorf("marshal metadata: %w", err)
	}
	dgst, _, err := s.artifacts.PutBytes(payload)
	if err != nil {
		return Result{}, fmt.Errorf("store metadata artifact: %w", err)
	}

	state.Metadata = record
	state.MetadataFingerprint = dgst

	return Result{
		Inputs:       []digest.Digest{state.ClipFingerprint, state.PlanFingerprint},
		Output:       dgst,
		ModelVersion: s.optimizer.ModelVersion(),
	}, nil
}
