package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opencontainers/go-digest"

	"clipforge/internal/artifact"
	"clipforge/internal/editing"
	"clipforge/internal/ledger"
)

// EditStage turns scored segments into an edit plan and persists the plan as
// a JSON artifact.
type EditStage struct {
	planner   *editing.Planner
	artifacts *artifact.Store
}

func NewEditStage(planner *editing.Planner, artifacts *artifact.Store) *EditStage {
	return &EditStage{planner: planner, artifacts: artifacts}
}

func (s *EditStage) Name() ledger.Stage { return ledger.StageEdit }

func (s *EditStage) Run(ctx context.Context, state *State) (Result, error) {
	plan, err := s.planner.Build(state.Segments)
	if err != nil {
		return Result{}, err
	}

	payload, err := json.Marshal(plan)
	if err != nil {
		return Result{}, fmt.Errorf("marshal plan: %w", err)
	}
	dgst, _, err := s.artifacts.PutBytes(payload)
	if err != nil {
		return Result{}, fmt.Errorf("store plan artifact: %w", err)
	}

	state.Plan = plan
	state.PlanFingerprint = dgst

	return Result{
		Inputs:       []digest.Digest{state.SegmentsFingerprint},
		Output:       dgst,
		ModelVersion: "plan/" + plan.Selection,
	}, nil
}
