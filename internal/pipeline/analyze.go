package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opencontainers/go-digest"

	"clipforge/internal/analysis"
	"clipforge/internal/artifact"
	"clipforge/internal/ledger"
)

// AnalyzeStage segments the source and scores each segment, persisting the
// scored segment list as a JSON artifact.
type AnalyzeStage struct {
	analyzer  *analysis.Analyzer
	artifacts *artifact.Store
}

func NewAnalyzeStage(analyzer *analysis.Analyzer, artifacts *artifact.Store) *AnalyzeStage {
	return &AnalyzeStage{analyzer: analyzer, artifacts: artifacts}
}

func (s *AnalyzeStage) Name() ledger.Stage { return ledger.StageAnalyze }

func (s *AnalyzeStage) Run(ctx context.Context, state *State) (Result, error) {
	segments, err := s.analyzer.Analyze(ctx, state.SourcePath, state.Descriptor, state.SourceFingerprint)
	if err != nil {
		return Result{}, err
	}

	payload, err := json.Marshal(segments)
	if err != nil {
		return Result{}, fmt.Errorf("marshal segments: %w", err)
	}
	dgst, _, err := s.artifacts.PutBytes(payload)
	if err != nil {
		return Result{}, fmt.Errorf("store segments artifact: %w", err)
	}

	state.Segments = segments
	state.SegmentsFingerprint = dgst

	return Result{
		Inputs:       []digest.Digest{state.SourceFingerprint},
		Output:       dgst,
		ModelVersion: s.analyzer.ModelVersion(),
	}, nil
}
