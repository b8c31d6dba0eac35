package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opencontainers/go-digest"

	"clipforge/internal/artifact"
	"clipforge/internal/ledger"
	"clipforge/internal/publication"
)

// PublishStage runs the platform preflight, hands the clip off for delivery,
// and persists the receipt as the run's final artifact.
type PublishStage struct {
	publisher *publication.Publisher
	artifacts *artifact.Store
}

func NewPublishStage(publisher *publication.Publisher, artifacts *artifact.Store) *PublishStage {
	return &PublishStage{publisher: publisher, artifacts: artifacts}
}

func (s *PublishStage) Name() ledger.Stage { return ledger.StagePublish }

func (s *PublishStage) Run(ctx context.Context, state *State) (Result, error) {
	receipt, err := s.publisher.Publish(ctx, state.ClipPath, state.ClipDescriptor, state.Metadata)
	if err != nil {
		return Result{}, err
	}

	payload, err := json.Marshal(receipt)
	if err != nil {
		return Result{}, fmt.Errorf("marshal receipt: %w", err)
	}
	dgst, _, err := s.artifacts.PutBytes(payload)
	if err != nil {
		return Result{}, fmt.Errorf("store receipt artifact: %w", err)
	}

	state.Receipt = receipt
	state.ReceiptFingerprint = dgst
	state.Run.PlatformID = receipt.PlatformID

	return Result{
		Inputs:       []digest.Digest{state.ClipFingerprint, state.MetadataFingerprint},
		Output:       dgst,
		ModelVersion: "",
	}, nil
}
