package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/opencontainers/go-digest"

	"clipforge/internal/artifact"
	"clipforge/internal/ledger"
	"clipforge/internal/media"
	"clipforge/internal/services"
)

// AcquireStage fetches the source media, fingerprints it into the artifact
// store, and materializes a working copy for the stages that shell out to
// external tools.
type AcquireStage struct {
	provider  media.SourceProvider
	artifacts *artifact.Store
}

func NewAcquireStage(provider media.SourceProvider, artifacts *artifact.Store) *AcquireStage {
	return &AcquireStage{provider: provider, artifacts: artifacts}
}

func (s *AcquireStage) Name() ledger.Stage { return ledger.StageAcquire }

func (s *AcquireStage) Run(ctx context.Context, state *State) (Result, error) {
	rc, desc, err := s.provider.Fetch(ctx, state.Run.SourceRef)
	if err != nil {
		return Result{}, err
	}
	defer rc.Close()

	dgst, size, err := s.artifacts.Put(rc)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, "acquire", "store", "store source artifact", err)
	}
	desc.SizeBytes = size

	sourcePath := filepath.Join(state.WorkDir, "source"+sourceExt(state.Run.SourceRef))
	if err := s.artifacts.Materialize(dgst, sourcePath); err != nil {
		return Result{}, services.Wrap(services.ErrTransient, "acquire", "materialize", "materialize working copy", err)
	}

	descriptorJSON, err := json.Marshal(desc)
	if err != nil {
		return Result{}, fmt.Errorf("marshal descriptor: %w", err)
	}

	state.Descriptor = desc
	state.SourcePath = sourcePath
	state.SourceFingerprint = dgst
	state.Run.DescriptorJSON = string(descriptorJSON)

	return Result{Output: dgst}, nil
}

func sourceExt(reference string) string {
	if ext := filepath.Ext(reference); ext != "" && len(ext) <= 8 {
		return ext
	}
	return ".bin"
}

// parseFingerprint converts a stored fingerprint string back into a digest.
func parseFingerprint(value string) (digest.Digest, error) {
	dgst, err := digest.Parse(value)
	if err != nil {
		return "", services.Wrap(services.ErrIntegrity, "pipeline", "fingerprint", "ledger holds malformed fingerprint "+value, err)
	}
	return dgst, nil
}
