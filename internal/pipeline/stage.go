package pipeline

import (
	"context"

	"github.com/opencontainers/go-digest"

	"clipforge/internal/analysis"
	"clipforge/internal/editing"
	"clipforge/internal/ledger"
	"clipforge/internal/media"
	"clipforge/internal/optimization"
	"clipforge/internal/publication"
)

// Result is what a stage reports back for its ledger entry: the fingerprints
// it consumed, the fingerprint of the artifact it produced, and the version
// of the model or strategy that produced it.
type Result struct {
	Inputs       []digest.Digest
	Output       digest.Digest
	ModelVersion string
}

// Stage is one step of the pipeline. Run reads its inputs from State, stores
// its output as a content-addressed artifact, and records the produced
// fingerprints back on State for downstream stages.
type Stage interface {
	Name() ledger.Stage
	Run(ctx context.Context, state *State) (Result, error)
}

// State carries one run's working data between stages. Every stage output is
// also persisted as an artifact, so State can be rebuilt from the ledger when
// a run resumes.
type State struct {
	Run     *ledger.Run
	WorkDir string

	Descriptor        media.Descriptor
	SourcePath        string
	SourceFingerprint digest.Digest

	Segments            []analysis.Segment
	SegmentsFingerprint digest.Digest

	Plan            editing.Plan
	PlanFingerprint digest.Digest

	ClipPath        string
	ClipDescriptor  media.Descriptor
	ClipFingerprint digest.Digest

	Metadata            optimization.MetadataRecord
	MetadataFingerprint digest.Digest

	Receipt            publication.Receipt
	ReceiptFingerprint digest.Digest
}
