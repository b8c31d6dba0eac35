package analysis

import (
	"context"

	"clipforge/internal/media"
)

// Detector finds candidate segment boundaries in a source file. Detectors are
// pluggable: the analyzer merges the output of every configured detector and
// fails the run when none of them produces a boundary.
type Detector interface {
	Name() string
	Boundaries(ctx context.Context, input string, desc media.Descriptor) ([]float64, error)
}

// CutSource provides scene-change timestamps. *media.FFmpeg satisfies it.
type CutSource interface {
	SceneCuts(ctx context.Context, input string, threshold float64) ([]float64, error)
}

// SilenceSource provides silent audio spans. *media.FFmpeg satisfies it.
type SilenceSource interface {
	SilenceWindows(ctx context.Context, input string, noiseDB, minSeconds float64) ([][2]float64, error)
}

// SceneDetector emits a boundary at each detected scene change.
type SceneDetector struct {
	Source    CutSource
	Threshold float64
}

func (d *SceneDetector) Name() string { return "scene" }

func (d *SceneDetector) Boundaries(ctx context.Context, input string, _ media.Descriptor) ([]float64, error) {
	return d.Source.SceneCuts(ctx, input, d.Threshold)
}

// SilenceDetector emits a boundary at the midpoint of each silent span,
// approximating speech boundaries.
type SilenceDetector struct {
	Source     SilenceSource
	NoiseDB    float64
	MinSeconds float64
}

func (d *SilenceDetector) Name() string { return "silence" }

func (d *SilenceDetector) Boundaries(ctx context.Context, input string, _ media.Descriptor) ([]float64, error) {
	windows, err := d.Source.SilenceWindows(ctx, input, d.NoiseDB, d.MinSeconds)
	if err != nil {
		return nil, err
	}
	boundaries := make([]float64, 0, len(windows))
	for _, window := range windows {
		boundaries = append(boundaries, (window[0]+window[1])/2)
	}
	return boundaries, nil
}
