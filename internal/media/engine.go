package media

import "context"

// Clip is one rendered span of the source, with its crop window and an
// optional fade-in used to realize a transition from the previous clip.
type Clip struct {
	StartSeconds float64
	EndSeconds   float64
	Crop         Rect
	FadeSeconds  float64
}

// RenderSpec describes a deterministic render: trim, crop, scale, and
// concatenate the clips in order. Identical specs must produce identical
// output bytes, so implementations pin every encoder setting.
type RenderSpec struct {
	Input  string
	Output string
	Clips  []Clip
	Width  int
	Height int
	CRF    int
	Preset string
}

// Engine is the transcode/decode capability the pipeline consumes. The core
// treats it as a pure function of its inputs.
type Engine interface {
	Prober
	Render(ctx context.Context, spec RenderSpec) error
	ExtractFrame(ctx context.Context, input string, atSeconds float64, output string) error
}

// ClipStats carries the per-clip signal measurements the scoring model
// derives features from.
type ClipStats struct {
	MotionLevel  float64 // mean luma frame difference, 0..~50
	RMSLevelDB   float64 // overall audio RMS in dBFS
	SpeechRatio  float64 // fraction of the clip with non-silent audio
	FrameSamples int
}
