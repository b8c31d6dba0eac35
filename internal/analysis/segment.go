package analysis

import (
	"github.com/opencontainers/go-digest"

	"clipforge/internal/media"
)

// FeatureVector carries the normalized per-feature measurements behind a
// segment's importance score. All feature values live in [0,1].
type FeatureVector struct {
	Motion         float64     `json:"motion"`
	SpeechDensity  float64     `json:"speech_density"`
	AudioEnergy    float64     `json:"audio_energy"`
	FaceProminence float64     `json:"face_prominence"`
	Region         *media.Rect `json:"region,omitempty"`
}

// Segment is a scored time interval of the source video. Segments are
// immutable after creation; re-analysis produces a new list.
type Segment struct {
	StartSeconds float64       `json:"start_seconds"`
	EndSeconds   float64       `json:"end_seconds"`
	Score        float64       `json:"score"`
	Features     FeatureVector `json:"features"`
	Source       digest.Digest `json:"source"`
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.EndSeconds - s.StartSeconds
}

// Overlaps reports whether two segments share any time span.
func (s Segment) Overlaps(other Segment) bool {
	return s.StartSeconds < other.EndSeconds && other.StartSeconds < s.EndSeconds
}
