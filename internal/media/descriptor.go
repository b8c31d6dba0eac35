package media

// Descriptor summarizes the media properties of an artifact. It travels with
// the artifact fingerprint through the pipeline and is persisted on the run
// so resume does not need to re-probe.
type Descriptor struct {
	DurationSeconds float64  `json:"duration_seconds"`
	Width           int      `json:"width"`
	Height          int      `json:"height"`
	Codec           string   `json:"codec"`
	FrameRate       float64  `json:"frame_rate,omitempty"`
	SizeBytes       int64    `json:"size_bytes,omitempty"`
	Title           string   `json:"title,omitempty"`
	Description     string   `json:"description,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
}

// Rect is a pixel region within a frame, used as a crop anchor.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the midpoint of the region.
func (r Rect) Center() (int, int) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Empty reports whether the region carries no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}
