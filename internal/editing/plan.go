package editing

import (
	"clipforge/internal/analysis"
)

// Transition describes how one planned segment joins the next. A nil
// transition on a PlannedSegment means a hard cut.
type Transition struct {
	Type            string  `json:"type"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// PlannedSegment is one entry of an edit plan. Start and End are the window
// actually rendered, which may be narrower than the underlying segment when
// the plan was trimmed to fit the duration budget.
type PlannedSegment struct {
	Segment      analysis.Segment `json:"segment"`
	StartSeconds float64          `json:"start_seconds"`
	EndSeconds   float64          `json:"end_seconds"`
	Transition   *Transition      `json:"transition,omitempty"`
}

// Duration returns the rendered length of the planned segment in seconds.
func (p PlannedSegment) Duration() float64 {
	return p.EndSeconds - p.StartSeconds
}

// Plan is the ordered output of the editing stage.
type Plan struct {
	Segments              []PlannedSegment `json:"segments"`
	TargetDurationSeconds float64          `json:"target_duration_seconds"`
	Selection             string           `json:"selection"`
	Ordering              string           `json:"ordering"`
}

// TotalDuration returns the summed rendered duration of all planned segments.
func (p Plan) TotalDuration() float64 {
	var total float64
	for _, seg := range p.Segments {
		total += seg.Duration()
	}
	return total
}
