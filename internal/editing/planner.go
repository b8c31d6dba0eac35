package editing

import (
	"log/slog"
	"math"
	"sort"
	"strings"

	"clipforge/internal/analysis"
	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/services"
)

// Source-adjacency tolerance when deciding whether two planned segments need
// a transition between them.
const adjacencyEpsilon = 1e-3

// Planner turns scored segments into an ordered edit plan that fits the
// configured duration budget.
type Planner struct {
	cfg    config.Editing
	logger *slog.Logger
}

func NewPlanner(cfg config.Editing, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Planner{cfg: cfg, logger: logger}
}

// Build selects, trims, and orders segments into a Plan. The plan's total
// duration never exceeds the target by more than one rounding unit.
//
// Selection keeps taking segments, highest importance first, until their raw
// duration reaches target * overselect_factor. If the raw total still exceeds
// the target the selected windows are trimmed proportionally, each keeping a
// centered interior slice of its segment.
func (p *Planner) Build(segments []analysis.Segment) (Plan, error) {
	if len(segments) == 0 {
		return Plan{}, services.Wrap(services.ErrValidation, "edit", "build", "no segments to plan", nil)
	}
	for _, seg := range segments {
		if seg.Duration() <= 0 {
			return Plan{}, services.Wrap(services.ErrValidation, "edit", "build", "segment has non-positive duration", nil)
		}
	}

	candidates := make([]analysis.Segment, len(segments))
	copy(candidates, segments)
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].StartSeconds < candidates[j].StartSeconds
	})

	budget := p.cfg.TargetDurationSeconds * p.cfg.OverselectFactor

	var selected []analysis.Segment
	switch strings.ToLower(p.cfg.Selection) {
	case "knapsack":
		selected = selectKnapsack(candidates, budget, p.cfg.RoundingUnitSeconds)
	default:
		selected = selectGreedy(candidates, budget)
	}
	if len(selected) == 0 {
		// Every candidate alone exceeds the overselection budget; keep the
		// best one and let the trim pass cut it down.
		selected = candidates[:1]
	}

	planned := p.trimToTarget(selected)
	p.order(planned)
	p.assignTransitions(planned)

	plan := Plan{
		Segments:              planned,
		TargetDurationSeconds: p.cfg.TargetDurationSeconds,
		Selection:             strings.ToLower(p.cfg.Selection),
		Ordering:              strings.ToLower(p.cfg.Ordering),
	}
	p.logger.Debug("edit plan built",
		logging.Int("candidates", len(segments)),
		logging.Int("selected", len(plan.Segments)),
		logging.Float64("total_seconds", plan.TotalDuration()))
	return plan, nil
}

// selectGreedy walks candidates in importance order and keeps every segment
// that still fits the overselection budget. The top candidate is always kept
// so a single oversized segment still produces a plan.
func selectGreedy(candidates []analysis.Segment, budget float64) []analysis.Segment {
	var selected []analysis.Segment
	var total float64
	for i, seg := range candidates {
		d := seg.Duration()
		if i > 0 && total+d > budget+adjacencyEpsilon {
			continue
		}
		selected = append(selected, seg)
		total += d
	}
	return selected
}

// selectKnapsack maximizes summed importance under the overselection budget
// using 0/1 dynamic programming over durations discretized by the rounding
// unit. Ties favor the earlier-starting candidate because candidates arrive
// pre-sorted and the DP prefers not taking later items on equal value.
func selectKnapsack(candidates []analysis.Segment, budget, unit float64) []analysis.Segment {
	capacity := int(math.Floor(budget/unit + adjacencyEpsilon))
	if capacity <= 0 {
		return nil
	}
	weights := make([]int, len(candidates))
	for i, seg := range candidates {
		weights[i] = int(math.Ceil(seg.Duration()/unit - adjacencyEpsilon))
		if weights[i] < 1 {
			weights[i] = 1
		}
	}

	// value[w] is the best achievable score at weight w; take[i][w] records
	// whether item i was used to reach it.
	value := make([]float64, capacity+1)
	take := make([][]bool, len(candidates))
	for i := range candidates {
		take[i] = make([]bool, capacity+1)
		for w := capacity; w >= weights[i]; w-- {
			candidate := value[w-weights[i]] + candidates[i].Score
			if candidate > value[w] {
				value[w] = candidate
				take[i][w] = true
			}
		}
	}

	best := 0
	for w := 1; w <= capacity; w++ {
		if value[w] > value[best] {
			best = w
		}
	}

	var selected []analysis.Segment
	w := best
	for i := len(candidates) - 1; i >= 0; i-- {
		if take[i][w] {
			selected = append(selected, candidates[i])
			w -= weights[i]
		}
	}
	// Reconstruction walks items backwards; restore importance order.
	sort.SliceStable(selected, func(i, j int) bool {
		if selected[i].Score != selected[j].Score {
			return selected[i].Score > selected[j].Score
		}
		return selected[i].StartSeconds < selected[j].StartSeconds
	})
	return selected
}

// trimToTarget converts selected segments into planned windows whose total
// duration fits the target. When the raw total exceeds the target every
// window shrinks proportionally to a centered slice of its segment; windows
// that would shrink below one rounding unit are dropped lowest-score first.
func (p *Planner) trimToTarget(selected []analysis.Segment) []PlannedSegment {
	target := p.cfg.TargetDurationSeconds
	unit := p.cfg.RoundingUnitSeconds

	kept := make([]analysis.Segment, len(selected))
	copy(kept, selected)

	for {
		var total float64
		for _, seg := range kept {
			total += seg.Duration()
		}
		if total <= target+adjacencyEpsilon || len(kept) == 1 {
			break
		}
		shortest := math.MaxFloat64
		for _, seg := range kept {
			if share := target * seg.Duration() / total; share < shortest {
				shortest = share
			}
		}
		if shortest >= unit {
			break
		}
		// kept is importance-ordered, so the last entry scores lowest.
		kept = kept[:len(kept)-1]
	}

	var total float64
	for _, seg := range kept {
		total += seg.Duration()
	}

	planned := make([]PlannedSegment, 0, len(kept))
	for _, seg := range kept {
		start, end := seg.StartSeconds, seg.EndSeconds
		if total > target+adjacencyEpsilon {
			share := target * seg.Duration() / total
			mid := (start + end) / 2
			start = mid - share/2
			end = mid + share/2
		}
		planned = append(planned, PlannedSegment{
			Segment:      seg,
			StartSeconds: start,
			EndSeconds:   end,
		})
	}
	return planned
}

func (p *Planner) order(planned []PlannedSegment) {
	switch strings.ToLower(p.cfg.Ordering) {
	case "importance":
		// Already in importance order from selection.
	default:
		sort.SliceStable(planned, func(i, j int) bool {
			return planned[i].StartSeconds < planned[j].StartSeconds
		})
	}
}

// assignTransitions marks every junction between segments that are not
// adjacent in the source. Contiguous source material keeps a hard cut.
func (p *Planner) assignTransitions(planned []PlannedSegment) {
	if p.cfg.TransitionSeconds <= 0 || p.cfg.TransitionType == "" {
		return
	}
	for i := 1; i < len(planned); i++ {
		gap := planned[i].StartSeconds - planned[i-1].EndSeconds
		if math.Abs(gap) <= adjacencyEpsilon {
			continue
		}
		planned[i].Transition = &Transition{
			Type:            p.cfg.TransitionType,
			DurationSeconds: p.cfg.TransitionSeconds,
		}
	}
}
