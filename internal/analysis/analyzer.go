package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"

	"clipforge/internal/config"
	"clipforge/internal/logging"
	"clipforge/internal/media"
	"clipforge/internal/services"
)

// Analyzer splits a source into candidate segments at detected content
// boundaries and scores each one with the configured model.
type Analyzer struct {
	detectors   []Detector
	scorer      Scorer
	weights     config.Weights
	minSegment  float64
	maxSegment  float64
	minCoverage float64
	workers     int
	logger      *slog.Logger
}

// NewAnalyzer constructs an analyzer from configuration and collaborators.
func NewAnalyzer(cfg config.Analysis, detectors []Detector, scorer Scorer, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		detectors:   detectors,
		scorer:      scorer,
		weights:     cfg.Weights,
		minSegment:  cfg.MinSegmentSeconds,
		maxSegment:  cfg.MaxSegmentSeconds,
		minCoverage: cfg.MinCoverage,
		workers:     cfg.ScoringWorkers,
		logger:      logging.NewComponentLogger(logger, "analysis"),
	}
}

// ModelVersion reports the scoring model version for ledger entries.
func (a *Analyzer) ModelVersion() string {
	if a.scorer == nil {
		return ""
	}
	return a.scorer.Version()
}

// Analyze produces the ordered, non-overlapping segment list for a source.
// Every segment references the source artifact fingerprint. A source that no
// detector can find boundaries in fails the run; there is no synthetic
// default segmentation.
func (a *Analyzer) Analyze(ctx context.Context, input string, desc media.Descriptor, source digest.Digest) ([]Segment, error) {
	logger := logging.WithContext(ctx, a.logger)

	if desc.DurationSeconds <= 0 {
		return nil, services.Wrap(services.ErrValidation, "analysis", "inspect source", "source has no measurable duration", nil)
	}
	if len(a.detectors) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "analysis", "configure detectors", "no boundary detectors configured", nil)
	}

	boundaries, err := a.collectBoundaries(ctx, input, desc)
	if err != nil {
		return nil, err
	}
	if len(boundaries) == 0 {
		return nil, services.Wrap(services.ErrValidation, "analysis", "detect boundaries", "no detector produced segment boundaries", nil)
	}

	intervals := buildIntervals(boundaries, desc.DurationSeconds, a.minSegment, a.maxSegment)
	if len(intervals) == 0 {
		return nil, services.Wrap(services.ErrValidation, "analysis", "build segments", "no candidate segments satisfy the length policy", nil)
	}

	covered := 0.0
	for _, iv := range intervals {
		covered += iv[1] - iv[0]
	}
	coverage := covered / desc.DurationSeconds
	if coverage < a.minCoverage {
		return nil, services.Wrap(services.ErrValidation, "analysis", "check coverage",
			fmt.Sprintf("segments cover %.0f%% of source, policy requires %.0f%%", coverage*100, a.minCoverage*100), nil)
	}

	segments, err := a.scoreIntervals(ctx, input, source, intervals)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].StartSeconds < segments[j].StartSeconds
	})

	logger.Info("analysis complete",
		logging.Int("segments", len(segments)),
		logging.Float64("coverage", coverage),
		logging.String("model_version", a.ModelVersion()),
	)
	return segments, nil
}

func (a *Analyzer) collectBoundaries(ctx context.Context, input string, desc media.Descriptor) ([]float64, error) {
	logger := logging.WithContext(ctx, a.logger)
	var merged []float64
	for _, detector := range a.detectors {
		points, err := detector.Boundaries(ctx, input, desc)
		if err != nil {
			return nil, err
		}
		logger.Debug("detector finished",
			logging.String("detector", detector.Name()),
			logging.Int("boundaries", len(points)),
		)
		merged = append(merged, points...)
	}
	return merged, nil
}

func (a *Analyzer) scoreIntervals(ctx context.Context, input string, source digest.Digest, intervals [][2]float64) ([]Segment, error) {
	segments := make([]Segment, len(intervals))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(a.workers)
	for i, interval := range intervals {
		group.Go(func() error {
			features, err := a.scorer.Score(groupCtx, input, interval[0], interval[1])
			if err != nil {
				return err
			}
			segments[i] = Segment{
				StartSeconds: interval[0],
				EndSeconds:   interval[1],
				Score:        a.importance(features),
				Features:     features,
				Source:       source,
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return segments, nil
}

// importance is the weighted feature combination, normalized to [0,1].
func (a *Analyzer) importance(features FeatureVector) float64 {
	w := a.weights
	total := w.Motion + w.SpeechDensity + w.AudioEnergy + w.FaceProminence
	if total <= 0 {
		return 0
	}
	score := (features.Motion*w.Motion +
		features.SpeechDensity*w.SpeechDensity +
		features.AudioEnergy*w.AudioEnergy +
		features.FaceProminence*w.FaceProminence) / total
	return clamp01(score)
}

// buildIntervals tiles [0, duration] at the merged boundary points, then
// enforces the segment length policy: spans shorter than minLen merge into
// their successor, spans longer than maxLen split into equal chunks.
func buildIntervals(boundaries []float64, duration, minLen, maxLen float64) [][2]float64 {
	points := make([]float64, 0, len(boundaries)+2)
	points = append(points, 0)
	for _, b := range boundaries {
		if b > 0 && b < duration {
			points = append(points, b)
		}
	}
	points = append(points, duration)
	sort.Float64s(points)

	deduped := points[:1]
	for _, p := range points[1:] {
		if p-deduped[len(deduped)-1] > 1e-9 {
			deduped = append(deduped, p)
		}
	}

	var intervals [][2]float64
	start := deduped[0]
	for i := 1; i < len(deduped); i++ {
		end := deduped[i]
		if end-start < minLen && i < len(deduped)-1 {
			continue // fold the short span into the next interval
		}
		intervals = append(intervals, [2]float64{start, end})
		start = end
	}

	// A trailing interval below the minimum merges backwards.
	if n := len(intervals); n >= 2 && intervals[n-1][1]-intervals[n-1][0] < minLen {
		intervals[n-2][1] = intervals[n-1][1]
		intervals = intervals[:n-1]
	}
	if len(intervals) == 1 && intervals[0][1]-intervals[0][0] < minLen {
		return nil
	}

	var sized [][2]float64
	for _, iv := range intervals {
		length := iv[1] - iv[0]
		if length <= maxLen {
			sized = append(sized, iv)
			continue
		}
		chunks := int(math.Ceil(length / maxLen))
		chunkLen := length / float64(chunks)
		for c := 0; c < chunks; c++ {
			lo := iv[0] + float64(c)*chunkLen
			hi := lo + chunkLen
			if c == chunks-1 {
				hi = iv[1]
			}
			sized = append(sized, [2]float64{lo, hi})
		}
	}
	return sized
}
