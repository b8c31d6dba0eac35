package analysis

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/opencontainers/go-digest"

	"clipforge/internal/config"
	"clipforge/internal/media"
	"clipforge/internal/services"
)

type stubDetector struct {
	name   string
	points []float64
	err    error
}

func (d *stubDetector) Name() string { return d.name }

func (d *stubDetector) Boundaries(context.Context, string, media.Descriptor) ([]float64, error) {
	return d.points, d.err
}

type stubScorer struct {
	features func(start, end float64) FeatureVector
}

func (s *stubScorer) Version() string { return "stub/1" }

func (s *stubScorer) Score(_ context.Context, _ string, start, end float64) (FeatureVector, error) {
	if s.features != nil {
		return s.features(start, end), nil
	}
	return FeatureVector{Motion: 0.5, SpeechDensity: 0.5, AudioEnergy: 0.5}, nil
}

func analysisConfig() config.Analysis {
	return config.Analysis{
		MinSegmentSeconds: 2,
		MaxSegmentSeconds: 60,
		MinCoverage:       0.5,
		ScoringWorkers:    2,
		Weights:           config.Weights{Motion: 0.4, SpeechDensity: 0.3, AudioEnergy: 0.3},
	}
}

var testSource = digest.FromString("source artifact")

func TestAnalyzeProducesOrderedNonOverlappingSegments(t *testing.T) {
	detector := &stubDetector{name: "scene", points: []float64{90, 30, 60}}
	analyzer := NewAnalyzer(analysisConfig(), []Detector{detector}, &stubScorer{}, nil)

	segments, err := analyzer.Analyze(context.Background(), "in.mp4", media.Descriptor{DurationSeconds: 120}, testSource)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(segments) != 4 {
		t.Fatalf("expected 4 segments, got %d", len(segments))
	}
	for i := 1; i < len(segments); i++ {
		if segments[i].StartSeconds < segments[i-1].StartSeconds {
			t.Fatalf("segments out of order at %d", i)
		}
		if segments[i].Overlaps(segments[i-1]) {
			t.Fatalf("segments overlap at %d", i)
		}
	}
	if segments[0].Source != testSource {
		t.Fatalf("segment missing source fingerprint")
	}
	for _, segment := range segments {
		if segment.Score < 0 || segment.Score > 1 {
			t.Fatalf("score out of range: %v", segment.Score)
		}
	}
}

func TestAnalyzeNoBoundariesIsFatalValidation(t *testing.T) {
	detectors := []Detector{
		&stubDetector{name: "scene"},
		&stubDetector{name: "silence"},
	}
	analyzer := NewAnalyzer(analysisConfig(), detectors, &stubScorer{}, nil)

	_, err := analyzer.Analyze(context.Background(), "in.mp4", media.Descriptor{DurationSeconds: 120}, testSource)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAnalyzeDetectorFailurePropagates(t *testing.T) {
	boom := services.Wrap(services.ErrExternalTool, "analysis", "scene detection", "exit status 1", nil)
	detector := &stubDetector{name: "scene", err: boom}
	analyzer := NewAnalyzer(analysisConfig(), []Detector{detector}, &stubScorer{}, nil)

	_, err := analyzer.Analyze(context.Background(), "in.mp4", media.Descriptor{DurationSeconds: 120}, testSource)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestAnalyzeMergesDetectorBoundaries(t *testing.T) {
	scene := &stubDetector{name: "scene", points: []float64{40}}
	silence := &stubDetector{name: "silence", points: []float64{80}}
	analyzer := NewAnalyzer(analysisConfig(), []Detector{scene, silence}, &stubScorer{}, nil)

	segments, err := analyzer.Analyze(context.Background(), "in.mp4", media.Descriptor{DurationSeconds: 120}, testSource)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(segments) != 3 {
		t.Fatalf("expected 3 segments from merged boundaries, got %d", len(segments))
	}
}

func TestAnalyzeSplitsOversizedSpans(t *testing.T) {
	cfg := analysisConfig()
	cfg.MaxSegmentSeconds = 30
	detector := &stubDetector{name: "scene", points: []float64{100}}
	analyzer := NewAnalyzer(cfg, []Detector{detector}, &stubScorer{}, nil)

	segments, err := analyzer.Analyze(context.Background(), "in.mp4", media.Descriptor{DurationSeconds: 120}, testSource)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	for _, segment := range segments {
		if segment.Duration() > 30+1e-9 {
			t.Fatalf("segment exceeds max length: %v", segment.Duration())
		}
	}
	// Full tiling: coverage stays complete after splitting.
	var covered float64
	for _, segment := range segments {
		covered += segment.Duration()
	}
	if math.Abs(covered-120) > 1e-6 {
		t.Fatalf("expected full coverage, got %v", covered)
	}
}

func TestImportanceWeighting(t *testing.T) {
	cfg := analysisConfig()
	cfg.Weights = config.Weights{Motion: 1}
	scorer := &stubScorer{features: func(start, _ float64) FeatureVector {
		if start == 0 {
			return FeatureVector{Motion: 1}
		}
		return FeatureVector{Motion: 0.2}
	}}
	detector := &stubDetector{name: "scene", points: []float64{60}}
	analyzer := NewAnalyzer(cfg, []Detector{detector}, scorer, nil)

	segments, err := analyzer.Analyze(context.Background(), "in.mp4", media.Descriptor{DurationSeconds: 120}, testSource)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if segments[0].Score <= segments[1].Score {
		t.Fatalf("expected first segment to outscore second: %v vs %v", segments[0].Score, segments[1].Score)
	}
	if segments[0].Score != 1 {
		t.Fatalf("expected full score with single weight, got %v", segments[0].Score)
	}
}

func TestBuildIntervalsMergesShortSpans(t *testing.T) {
	intervals := buildIntervals([]float64{1, 50}, 100, 5, 100)
	if len(intervals) != 2 {
		t.Fatalf("expected short head to fold forward, got %v", intervals)
	}
	if intervals[0][0] != 0 || math.Abs(intervals[0][1]-50) > 1e-9 {
		t.Fatalf("unexpected first interval: %v", intervals[0])
	}
}

func TestOverlapFraction(t *testing.T) {
	windows := [][2]float64{{0, 5}, {10, 20}}
	if got := overlapFraction(windows, 0, 10); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("expected 0.5, got %v", got)
	}
	if got := overlapFraction(windows, 30, 40); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}
