package optimization

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/opencontainers/go-digest"

	"clipforge/internal/analysis"
	"clipforge/internal/config"
	"clipforge/internal/editing"
	"clipforge/internal/media"
	"clipforge/internal/services"
)

func testOptimization() config.Optimization {
	return config.Optimization{
		Hashtags:     []string{"#clips"},
		TrendingTags: []string{"fyp", "viral"},
		MaxTags:      10,
	}
}

func testPlan() editing.Plan {
	return editing.Plan{Segments: []editing.PlannedSegment{
		{Segment: analysis.Segment{Score: 0.4}, StartSeconds: 60, EndSeconds: 75},
		{Segment: analysis.Segment{Score: 0.9}, StartSeconds: 300, EndSeconds: 315},
	}}
}

func testDigest() digest.Digest {
	return digest.FromString("rendered clip payload")
}

func TestOptimizeIsDeterministic(t *testing.T) {
	opt := NewOptimizer(testOptimization(), nil)
	desc := media.Descriptor{Title: "winter hiking trip", Description: "snow and summits"}

	first, err := opt.Optimize(desc, testPlan(), testDigest())
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	second, err := opt.Optimize(desc, testPlan(), testDigest())
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical inputs produced different metadata:\n%+v\n%+v", first, second)
	}
	if first.Title == "" || first.Description == "" {
		t.Fatal("expected populated title and description")
	}
	if first.ModelVersion != modelVersion {
		t.Fatalf("unexpected model version %q", first.ModelVersion)
	}
}

func TestOptimizeVariesWithClipFingerprint(t *testing.T) {
	opt := NewOptimizer(testOptimization(), nil)
	desc := media.Descriptor{Title: "winter hiking trip"}

	seenTitles := make(map[string]struct{})
	for _, payload := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		record, err := opt.Optimize(desc, testPlan(), digest.FromString(payload))
		if err != nil {
			t.Fatalf("Optimize: %v", err)
		}
		seenTitles[record.Title] = struct{}{}
	}
	if len(seenTitles) < 2 {
		t.Fatal("expected template choice to depend on the clip fingerprint")
	}
}

func TestOptimizeTagMergeOrderAndCap(t *testing.T) {
	cfg := testOptimization()
	cfg.Hashtags = []string{"#Hiking", "hiking"} // dedupes case-insensitively
	cfg.MaxTags = 4
	opt := NewOptimizer(cfg, nil)

	record, err := opt.Optimize(media.Descriptor{
		Title:    "alpine sunrise",
		Keywords: []string{"mountains"},
	}, testPlan(), testDigest())
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if len(record.Tags) != 4 {
		t.Fatalf("expected tags capped at 4, got %v", record.Tags)
	}
	if record.Tags[0] != "hiking" {
		t.Fatalf("configured hashtags must come first, got %v", record.Tags)
	}
	for i, tag := range record.Tags {
		for _, other := range record.Tags[i+1:] {
			if tag == other {
				t.Fatalf("duplicate tag %q in %v", tag, record.Tags)
			}
		}
	}
}

func TestOptimizeThumbnailAtBestSegmentMidpoint(t *testing.T) {
	opt := NewOptimizer(testOptimization(), nil)

	record, err := opt.Optimize(media.Descriptor{Title: "demo"}, testPlan(), testDigest())
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	// Best segment is second (score 0.9, 15s); first contributes 15s before it.
	if math.Abs(record.ThumbnailTimestampSeconds-22.5) > 1e-6 {
		t.Fatalf("expected thumbnail at 22.5s of clip time, got %v", record.ThumbnailTimestampSeconds)
	}
}

func TestOptimizeEngagementScoreIsWeightedMean(t *testing.T) {
	opt := NewOptimizer(testOptimization(), nil)

	record, err := opt.Optimize(media.Descriptor{Title: "demo"}, testPlan(), testDigest())
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if math.Abs(record.EngagementScore-0.65) > 1e-6 {
		t.Fatalf("expected engagement 0.65, got %v", record.EngagementScore)
	}
}

func TestOptimizeExplorationIsSeedStable(t *testing.T) {
	cfg := testOptimization()
	cfg.Exploration = true
	cfg.ExplorationSeed = 42
	opt := NewOptimizer(cfg, nil)
	desc := media.Descriptor{Title: "demo"}

	first, err := opt.Optimize(desc, testPlan(), testDigest())
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	second, err := opt.Optimize(desc, testPlan(), testDigest())
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if first.Title != second.Title || first.Description != second.Description {
		t.Fatal("same seed should reproduce the same template choices")
	}
}

func TestOptimizeRejectsEmptyPlan(t *testing.T) {
	opt := NewOptimizer(testOptimization(), nil)

	_, err := opt.Optimize(media.Descriptor{Title: "demo"}, editing.Plan{}, testDigest())
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
