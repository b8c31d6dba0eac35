package analysis

import (
	"context"
	"sync"

	"clipforge/internal/media"
)

// Scorer is the pluggable feature/scoring model. Implementations are
// versioned; the ledger records which version produced a run's scores.
type Scorer interface {
	Version() string
	Score(ctx context.Context, input string, start, end float64) (FeatureVector, error)
}

// StatsSource measures signal statistics over a clip. *media.FFmpeg
// satisfies it.
type StatsSource interface {
	ClipStats(ctx context.Context, input string, start, end float64) (media.ClipStats, error)
}

// Signal-level normalization bounds. Motion is mean luma frame difference;
// values above motionCeiling are treated as maximal. Audio maps dBFS in
// [audioFloorDB, 0] onto [0,1].
const (
	motionCeiling = 20.0
	audioFloorDB  = -60.0
)

// SignalScorer derives features from ffmpeg signal statistics: motion from
// luma frame differences, audio energy from RMS level, speech density from
// the non-silent fraction of the clip. It reports no face region, so
// adaptation falls back to center cropping.
type SignalScorer struct {
	Stats      StatsSource
	Silence    SilenceSource
	NoiseDB    float64
	MinSeconds float64

	mu       sync.Mutex
	silences map[string][][2]float64
}

// SignalScorerVersion identifies the scoring model in ledger entries.
const SignalScorerVersion = "signal/1"

func (s *SignalScorer) Version() string { return SignalScorerVersion }

func (s *SignalScorer) Score(ctx context.Context, input string, start, end float64) (FeatureVector, error) {
	stats, err := s.Stats.ClipStats(ctx, input, start, end)
	if err != nil {
		return FeatureVector{}, err
	}

	speech := 1.0
	if s.Silence != nil {
		windows, silenceErr := s.silenceWindows(ctx, input)
		if silenceErr != nil {
			return FeatureVector{}, silenceErr
		}
		speech = 1 - overlapFraction(windows, start, end)
	}

	return FeatureVector{
		Motion:        clamp01(stats.MotionLevel / motionCeiling),
		AudioEnergy:   clamp01((stats.RMSLevelDB - audioFloorDB) / -audioFloorDB),
		SpeechDensity: clamp01(speech),
	}, nil
}

// silenceWindows caches per-input silence detection so scoring many segments
// of one source runs the audio pass once.
func (s *SignalScorer) silenceWindows(ctx context.Context, input string) ([][2]float64, error) {
	s.mu.Lock()
	cached, ok := s.silences[input]
	s.mu.Unlock()
	if ok {
		return cached, nil
	}

	windows, err := s.Silence.SilenceWindows(ctx, input, s.NoiseDB, s.MinSeconds)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.silences == nil {
		s.silences = make(map[string][][2]float64)
	}
	s.silences[input] = windows
	s.mu.Unlock()
	return windows, nil
}

func overlapFraction(windows [][2]float64, start, end float64) float64 {
	if end <= start {
		return 0
	}
	var covered float64
	for _, window := range windows {
		lo := max(window[0], start)
		hi := min(window[1], end)
		if hi > lo {
			covered += hi - lo
		}
	}
	return clamp01(covered / (end - start))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
