package pipeline

import (
	"log/slog"

	"clipforge/internal/adaptation"
	"clipforge/internal/analysis"
	"clipforge/internal/artifact"
	"clipforge/internal/config"
	"clipforge/internal/editing"
	"clipforge/internal/media"
	"clipforge/internal/optimization"
	"clipforge/internal/publication"
)

// DefaultStages wires the production stage set: the ffmpeg engine behind
// acquisition, analysis, and rendering, plus the planner, optimizer, and
// publisher built from configuration. A nil client publishes through the
// local NullClient.
func DefaultStages(cfg *config.Config, artifacts *artifact.Store, client publication.Client, logger *slog.Logger) []Stage {
	engine := media.NewFFmpeg(cfg.FFmpeg.Binary, cfg.FFmpeg.ProbeBinary)
	provider := media.NewFileProvider(engine)

	var detectors []analysis.Detector
	for _, name := range cfg.Analysis.Detectors {
		switch name {
		case "scene":
			detectors = append(detectors, &analysis.SceneDetector{
				Source:    engine,
				Threshold: cfg.FFmpeg.SceneThreshold,
			})
		case "silence":
			detectors = append(detectors, &analysis.SilenceDetector{
				Source:     engine,
				NoiseDB:    cfg.FFmpeg.SilenceNoiseDB,
				MinSeconds: cfg.FFmpeg.SilenceMinSeconds,
			})
		}
	}
	scorer := &analysis.SignalScorer{
		Stats:      engine,
		Silence:    engine,
		NoiseDB:    cfg.FFmpeg.SilenceNoiseDB,
		MinSeconds: cfg.FFmpeg.SilenceMinSeconds,
	}
	analyzer := analysis.NewAnalyzer(cfg.Analysis, detectors, scorer, logger)

	planner := editing.NewPlanner(cfg.Editing, logger)
	adapter := adaptation.NewAdapter(cfg.Adaptation, engine, logger)
	optimizer := optimization.NewOptimizer(cfg.Optimization, logger)

	if client == nil {
		client = &publication.NullClient{Name: cfg.Publication.Platform}
	}
	publisher := publication.NewPublisher(cfg.Publication, client, logger)

	return []Stage{
		NewAcquireStage(provider, artifacts),
		NewAnalyzeStage(analyzer, artifacts),
		NewEditStage(planner, artifacts),
		NewAdaptStage(adapter, engine, artifacts),
		NewOptimizeStage(optimizer, artifacts),
		NewPublishStage(publisher, artifacts),
	}
}
