package config

const (
	defaultDataDir      = "~/.local/share/clipforge"
	defaultArtifactsDir = "~/.local/share/clipforge/artifacts"
	defaultLogDir       = "~/.local/share/clipforge/logs"

	defaultLogLevel  = "info"
	defaultLogFormat = "console"

	defaultWorkers             = 2
	defaultMaxAttempts         = 3
	defaultRetryInitialSeconds = 2
	defaultRetryMaxSeconds     = 60
	defaultStageTimeoutSeconds = 1800
	defaultPollIntervalSeconds = 5

	defaultMinSegmentSeconds = 2.0
	defaultMaxSegmentSeconds = 45.0
	defaultMinCoverage       = 0.5
	defaultScoringWorkers    = 4

	defaultTargetDurationSeconds = 60.0
	defaultSelection             = "greedy"
	defaultOrdering              = "chronological"
	defaultOverselectFactor      = 2.0
	defaultRoundingUnitSeconds   = 1.0
	defaultTransitionType        = "crossfade"
	defaultTransitionSeconds     = 0.5

	defaultAspectRatio     = "9:16"
	defaultOutputWidth     = 1080
	defaultOutputHeight    = 1920
	defaultMinSourceWidth  = 640
	defaultMinSourceHeight = 360
	defaultCRF             = 23
	defaultPreset          = "medium"

	defaultMaxTags = 15

	defaultPlatform           = "tiktok"
	defaultMaxDuration        = 600.0
	defaultMaxFileSizeMiB     = 500
	defaultPublicationMinSize = 540

	defaultFFmpegBinary      = "ffmpeg"
	defaultFFprobeBinary     = "ffprobe"
	defaultSceneThreshold    = 0.35
	defaultSilenceNoiseDB    = -35.0
	defaultSilenceMinSeconds = 0.4
	defaultFetchTimeout      = 300
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:      defaultDataDir,
			ArtifactsDir: defaultArtifactsDir,
			LogDir:       defaultLogDir,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Workflow: Workflow{
			Workers:             defaultWorkers,
			MaxAttempts:         defaultMaxAttempts,
			RetryInitialSeconds: defaultRetryInitialSeconds,
			RetryMaxSeconds:     defaultRetryMaxSeconds,
			StageTimeoutSeconds: defaultStageTimeoutSeconds,
			PollIntervalSeconds: defaultPollIntervalSeconds,
		},
		Storage: Storage{
			Compress: false,
		},
		Analysis: Analysis{
			Detectors:         []string{"scene", "silence"},
			MinSegmentSeconds: defaultMinSegmentSeconds,
			MaxSegmentSeconds: defaultMaxSegmentSeconds,
			MinCoverage:       defaultMinCoverage,
			ScoringWorkers:    defaultScoringWorkers,
			Weights: Weights{
				Motion:         0.35,
				SpeechDensity:  0.3,
				AudioEnergy:    0.2,
				FaceProminence: 0.15,
			},
		},
		Editing: Editing{
			TargetDurationSeconds: defaultTargetDurationSeconds,
			Selection:             defaultSelection,
			Ordering:              defaultOrdering,
			OverselectFactor:      defaultOverselectFactor,
			RoundingUnitSeconds:   defaultRoundingUnitSeconds,
			TransitionType:        defaultTransitionType,
			TransitionSeconds:     defaultTransitionSeconds,
		},
		Adaptation: Adaptation{
			AspectRatio:     defaultAspectRatio,
			OutputWidth:     defaultOutputWidth,
			OutputHeight:    defaultOutputHeight,
			MinSourceWidth:  defaultMinSourceWidth,
			MinSourceHeight: defaultMinSourceHeight,
			CRF:             defaultCRF,
			Preset:          defaultPreset,
		},
		Optimization: Optimization{
			MaxTags: defaultMaxTags,
			TrendingTags: []string{
				"fyp", "foryou", "viral", "trending", "satisfying",
			},
		},
		Publication: Publication{
			Platform:           defaultPlatform,
			MaxDurationSeconds: defaultMaxDuration,
			MaxFileSizeMiB:     defaultMaxFileSizeMiB,
			MinWidth:           defaultPublicationMinSize,
			MinHeight:          defaultPublicationMinSize,
		},
		FFmpeg: FFmpeg{
			Binary:             defaultFFmpegBinary,
			ProbeBinary:        defaultFFprobeBinary,
			SceneThreshold:     defaultSceneThreshold,
			SilenceNoiseDB:     defaultSilenceNoiseDB,
			SilenceMinSeconds:  defaultSilenceMinSeconds,
			FetchTimeoutSecond: defaultFetchTimeout,
		},
	}
}
