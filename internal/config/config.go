package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir      string `toml:"data_dir"`
	ArtifactsDir string `toml:"artifacts_dir"`
	LogDir       string `toml:"log_dir"`
}

// Logging contains logger configuration.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Workflow contains orchestrator timing and retry configuration.
type Workflow struct {
	Workers             int `toml:"workers"`
	MaxAttempts         int `toml:"max_attempts"`
	RetryInitialSeconds int `toml:"retry_initial_seconds"`
	RetryMaxSeconds     int `toml:"retry_max_seconds"`
	StageTimeoutSeconds int `toml:"stage_timeout_seconds"`
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
}

// Storage contains artifact store configuration.
type Storage struct {
	Compress bool `toml:"compress"`
}

// Weights holds the per-feature contribution to segment importance.
type Weights struct {
	Motion         float64 `toml:"motion"`
	SpeechDensity  float64 `toml:"speech_density"`
	AudioEnergy    float64 `toml:"audio_energy"`
	FaceProminence float64 `toml:"face_prominence"`
}

// Analysis contains segmentation and scoring configuration.
type Analysis struct {
	Detectors         []string `toml:"detectors"`
	MinSegmentSeconds float64  `toml:"min_segment_seconds"`
	MaxSegmentSeconds float64  `toml:"max_segment_seconds"`
	MinCoverage       float64  `toml:"min_coverage"`
	ScoringWorkers    int      `toml:"scoring_workers"`
	Weights           Weights  `toml:"weights"`
}

// Editing contains segment selection configuration.
type Editing struct {
	TargetDurationSeconds float64 `toml:"target_duration_seconds"`
	Selection             string  `toml:"selection"` // greedy | knapsack
	Ordering              string  `toml:"ordering"`  // chronological | importance
	OverselectFactor      float64 `toml:"overselect_factor"`
	RoundingUnitSeconds   float64 `toml:"rounding_unit_seconds"`
	TransitionType        string  `toml:"transition_type"`
	TransitionSeconds     float64 `toml:"transition_seconds"`
}

// Adaptation contains target-format configuration.
type Adaptation struct {
	AspectRatio     string `toml:"aspect_ratio"`
	OutputWidth     int    `toml:"output_width"`
	OutputHeight    int    `toml:"output_height"`
	MinSourceWidth  int    `toml:"min_source_width"`
	MinSourceHeight int    `toml:"min_source_height"`
	CRF             int    `toml:"crf"`
	Preset          string `toml:"preset"`
}

// Optimization contains metadata generation configuration.
type Optimization struct {
	Hashtags        []string `toml:"hashtags"`
	TrendingTags    []string `toml:"trending_tags"`
	MaxTags         int      `toml:"max_tags"`
	Exploration     bool     `toml:"exploration"`
	ExplorationSeed int64    `toml:"exploration_seed"`
}

// Publication contains platform constraint configuration.
type Publication struct {
	Platform           string  `toml:"platform"`
	MaxDurationSeconds float64 `toml:"max_duration_seconds"`
	MaxFileSizeMiB     int64   `toml:"max_file_size_mib"`
	MinWidth           int     `toml:"min_width"`
	MinHeight          int     `toml:"min_height"`
}

// FFmpeg contains external tool configuration for the media engine.
type FFmpeg struct {
	Binary             string  `toml:"binary"`
	ProbeBinary        string  `toml:"probe_binary"`
	SceneThreshold     float64 `toml:"scene_threshold"`
	SilenceNoiseDB     float64 `toml:"silence_noise_db"`
	SilenceMinSeconds  float64 `toml:"silence_min_seconds"`
	FetchTimeoutSecond int     `toml:"fetch_timeout_seconds"`
}

// Config is the root application configuration.
type Config struct {
	Paths        Paths        `toml:"paths"`
	Logging      Logging      `toml:"logging"`
	Workflow     Workflow     `toml:"workflow"`
	Storage      Storage      `toml:"storage"`
	Analysis     Analysis     `toml:"analysis"`
	Editing      Editing      `toml:"editing"`
	Adaptation   Adaptation   `toml:"adaptation"`
	Optimization Optimization `toml:"optimization"`
	Publication  Publication  `toml:"publication"`
	FFmpeg       FFmpeg       `toml:"ffmpeg"`
}

// DefaultConfigPath returns the canonical config location.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "clipforge", "config.toml"), nil
}

// Load reads the configuration file at path, falling back to defaults when the
// file does not exist. The returned config is normalized but not validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if unmarshalErr := toml.Unmarshal(data, &cfg); unmarshalErr != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, unmarshalErr)
		}
	case errors.Is(err, fs.ErrNotExist):
		// Defaults apply when no config file is present.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WriteSample writes the embedded sample configuration to path.
func WriteSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

// EnsureDirectories creates the directories the pipeline writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.ArtifactsDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the ledger database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "ledger.db")
}

// LockPath returns the daemon lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "clipforge.lock")
}
