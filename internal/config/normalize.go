package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Normalize expands user-relative paths and fills empty fields with defaults.
func (c *Config) Normalize() error {
	defaults := Default()

	for target, fallback := range map[*string]string{
		&c.Paths.DataDir:      defaults.Paths.DataDir,
		&c.Paths.ArtifactsDir: defaults.Paths.ArtifactsDir,
		&c.Paths.LogDir:       defaults.Paths.LogDir,
	} {
		value := strings.TrimSpace(*target)
		if value == "" {
			value = fallback
		}
		expanded, err := expandPath(value)
		if err != nil {
			return err
		}
		*target = expanded
	}

	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaults.Logging.Format
	}
	if c.Workflow.Workers <= 0 {
		c.Workflow.Workers = defaults.Workflow.Workers
	}
	if c.Workflow.MaxAttempts <= 0 {
		c.Workflow.MaxAttempts = defaults.Workflow.MaxAttempts
	}
	if c.Workflow.RetryInitialSeconds <= 0 {
		c.Workflow.RetryInitialSeconds = defaults.Workflow.RetryInitialSeconds
	}
	if c.Workflow.RetryMaxSeconds <= 0 {
		c.Workflow.RetryMaxSeconds = defaults.Workflow.RetryMaxSeconds
	}
	if c.Workflow.StageTimeoutSeconds <= 0 {
		c.Workflow.StageTimeoutSeconds = defaults.Workflow.StageTimeoutSeconds
	}
	if c.Workflow.PollIntervalSeconds <= 0 {
		c.Workflow.PollIntervalSeconds = defaults.Workflow.PollIntervalSeconds
	}
	if len(c.Analysis.Detectors) == 0 {
		c.Analysis.Detectors = append([]string{}, defaults.Analysis.Detectors...)
	}
	if c.Analysis.ScoringWorkers <= 0 {
		c.Analysis.ScoringWorkers = defaults.Analysis.ScoringWorkers
	}
	if c.Editing.OverselectFactor <= 0 {
		c.Editing.OverselectFactor = defaults.Editing.OverselectFactor
	}
	if c.Editing.RoundingUnitSeconds <= 0 {
		c.Editing.RoundingUnitSeconds = defaults.Editing.RoundingUnitSeconds
	}
	if strings.TrimSpace(c.Editing.Selection) == "" {
		c.Editing.Selection = defaults.Editing.Selection
	}
	if strings.TrimSpace(c.Editing.Ordering) == "" {
		c.Editing.Ordering = defaults.Editing.Ordering
	}
	if strings.TrimSpace(c.FFmpeg.Binary) == "" {
		c.FFmpeg.Binary = defaults.FFmpeg.Binary
	}
	if strings.TrimSpace(c.FFmpeg.ProbeBinary) == "" {
		c.FFmpeg.ProbeBinary = defaults.FFmpeg.ProbeBinary
	}
	if c.Optimization.MaxTags <= 0 {
		c.Optimization.MaxTags = defaults.Optimization.MaxTags
	}

	return nil
}

// ExpandPath resolves a user-supplied path, expanding a leading tilde.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if path == "~" {
			return home, nil
		}
		return filepath.Join(home, path[2:]), nil
	}
	return filepath.Clean(path), nil
}
