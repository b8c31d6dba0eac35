package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. Configuration problems are
// fatal at startup and never surface mid-run.
func (c *Config) Validate() error {
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateEditing(); err != nil {
		return err
	}
	if err := c.validateAdaptation(); err != nil {
		return err
	}
	if err := c.validatePublication(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	if c.Analysis.MinSegmentSeconds <= 0 {
		return errors.New("analysis.min_segment_seconds must be positive")
	}
	if c.Analysis.MaxSegmentSeconds <= c.Analysis.MinSegmentSeconds {
		return errors.New("analysis.max_segment_seconds must exceed analysis.min_segment_seconds")
	}
	if c.Analysis.MinCoverage < 0 || c.Analysis.MinCoverage > 1 {
		return errors.New("analysis.min_coverage must be between 0 and 1")
	}
	w := c.Analysis.Weights
	for name, value := range map[string]float64{
		"motion":          w.Motion,
		"speech_density":  w.SpeechDensity,
		"audio_energy":    w.AudioEnergy,
		"face_prominence": w.FaceProminence,
	} {
		if value < 0 {
			return fmt.Errorf("analysis.weights.%s must not be negative", name)
		}
	}
	if w.Motion+w.SpeechDensity+w.AudioEnergy+w.FaceProminence <= 0 {
		return errors.New("analysis.weights must not all be zero")
	}
	return nil
}

func (c *Config) validateEditing() error {
	if c.Editing.TargetDurationSeconds <= 0 {
		return errors.New("editing.target_duration_seconds must be positive")
	}
	switch strings.ToLower(c.Editing.Selection) {
	case "greedy", "knapsack":
	default:
		return fmt.Errorf("editing.selection must be greedy or knapsack, got %q", c.Editing.Selection)
	}
	switch strings.ToLower(c.Editing.Ordering) {
	case "chronological", "importance":
	default:
		return fmt.Errorf("editing.ordering must be chronological or importance, got %q", c.Editing.Ordering)
	}
	if c.Editing.OverselectFactor < 1 {
		return errors.New("editing.overselect_factor must be at least 1")
	}
	if c.Editing.TransitionSeconds < 0 {
		return errors.New("editing.transition_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateAdaptation() error {
	if _, _, err := ParseAspectRatio(c.Adaptation.AspectRatio); err != nil {
		return err
	}
	if c.Adaptation.OutputWidth <= 0 || c.Adaptation.OutputHeight <= 0 {
		return errors.New("adaptation output dimensions must be positive")
	}
	if c.Adaptation.CRF < 0 || c.Adaptation.CRF > 51 {
		return errors.New("adaptation.crf must be between 0 and 51")
	}
	return nil
}

func (c *Config) validatePublication() error {
	if c.Publication.MaxDurationSeconds <= 0 {
		return errors.New("publication.max_duration_seconds must be positive")
	}
	if c.Publication.MaxFileSizeMiB <= 0 {
		return errors.New("publication.max_file_size_mib must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.RetryMaxSeconds < c.Workflow.RetryInitialSeconds {
		return errors.New("workflow.retry_max_seconds must not be below workflow.retry_initial_seconds")
	}
	return nil
}

// ParseAspectRatio parses a "W:H" ratio string into its integer components.
func ParseAspectRatio(value string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("adaptation.aspect_ratio must be W:H, got %q", value)
	}
	var w, h int
	if _, err := fmt.Sscanf(parts[0]+" "+parts[1], "%d %d", &w, &h); err != nil {
		return 0, 0, fmt.Errorf("adaptation.aspect_ratio must be W:H, got %q", value)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("adaptation.aspect_ratio components must be positive, got %q", value)
	}
	return w, h, nil
}
