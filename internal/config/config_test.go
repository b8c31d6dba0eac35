package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Editing.Selection != "greedy" {
		t.Fatalf("expected default selection, got %q", cfg.Editing.Selection)
	}
	if cfg.Workflow.MaxAttempts != 3 {
		t.Fatalf("expected default max attempts, got %d", cfg.Workflow.MaxAttempts)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		"[editing]",
		`selection = "knapsack"`,
		"target_duration_seconds = 30.0",
		"[workflow]",
		"workers = 5",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Editing.Selection != "knapsack" {
		t.Fatalf("expected knapsack selection, got %q", cfg.Editing.Selection)
	}
	if cfg.Editing.TargetDurationSeconds != 30.0 {
		t.Fatalf("expected 30s target, got %v", cfg.Editing.TargetDurationSeconds)
	}
	if cfg.Workflow.Workers != 5 {
		t.Fatalf("expected 5 workers, got %d", cfg.Workflow.Workers)
	}
	// Untouched sections keep defaults.
	if cfg.Adaptation.AspectRatio != "9:16" {
		t.Fatalf("expected default aspect ratio, got %q", cfg.Adaptation.AspectRatio)
	}
}

func TestValidateRejectsBadSelection(t *testing.T) {
	cfg := Default()
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	cfg.Editing.Selection = "optimal-ish"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for unknown selection")
	}
}

func TestValidateRejectsBadCoverage(t *testing.T) {
	cfg := Default()
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	cfg.Analysis.MinCoverage = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for coverage above 1")
	}
}

func TestParseAspectRatio(t *testing.T) {
	w, h, err := ParseAspectRatio("9:16")
	if err != nil {
		t.Fatalf("ParseAspectRatio: %v", err)
	}
	if w != 9 || h != 16 {
		t.Fatalf("unexpected ratio: %d:%d", w, h)
	}
	if _, _, err := ParseAspectRatio("vertical"); err == nil {
		t.Fatal("expected error for malformed ratio")
	}
	if _, _, err := ParseAspectRatio("0:16"); err == nil {
		t.Fatal("expected error for zero component")
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteSample(path); err != nil {
		t.Fatalf("WriteSample: %v", err)
	}
	if err := WriteSample(path); err == nil {
		t.Fatal("expected error when config already exists")
	}
}
