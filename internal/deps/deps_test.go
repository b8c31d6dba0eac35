package deps

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"clipforge/internal/config"
	"clipforge/internal/services"
)

func writeStub(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := writeStub(t, binDir, "present")

	results := CheckBinaries([]Requirement{
		{Name: "present", Command: present},
		{Name: "missing", Command: "clearly-not-present-binary"},
		{Name: "unset", Command: "  "},
	})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected stub to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to carry detail, got %#v", results[1])
	}
	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("expected unset command detail, got %#v", results[2])
	}
}

func TestVerifyReportsMissingTool(t *testing.T) {
	binDir := t.TempDir()
	ffmpeg := writeStub(t, binDir, "ffmpeg")

	cfg := config.Default()
	cfg.FFmpeg.Binary = ffmpeg
	cfg.FFmpeg.ProbeBinary = "clearly-not-present-binary"

	err := Verify(&cfg)
	if err == nil {
		t.Fatal("expected missing ffprobe to fail verification")
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}

	cfg.FFmpeg.ProbeBinary = writeStub(t, binDir, "ffprobe")
	if err := Verify(&cfg); err != nil {
		t.Fatalf("expected verification to pass: %v", err)
	}
}
