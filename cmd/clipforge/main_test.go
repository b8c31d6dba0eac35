package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()

	base := t.TempDir()
	content := fmt.Sprintf(`[paths]
data_dir = %q
artifacts_dir = %q
log_dir = %q
`,
		filepath.Join(base, "data"),
		filepath.Join(base, "artifacts"),
		filepath.Join(base, "logs"),
	)
	cfgPath := filepath.Join(base, "config.toml")
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath
}

func runCLI(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestConfigInitWritesSample(t *testing.T) {
	cfgPath := writeTestConfig(t)
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCLI(t, cfgPath, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration") {
		t.Fatalf("unexpected output: %s", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := runCLI(t, cfgPath, "config", "init", "--path", target); err == nil {
		t.Fatal("expected second init to refuse overwriting")
	}
}

func TestConfigShowRendersResolvedConfig(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := runCLI(t, cfgPath, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "[editing]") || !strings.Contains(out, "target_duration_seconds") {
		t.Fatalf("expected resolved TOML, got: %s", out)
	}
}

func TestRunNoWaitQueuesAndStatusListsIt(t *testing.T) {
	cfgPath := writeTestConfig(t)

	source := filepath.Join(t.TempDir(), "clip-source.mkv")
	if err := os.WriteFile(source, []byte("video"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	out, err := runCLI(t, cfgPath, "run", "--no-wait", source)
	if err != nil {
		t.Fatalf("run --no-wait: %v", err)
	}
	if !strings.Contains(out, "Queued run ") {
		t.Fatalf("unexpected output: %s", out)
	}

	out, err = runCLI(t, cfgPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "pending") || !strings.Contains(out, "clip-source.mkv") {
		t.Fatalf("expected queued run in status output, got: %s", out)
	}

	out, err = runCLI(t, cfgPath, "status", "--json")
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var views []runView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("parse status JSON: %v\n%s", err, out)
	}
	if len(views) != 1 || views[0].Status != "pending" {
		t.Fatalf("unexpected status views: %+v", views)
	}
}

func TestStatusFilterRejectsUnknownStatus(t *testing.T) {
	cfgPath := writeTestConfig(t)

	if _, err := runCLI(t, cfgPath, "status", "--status", "bogus"); err == nil {
		t.Fatal("expected unknown status to be rejected")
	}
}

func TestAuditExportsQueuedRun(t *testing.T) {
	cfgPath := writeTestConfig(t)

	source := filepath.Join(t.TempDir(), "source.mkv")
	if err := os.WriteFile(source, []byte("video"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	if _, err := runCLI(t, cfgPath, "run", "--no-wait", source); err != nil {
		t.Fatalf("run --no-wait: %v", err)
	}

	out, err := runCLI(t, cfgPath, "status", "--json")
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var views []runView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("parse status JSON: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected one run, got %d", len(views))
	}

	// Prefix resolution should find the run from its first 8 characters.
	out, err = runCLI(t, cfgPath, "audit", views[0].ID[:8])
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("parse audit JSON: %v\n%s", err, out)
	}
	if _, ok := doc["run"]; !ok {
		t.Fatalf("expected run in audit export, got: %s", out)
	}
}

func TestVerifyUnknownRunFails(t *testing.T) {
	cfgPath := writeTestConfig(t)

	if _, err := runCLI(t, cfgPath, "verify", "no-such-run"); err == nil {
		t.Fatal("expected verify to fail for an unknown run")
	}
}
