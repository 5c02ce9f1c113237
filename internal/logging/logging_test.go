package logging_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"eks-upgrade-agent/internal/logging"
)

// setupFileLogger configures the pipeline with only a file sink and returns
// the logger plus a function reading back the decoded JSON lines.
func setupFileLogger(t *testing.T, level, format string) (*zap.Logger, func() []map[string]any) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.jsonl")
	logger, err := logging.Setup(&logging.Config{
		Level:         level,
		Format:        format,
		File:          path,
		EnableConsole: false,
	})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	return logger, func() []map[string]any {
		_ = logging.Sync()
		content, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			t.Fatalf("failed to read log file: %v", err)
		}
		var entries []map[string]any
		for _, line := range strings.Split(strings.TrimSpace(string(content)), "\n") {
			if line == "" {
				continue
			}
			var entry map[string]any
			if err := json.Unmarshal([]byte(line), &entry); err != nil {
				t.Fatalf("line is not valid JSON: %v\nLine: %s", err, line)
			}
			entries = append(entries, entry)
		}
		return entries
	}
}

func TestSetupJSONOutput(t *testing.T) {
	logger, read := setupFileLogger(t, "info", "json")
	logger.Info("upgrade_started", logging.ClusterName("prod"), logging.TargetVersion("1.29"))

	entries := read()
	if len(entries) < 2 {
		t.Fatalf("expected startup event plus log line, got %d entries", len(entries))
	}

	// First entry is the startup summary.
	startup := entries[0]
	if startup["event"] != "Logging system initialized" {
		t.Errorf("unexpected startup event: %v", startup["event"])
	}
	if startup["log_format"] != "json" {
		t.Errorf("startup should carry resolved config: %v", startup)
	}

	entry := entries[len(entries)-1]
	for _, key := range []string{"timestamp", "level", "process_id", "thread_name", "event"} {
		if _, ok := entry[key]; !ok {
			t.Errorf("log entry missing %q field: %v", key, entry)
		}
	}
	if entry["event"] != "upgrade_started" {
		t.Errorf("unexpected event: %v", entry["event"])
	}
	if entry["level"] != "INFO" {
		t.Errorf("level should be uppercased: %v", entry["level"])
	}
	if entry["cluster_name"] != "prod" {
		t.Errorf("field constructor lost: %v", entry)
	}
	if entry["logger"] != "eks-upgrade-agent" {
		t.Errorf("logger should be bound to the default name: %v", entry["logger"])
	}
}

func TestSetupConsoleOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.log")
	logger, err := logging.Setup(&logging.Config{
		Level:         "info",
		Format:        "console",
		File:          path,
		EnableConsole: false,
	})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	logger.Warn("node_drain_slow", logging.NodeGroup("workers-a"))
	_ = logging.Sync()

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	out := string(content)
	if !strings.Contains(out, "node_drain_slow") {
		t.Errorf("message missing from console output: %s", out)
	}
	if !strings.Contains(out, "WARN") {
		t.Errorf("level missing from console output: %s", out)
	}
	if !strings.Contains(out, "node_group=workers-a") {
		t.Errorf("key=value field missing: %s", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Error("console output should not be JSON")
	}
}

func TestLevelFiltering(t *testing.T) {
	logger, read := setupFileLogger(t, "error", "json")
	logger.Info("filtered_info")
	logger.Debug("filtered_debug")
	logger.Error("kept_error")

	entries := read()
	for _, e := range entries {
		if e["event"] == "filtered_info" || e["event"] == "filtered_debug" {
			t.Errorf("entry should have been filtered: %v", e["event"])
		}
	}
	found := false
	for _, e := range entries {
		if e["event"] == "kept_error" {
			found = true
			if e["level"] != "ERROR" {
				t.Errorf("unexpected level: %v", e["level"])
			}
		}
	}
	if !found {
		t.Error("error entry missing")
	}
}

func TestLogDirectoryCreation(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "var", "log", "agent", "agent.jsonl")
	_, err := logging.Setup(&logging.Config{
		Level:         "info",
		File:          nested,
		EnableConsole: false,
	})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	_ = logging.Sync()
	if _, err := os.Stat(filepath.Dir(nested)); os.IsNotExist(err) {
		t.Error("nested log directory was not created")
	}
}

func TestSetupRejectsBadFormat(t *testing.T) {
	_, err := logging.Setup(&logging.Config{Format: "xml"})
	if err == nil {
		t.Fatal("expected an error for unknown format")
	}
}

func TestGlobalAccessors(t *testing.T) {
	t.Run("L initializes lazily and returns a stable handle", func(t *testing.T) {
		first := logging.L()
		if first == nil {
			t.Fatal("L returned nil")
		}
		if logging.L() != first {
			t.Error("subsequent callers must reuse the same handle")
		}
	})

	t.Run("S returns the sugared form", func(t *testing.T) {
		if logging.S() == nil {
			t.Fatal("S returned nil")
		}
	})

	t.Run("Setup replaces the process-wide handle", func(t *testing.T) {
		logger, read := setupFileLogger(t, "info", "json")
		if logging.L() != logger {
			t.Error("Setup should install the new handle")
		}
		logging.L().Info("via_global")
		entries := read()
		found := false
		for _, e := range entries {
			if e["event"] == "via_global" {
				found = true
			}
		}
		if !found {
			t.Error("global handle should write through the configured pipeline")
		}
	})
}

func TestWithUpgrade(t *testing.T) {
	_, read := setupFileLogger(t, "info", "json")
	logging.WithUpgrade("upg-42", "prod-cluster").Info("phase_started", logging.Phase("perception"))

	entries := read()
	entry := entries[len(entries)-1]
	if entry["upgrade_id"] != "upg-42" {
		t.Errorf("unexpected upgrade_id: %v", entry["upgrade_id"])
	}
	if entry["cluster_name"] != "prod-cluster" {
		t.Errorf("unexpected cluster_name: %v", entry["cluster_name"])
	}
	if entry["phase"] != "perception" {
		t.Errorf("unexpected phase: %v", entry["phase"])
	}
}
