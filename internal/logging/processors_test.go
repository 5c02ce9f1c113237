// Package logging_test provides tests for the agent logging package.
package logging_test

import (
	"errors"
	"testing"
	"time"

	agenterrors "eks-upgrade-agent/internal/errors"
	"eks-upgrade-agent/internal/logging"
)

func TestCommonContext(t *testing.T) {
	required := []string{"timestamp", "level", "process_id", "thread_name"}

	t.Run("adds all four fields to an empty event", func(t *testing.T) {
		event := logging.CommonContext("agent", "info", map[string]any{})
		for _, key := range required {
			if _, ok := event[key]; !ok {
				t.Errorf("missing field %q", key)
			}
		}
	})

	t.Run("level is uppercased", func(t *testing.T) {
		event := logging.CommonContext("agent", "warn", map[string]any{})
		if event["level"] != "WARN" {
			t.Errorf("expected WARN, got %v", event["level"])
		}
	})

	t.Run("timestamp is ISO-8601 UTC", func(t *testing.T) {
		event := logging.CommonContext("agent", "info", map[string]any{})
		ts, ok := event["timestamp"].(string)
		if !ok {
			t.Fatalf("timestamp should be a string, got %T", event["timestamp"])
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			t.Fatalf("timestamp not parseable: %v", err)
		}
		if parsed.Location() != time.UTC {
			t.Error("timestamp should be UTC")
		}
	})

	t.Run("overwrites pre-existing fields", func(t *testing.T) {
		event := map[string]any{
			"timestamp":   "stale",
			"level":       "stale",
			"process_id":  -1,
			"thread_name": "stale",
		}
		event = logging.CommonContext("agent", "error", event)
		if event["level"] != "ERROR" {
			t.Errorf("level not overwritten: %v", event["level"])
		}
		if event["timestamp"] == "stale" {
			t.Error("timestamp not overwritten")
		}
		if event["process_id"] == -1 {
			t.Error("process_id not overwritten")
		}
		if event["thread_name"] == "stale" {
			t.Error("thread_name not overwritten")
		}
	})

	t.Run("running twice still yields all fields", func(t *testing.T) {
		event := map[string]any{"custom": "kept"}
		event = logging.CommonContext("agent", "info", event)
		event = logging.CommonContext("agent", "info", event)
		for _, key := range required {
			if _, ok := event[key]; !ok {
				t.Errorf("missing field %q after double run", key)
			}
		}
		if event["custom"] != "kept" {
			t.Error("unrelated fields must survive")
		}
	})
}

func TestExceptionInfo(t *testing.T) {
	t.Run("passes through without exc_info", func(t *testing.T) {
		event := map[string]any{"event": "no failure here"}
		out := logging.ExceptionInfo("agent", "info", event)
		if _, ok := out["exception"]; ok {
			t.Error("no exception expected")
		}
		if out["event"] != "no failure here" {
			t.Error("event mutated unexpectedly")
		}
	})

	t.Run("projects agent errors via full serialization", func(t *testing.T) {
		ae := agenterrors.NewExecutionError("kubectl drain failed", agenterrors.ExecutionDetail{
			Step: "drain_nodes",
		})
		event := map[string]any{"exc_info": error(ae)}
		out := logging.ExceptionInfo("agent", "error", event)

		if _, ok := out["exc_info"]; ok {
			t.Error("exc_info should be removed")
		}
		exc, ok := out["exception"].(map[string]any)
		if !ok {
			t.Fatalf("exception should be a map, got %T", out["exception"])
		}
		if exc["error_type"] != "ExecutionError" {
			t.Errorf("unexpected error_type: %v", exc["error_type"])
		}
		ctx := exc["context"].(map[string]any)
		if ctx["execution_step"] != "drain_nodes" {
			t.Errorf("context lost in projection: %v", ctx)
		}
	})

	t.Run("builds minimal structure for foreign errors", func(t *testing.T) {
		event := map[string]any{"exc_info": errors.New("dial tcp: timeout")}
		out := logging.ExceptionInfo("agent", "error", event)

		exc, ok := out["exception"].(map[string]any)
		if !ok {
			t.Fatalf("exception should be a map, got %T", out["exception"])
		}
		if exc["message"] != "dial tcp: timeout" {
			t.Errorf("unexpected message: %v", exc["message"])
		}
		if exc["type"] == "" {
			t.Error("type should be set")
		}
		if _, ok := exc["traceback"]; !ok {
			t.Error("traceback should be present")
		}
	})

	t.Run("drops non-error exc_info values", func(t *testing.T) {
		event := map[string]any{"exc_info": "not an error"}
		out := logging.ExceptionInfo("agent", "error", event)
		if _, ok := out["exc_info"]; ok {
			t.Error("exc_info should be removed")
		}
		if _, ok := out["exception"]; ok {
			t.Error("no exception expected for non-error values")
		}
	})
}
