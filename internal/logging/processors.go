package logging

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	agenterrors "eks-upgrade-agent/internal/errors"
)

// Processor is a pure transform over an in-flight log event. Processors
// receive the logger name, the lowercase level name, and the event field
// map, and return the (possibly mutated) map.
type Processor func(name, level string, event map[string]any) map[string]any

// excInfoKey is the event field holding a captured error value before the
// exception processor projects it.
const excInfoKey = "exc_info"

// CommonContext injects the shared context fields into every event:
// timestamp (UTC ISO-8601), uppercased level, process id, and the calling
// goroutine's label. Pre-existing fields with the same names are overwritten.
func CommonContext(name, level string, event map[string]any) map[string]any {
	event["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	event["level"] = strings.ToUpper(level)
	event["process_id"] = os.Getpid()
	event["thread_name"] = goroutineLabel()
	return event
}

// ExceptionInfo projects a captured error out of the exc_info field.
//
// An AgentError is replaced by its full ToMap serialization; any other
// error becomes a minimal {type, message, traceback} structure. The result
// is stored under "exception" and exc_info is removed. Events without
// exc_info pass through unchanged.
func ExceptionInfo(name, level string, event map[string]any) map[string]any {
	v, ok := event[excInfoKey]
	if !ok {
		return event
	}
	delete(event, excInfoKey)

	err, ok := v.(error)
	if !ok || err == nil {
		return event
	}

	if ae, ok := err.(*agenterrors.AgentError); ok {
		event["exception"] = ae.ToMap()
		return event
	}
	event["exception"] = map[string]any{
		"type":      fmt.Sprintf("%T", err),
		"message":   err.Error(),
		"traceback": fmt.Sprintf("%+v", err),
	}
	return event
}

// goroutineLabel names the calling goroutine. The runtime exposes no thread
// names, so the goroutine id from the stack header stands in.
func goroutineLabel() string {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	fields := strings.Fields(string(buf[:n]))
	if len(fields) >= 2 {
		return "goroutine-" + fields[1]
	}
	return "goroutine-unknown"
}
