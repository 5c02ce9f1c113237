package logging

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap/zapcore"
)

// pipelineCore is a zapcore.Core that runs the processor chain over an
// event map before rendering. Each record is converted to a field map,
// error-typed fields are hoisted into exc_info for the exception processor,
// the processors run in order, and the result is rendered once in the
// configured format and written to the attached sinks.
type pipelineCore struct {
	zapcore.LevelEnabler
	procs  []Processor
	render renderFunc
	out    zapcore.WriteSyncer
	fields []zapcore.Field
}

// renderFunc renders a finished event map into one output line.
type renderFunc func(event map[string]any) ([]byte, error)

// newPipelineCore builds the core for the given format ("json" or
// "console") and output sink.
func newPipelineCore(enab zapcore.LevelEnabler, format string, procs []Processor, out zapcore.WriteSyncer) *pipelineCore {
	render := renderJSON
	if format == FormatConsole {
		render = renderConsole
	}
	return &pipelineCore{
		LevelEnabler: enab,
		procs:        procs,
		render:       render,
		out:          out,
	}
}

// With attaches structured context to a copy of the core.
func (c *pipelineCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = append(c.fields[:len(c.fields):len(c.fields)], fields...)
	return &clone
}

// Check implements zapcore.Core.
func (c *pipelineCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

// Write runs the pipeline for a single record.
func (c *pipelineCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()

	// Error-typed fields carry the original error value; hand it to the
	// exception processor instead of flattening it to a string here.
	var captured error
	for _, f := range c.fields {
		captured = addField(enc, f, captured)
	}
	for _, f := range fields {
		captured = addField(enc, f, captured)
	}

	event := make(map[string]any, len(enc.Fields)+8)
	for k, v := range enc.Fields {
		event[k] = v
	}
	event["event"] = ent.Message
	if ent.LoggerName != "" {
		event["logger"] = ent.LoggerName
	}
	if captured != nil {
		event[excInfoKey] = captured
	}

	for _, p := range c.procs {
		event = p(ent.LoggerName, ent.Level.String(), event)
	}

	if ent.Stack != "" {
		event["stack"] = ent.Stack
	}

	line, err := c.render(event)
	if err != nil {
		return err
	}
	_, err = c.out.Write(line)
	return err
}

// Sync flushes the sinks.
func (c *pipelineCore) Sync() error {
	return c.out.Sync()
}

// addField encodes one field, diverting error values to the captured slot.
func addField(enc *zapcore.MapObjectEncoder, f zapcore.Field, captured error) error {
	if f.Type == zapcore.ErrorType {
		if err, ok := f.Interface.(error); ok && err != nil {
			return err
		}
	}
	f.AddTo(enc)
	return captured
}

// renderJSON renders the event as a single JSON object per line.
func renderJSON(event map[string]any) ([]byte, error) {
	line, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return append(line, '\n'), nil
}

// ANSI colors for the console renderer.
var levelColors = map[string]string{
	"DEBUG":  "\x1b[36m",
	"INFO":   "\x1b[32m",
	"WARN":   "\x1b[33m",
	"ERROR":  "\x1b[31m",
	"DPANIC": "\x1b[31m",
	"PANIC":  "\x1b[31m",
	"FATAL":  "\x1b[31m",
}

const colorReset = "\x1b[0m"

// renderConsole renders a human-readable line: ISO timestamp, colorized
// level, message, then the remaining fields as sorted key=value pairs.
func renderConsole(event map[string]any) ([]byte, error) {
	var b strings.Builder

	if ts, ok := event["timestamp"].(string); ok {
		b.WriteString(ts)
		b.WriteByte(' ')
	}
	level, _ := event["level"].(string)
	if color, ok := levelColors[level]; ok {
		fmt.Fprintf(&b, "[%s%-5s%s] ", color, level, colorReset)
	} else {
		fmt.Fprintf(&b, "[%-5s] ", level)
	}
	fmt.Fprintf(&b, "%v", event["event"])

	keys := make([]string, 0, len(event))
	for k := range event {
		switch k {
		case "timestamp", "level", "event":
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, event[k])
	}
	b.WriteByte('\n')

	return []byte(b.String()), nil
}
