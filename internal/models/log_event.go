// Package models defines the core data structures shared across the agent.
package models

import (
	"encoding/json"
	"time"
)

// LogEvent is a single formatted log record in the shape the remote log
// store expects: a millisecond-precision timestamp plus the rendered message.
type LogEvent struct {
	// Timestamp is the event time in milliseconds since the Unix epoch.
	Timestamp int64 `json:"timestamp"`

	// Message is the fully rendered log line.
	Message string `json:"message"`
}

// NewLogEvent creates a LogEvent stamped with the given time.
func NewLogEvent(t time.Time, message string) LogEvent {
	return LogEvent{
		Timestamp: t.UnixMilli(),
		Message:   message,
	}
}

// Time converts the epoch-millis timestamp back to a time.Time in UTC.
func (e LogEvent) Time() time.Time {
	return time.UnixMilli(e.Timestamp).UTC()
}

// ToJSON serializes the LogEvent to JSON bytes.
func (e LogEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON deserializes a LogEvent from JSON bytes.
func FromJSON(data []byte) (LogEvent, error) {
	var event LogEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return LogEvent{}, err
	}
	return event, nil
}
