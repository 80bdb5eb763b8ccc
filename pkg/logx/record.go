package logx

import "time"

// TimestampFormat is ISO-8601 with millisecond precision in UTC.
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// UnknownFile is used when the origin of a log call cannot be resolved.
const UnknownFile = "unknown file"

// Record is the structured unit handed to transports. A fresh Record is
// built for every log call and never mutated afterwards.
type Record struct {
	Timestamp string `json:"timestamp"`
	Level     Level  `json:"level"`
	LevelName string `json:"levelName"`
	Message   string `json:"message"`
	FilePath  string `json:"filePath"`
	Meta      any    `json:"meta,omitempty"`
	Stack     string `json:"stack,omitempty"`
}

// Fields is the conventional meta payload: a flat set of named values.
type Fields map[string]any

// Transport receives records from a Logger.
//
// Log may be called concurrently for different records. A returned error
// (or a panic) is reported by the Logger on its fallback output; it never
// reaches the code that emitted the record.
type Transport interface {
	Log(rec Record) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(rec Record) error

func (f TransportFunc) Log(rec Record) error { return f(rec) }

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}
