package logger

import (
	"strings"
	"sync"
)

// Entry is one captured log line.
type Entry struct {
	Level   string
	Message string
	Fields  map[string]interface{}
	Err     error
}

type testSink struct {
	mu      sync.Mutex
	entries []Entry
}

// TestLogger captures log entries for assertions in tests. With* derivatives
// share the parent's sink, so every entry is visible from the root logger.
type TestLogger struct {
	sink   *testSink
	fields map[string]interface{}
	err    error
}

// NewTestLogger creates a capturing logger for tests.
func NewTestLogger() *TestLogger {
	return &TestLogger{sink: &testSink{}}
}

func (l *TestLogger) record(level, msg string, fields map[string]interface{}) {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.entries = append(l.sink.entries, Entry{Level: level, Message: msg, Fields: merged, Err: l.err})
}

func (l *TestLogger) Debug(msg string) { l.record("DEBUG", msg, nil) }
func (l *TestLogger) Info(msg string)  { l.record("INFO", msg, nil) }
func (l *TestLogger) Warn(msg string)  { l.record("WARN", msg, nil) }
func (l *TestLogger) Error(msg string) { l.record("ERROR", msg, nil) }
func (l *TestLogger) Fatal(msg string) { l.record("FATAL", msg, nil) }

func (l *TestLogger) DebugWithFields(msg string, fields map[string]interface{}) {
	l.record("DEBUG", msg, fields)
}

func (l *TestLogger) InfoWithFields(msg string, fields map[string]interface{}) {
	l.record("INFO", msg, fields)
}

func (l *TestLogger) WarnWithFields(msg string, fields map[string]interface{}) {
	l.record("WARN", msg, fields)
}

func (l *TestLogger) ErrorWithFields(msg string, fields map[string]interface{}) {
	l.record("ERROR", msg, fields)
}

func (l *TestLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

func (l *TestLogger) WithFields(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &TestLogger{sink: l.sink, fields: merged, err: l.err}
}

func (l *TestLogger) WithError(err error) Logger {
	return &TestLogger{sink: l.sink, fields: l.fields, err: err}
}

// Entries returns a copy of all captured entries.
func (l *TestLogger) Entries() []Entry {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	out := make([]Entry, len(l.sink.entries))
	copy(out, l.sink.entries)
	return out
}

// EntriesByLevel returns all entries at the given level.
func (l *TestLogger) EntriesByLevel(level string) []Entry {
	var out []Entry
	for _, e := range l.Entries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// HasMessage reports whether any captured entry contains the given substring.
func (l *TestLogger) HasMessage(substr string) bool {
	for _, e := range l.Entries() {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}
