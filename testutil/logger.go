package testutil

import (
	"sync"

	"github.com/felixgeelhaar/mcp-client-go/logging"
)

// Entry is one recorded log call.
type Entry struct {
	Level   string
	Message string
	Fields  []logging.Field
}

// Field returns the value of the named field and whether it was set.
func (e Entry) Field(key string) (any, bool) {
	for _, f := range e.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Logger records log calls. It is safe for concurrent use.
type Logger struct {
	mu      sync.Mutex
	entries []Entry
}

// NewLogger creates a recording logger.
func NewLogger() *Logger {
	return &Logger{}
}

func (l *Logger) Info(msg string, fields ...logging.Field)  { l.record("info", msg, fields) }
func (l *Logger) Error(msg string, fields ...logging.Field) { l.record("error", msg, fields) }
func (l *Logger) Debug(msg string, fields ...logging.Field) { l.record("debug", msg, fields) }
func (l *Logger) Warn(msg string, fields ...logging.Field)  { l.record("warn", msg, fields) }

func (l *Logger) record(level, msg string, fields []logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Level: level, Message: msg, Fields: fields})
}

// Entries returns the recorded entries.
func (l *Logger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Find returns the first entry with the given level and message.
func (l *Logger) Find(level, msg string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.Level == level && e.Message == msg {
			return e, true
		}
	}
	return Entry{}, false
}

// Has reports whether an entry with the given level and message exists.
func (l *Logger) Has(level, msg string) bool {
	_, ok := l.Find(level, msg)
	return ok
}
