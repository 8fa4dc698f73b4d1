package logger

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Entry is one captured log call
type Entry struct {
	Level   string
	Message string
	Fields  map[string]interface{}
	Err     error
}

// recorder is the shared sink behind a TestLogger and all loggers
// derived from it via WithField/WithFields/WithError
type recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *recorder) append(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

// TestLogger captures log calls in memory so tests can assert on the
// level, message and fields a code path emitted. Derived loggers share
// the same recorder, so context fields added with WithField land in the
// captured entries.
type TestLogger struct {
	rec    *recorder
	zl     *zerolog.Logger
	fields map[string]interface{}
	err    error
}

// NewTestLogger creates a capturing logger
func NewTestLogger() *TestLogger {
	nop := zerolog.Nop()
	return &TestLogger{rec: &recorder{}, zl: &nop}
}

// Entries returns a copy of everything logged so far
func (l *TestLogger) Entries() []Entry {
	l.rec.mu.Lock()
	defer l.rec.mu.Unlock()
	out := make([]Entry, len(l.rec.entries))
	copy(out, l.rec.entries)
	return out
}

// ByLevel returns the captured entries at one level
func (l *TestLogger) ByLevel(level string) []Entry {
	var out []Entry
	for _, e := range l.Entries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// Has reports whether a message with the given text was logged
func (l *TestLogger) Has(message string) bool {
	for _, e := range l.Entries() {
		if e.Message == message {
			return true
		}
	}
	return false
}

// Clear drops all captured entries
func (l *TestLogger) Clear() {
	l.rec.mu.Lock()
	defer l.rec.mu.Unlock()
	l.rec.entries = l.rec.entries[:0]
}

func (l *TestLogger) log(level, msg string, fields map[string]interface{}) {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	l.rec.append(Entry{Level: level, Message: msg, Fields: merged, Err: l.err})
}

func (l *TestLogger) derive(fields map[string]interface{}, err error) *TestLogger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	if err == nil {
		err = l.err
	}
	return &TestLogger{rec: l.rec, zl: l.zl, fields: merged, err: err}
}

func (l *TestLogger) Debug(msg string) { l.log("debug", msg, nil) }
func (l *TestLogger) Info(msg string)  { l.log("info", msg, nil) }
func (l *TestLogger) Warn(msg string)  { l.log("warn", msg, nil) }
func (l *TestLogger) Error(msg string) { l.log("error", msg, nil) }
func (l *TestLogger) Fatal(msg string) { l.log("fatal", msg, nil) }

func (l *TestLogger) DebugWithFields(msg string, fields map[string]interface{}) {
	l.log("debug", msg, fields)
}

func (l *TestLogger) InfoWithFields(msg string, fields map[string]interface{}) {
	l.log("info", msg, fields)
}

func (l *TestLogger) WarnWithFields(msg string, fields map[string]interface{}) {
	l.log("warn", msg, fields)
}

func (l *TestLogger) ErrorWithFields(msg string, fields map[string]interface{}) {
	l.log("error", msg, fields)
}

func (l *TestLogger) FatalWithFields(msg string, fields map[string]interface{}) {
	l.log("fatal", msg, fields)
}

func (l *TestLogger) WithField(key string, value interface{}) Logger {
	return l.derive(map[string]interface{}{key: value}, nil)
}

func (l *TestLogger) WithFields(fields map[string]interface{}) Logger {
	return l.derive(fields, nil)
}

func (l *TestLogger) WithError(err error) Logger {
	return l.derive(nil, err)
}

func (l *TestLogger) WithContext(ctx context.Context) Logger { return l }

func (l *TestLogger) GetZerolog() *zerolog.Logger { return l.zl }
