package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// testSink は TestLogger とその子ロガーが共有する JSON Lines バッファ
type testSink struct {
	mu  sync.Mutex
	buf *bytes.Buffer
}

func (s *testSink) write(entry map[string]interface{}) {
	line, err := json.Marshal(entry)
	if err != nil {
		line, _ = json.Marshal(map[string]interface{}{"level": "ERROR", "message": "unencodable log entry: " + err.Error()})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Write(line)
	s.buf.WriteByte('\n')
}

func (s *testSink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// TestLogger records every entry as one JSON line in memory. Child loggers
// created by With write to the same buffer.
type TestLogger struct {
	sink   *testSink
	level  *Level
	fields map[string]interface{}
}

// NewTestLogger returns a logger that drops records below level, and the
// buffer it writes to.
func NewTestLogger(level Level) (*TestLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return &TestLogger{
		sink:   &testSink{buf: buf},
		level:  &level,
		fields: map[string]interface{}{},
	}, buf
}

func (t *TestLogger) Debug(msg string, fields ...any) { t.log(LevelDebug, msg, fields) }
func (t *TestLogger) Info(msg string, fields ...any)  { t.log(LevelInfo, msg, fields) }
func (t *TestLogger) Warn(msg string, fields ...any)  { t.log(LevelWarn, msg, fields) }
func (t *TestLogger) Error(msg string, fields ...any) { t.log(LevelError, msg, fields) }

// With returns a child logger; the parent's fields are not modified.
func (t *TestLogger) With(fields ...any) Logger {
	child := &TestLogger{
		sink:   t.sink,
		level:  t.level,
		fields: make(map[string]interface{}, len(t.fields)),
	}
	for k, v := range t.fields {
		child.fields[k] = v
	}
	putFields(child.fields, normalizeFields(fields))
	return child
}

// Enabled implements Logger.Enabled.
func (t *TestLogger) Enabled(_ context.Context, level Level) bool {
	return level >= *t.level
}

func (t *TestLogger) log(level Level, msg string, fields []any) {
	if level < *t.level {
		return
	}
	entry := map[string]interface{}{
		"level":   level.String(),
		"message": msg,
	}
	for k, v := range t.fields {
		entry[k] = v
	}
	putFields(entry, normalizeFields(fields))
	t.sink.write(entry)
}

// putFields はキーと値の組を dst に入れる。error は文字列にする
func putFields(dst map[string]interface{}, fields []any) {
	for i := 0; i+1 < len(fields); i += 2 {
		v := fields[i+1]
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		dst[fmt.Sprint(fields[i])] = v
	}
}

// GetLogEntries decodes the captured lines. Numbers come back as float64.
func (t *TestLogger) GetLogEntries() ([]map[string]interface{}, error) {
	var entries []map[string]interface{}
	for _, line := range strings.Split(t.sink.String(), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ContainsMessage reports whether any captured line contains message.
func (t *TestLogger) ContainsMessage(message string) bool {
	return strings.Contains(t.sink.String(), message)
}

// ContainsField reports whether some entry has key == value.
func (t *TestLogger) ContainsField(key string, value interface{}) bool {
	entries, err := t.GetLogEntries()
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if v, ok := entry[key]; ok && v == value {
			return true
		}
	}
	return false
}

// TestLoggerProvider hands out TestLogger children tagged with ComponentKey.
type TestLoggerProvider struct {
	root *TestLogger
}

// NewTestLoggerProvider returns a provider for SetProvider and the root
// logger whose buffer receives every component's records.
func NewTestLoggerProvider(level Level) (*TestLoggerProvider, *TestLogger) {
	root, _ := NewTestLogger(level)
	return &TestLoggerProvider{root: root}, root
}

func (p *TestLoggerProvider) GetLogger() Logger { return p.root }

func (p *TestLoggerProvider) GetLoggerWithName(name string) Logger {
	return p.root.With(ComponentKey, name)
}

// SetLevel changes the level of the root and of every child.
func (p *TestLoggerProvider) SetLevel(level Level) {
	*p.root.level = level
}
