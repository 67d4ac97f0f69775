// Package logs implements the small leveled-logging backend that the
// node's per-subsystem loggers are built from: a Backend fans log
// lines out to a set of io.Writer destinations, and each subsystem
// gets its own tagged Logger sharing that backend.
package logs

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level is a logging severity level.
type Level uint32

// Log levels, from most to least verbose.
const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelCritical
	LevelOff
)

var levelNames = map[Level]string{
	LevelTrace:    "TRC",
	LevelDebug:    "DBG",
	LevelInfo:     "INF",
	LevelWarn:     "WRN",
	LevelError:    "ERR",
	LevelCritical: "CRT",
}

// BackendWriter is a destination for log lines, optionally filtered by
// minimum level.
type BackendWriter struct {
	w        io.Writer
	minLevel Level
}

// NewAllLevelsBackendWriter writes every log line to w.
func NewAllLevelsBackendWriter(w io.Writer) *BackendWriter {
	return &BackendWriter{w: w, minLevel: LevelTrace}
}

// NewErrorBackendWriter writes only Error and above to w.
func NewErrorBackendWriter(w io.Writer) *BackendWriter {
	return &BackendWriter{w: w, minLevel: LevelError}
}

// Backend fans a formatted log line out to its writers.
type Backend struct {
	mtx     sync.Mutex
	writers []*BackendWriter
}

// NewBackend creates a Backend writing to the given writers.
func NewBackend(writers []*BackendWriter) *Backend {
	return &Backend{writers: writers}
}

// Logger returns a tagged Logger sharing this backend.
func (b *Backend) Logger(subsystemTag string) *Logger {
	return &Logger{backend: b, tag: subsystemTag, level: LevelInfo}
}

func (b *Backend) write(level Level, tag, msg string) {
	line := fmt.Sprintf("%s [%s] %s %s\n", time.Now().UTC().Format("2006-01-02 15:04:05.000"), levelNames[level], tag, msg)
	b.mtx.Lock()
	defer b.mtx.Unlock()
	for _, w := range b.writers {
		if level >= w.minLevel {
			_, _ = io.WriteString(w.w, line)
		}
	}
}

// Close releases any resources held by the backend's writers that
// support it (e.g. rotators).
func (b *Backend) Close() {
	for _, w := range b.writers {
		if c, ok := w.w.(io.Closer); ok {
			_ = c.Close()
		}
	}
}

// Logger is a single subsystem's handle onto a shared Backend.
type Logger struct {
	backend *Backend
	tag     string
	level   Level
}

// SetLevel sets the minimum level this logger emits.
func (l *Logger) SetLevel(level Level) {
	l.level = level
}

// Backend returns the logger's shared backend.
func (l *Logger) Backend() *Backend {
	return l.backend
}

func (l *Logger) log(level Level, msg string) {
	if level < l.level {
		return
	}
	l.backend.write(level, l.tag, msg)
}

// Trace logs at trace level.
func (l *Logger) Trace(msg string) { l.log(LevelTrace, msg) }

// Tracef logs a formatted message at trace level.
func (l *Logger) Tracef(format string, args ...interface{}) { l.log(LevelTrace, fmt.Sprintf(format, args...)) }

// Debugf logs a formatted message at debug level.
func (l *Logger) Debugf(format string, args ...interface{}) { l.log(LevelDebug, fmt.Sprintf(format, args...)) }

// Infof logs a formatted message at info level.
func (l *Logger) Infof(format string, args ...interface{}) { l.log(LevelInfo, fmt.Sprintf(format, args...)) }

// Info logs a message at info level.
func (l *Logger) Info(msg string) { l.log(LevelInfo, msg) }

// Warnf logs a formatted message at warn level.
func (l *Logger) Warnf(format string, args ...interface{}) { l.log(LevelWarn, fmt.Sprintf(format, args...)) }

// Errorf logs a formatted message at error level.
func (l *Logger) Errorf(format string, args ...interface{}) { l.log(LevelError, fmt.Sprintf(format, args...)) }

// Criticalf logs a formatted message at critical level.
func (l *Logger) Criticalf(format string, args ...interface{}) {
	l.log(LevelCritical, fmt.Sprintf(format, args...))
}

// StdoutOnlyBackend is a convenience backend for tests and tools that
// don't need file rotation.
func StdoutOnlyBackend() *Backend {
	return NewBackend([]*BackendWriter{NewAllLevelsBackendWriter(os.Stdout)})
}
