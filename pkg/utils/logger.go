package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is the interface for logging.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

// sink is the output shared by a logger and the loggers derived from it.
type sink struct {
	mu     sync.Mutex
	out    io.Writer
	clock  Clock
	closer io.Closer
}

// DefaultLogger writes "[time] [LEVEL] k=v msg" lines.
type DefaultLogger struct {
	sink   *sink
	level  LogLevel
	fields []field
}

type field struct {
	key   string
	value interface{}
}

// NewDefaultLogger creates a logger writing to output.
func NewDefaultLogger(level LogLevel, output io.Writer) *DefaultLogger {
	return &DefaultLogger{sink: &sink{out: output, clock: &RealClock{}}, level: level}
}

// RotateOptions configures file rotation for NewFileLogger.
type RotateOptions struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// NewFileLogger creates a logger that appends to a size-rotated file.
func NewFileLogger(level LogLevel, logPath string, rotate RotateOptions) (*DefaultLogger, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	if rotate.MaxSizeMB <= 0 {
		rotate.MaxSizeMB = 100
	}
	lj := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    rotate.MaxSizeMB,
		MaxBackups: rotate.MaxBackups,
		MaxAge:     rotate.MaxAgeDays,
		Compress:   rotate.Compress,
	}
	l := NewDefaultLogger(level, lj)
	l.sink.closer = lj
	return l, nil
}

// SetClock replaces the time source, for tests.
func (l *DefaultLogger) SetClock(c Clock) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.clock = c
}

// SetLevel sets the log level.
func (l *DefaultLogger) SetLevel(level LogLevel) {
	l.level = level
}

// Close releases the underlying file, if any.
func (l *DefaultLogger) Close() error {
	if l.sink.closer == nil {
		return nil
	}
	return l.sink.closer.Close()
}

// Debug logs a debug message.
func (l *DefaultLogger) Debug(msg string, args ...interface{}) {
	l.log(LevelDebug, msg, args...)
}

// Info logs an info message.
func (l *DefaultLogger) Info(msg string, args ...interface{}) {
	l.log(LevelInfo, msg, args...)
}

// Warn logs a warning message.
func (l *DefaultLogger) Warn(msg string, args ...interface{}) {
	l.log(LevelWarn, msg, args...)
}

// Error logs an error message.
func (l *DefaultLogger) Error(msg string, args ...interface{}) {
	l.log(LevelError, msg, args...)
}

// WithField creates a derived logger carrying key=value.
func (l *DefaultLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields creates a derived logger carrying the given fields. Keys are
// kept sorted so lines are stable.
func (l *DefaultLogger) WithFields(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for _, f := range l.fields {
		merged[f.key] = f.value
	}
	for k, v := range fields {
		merged[k] = v
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := &DefaultLogger{sink: l.sink, level: l.level, fields: make([]field, len(keys))}
	for i, k := range keys {
		out.fields[i] = field{key: k, value: merged[k]}
	}
	return out
}

func (l *DefaultLogger) log(level LogLevel, msg string, args ...interface{}) {
	if level < l.level {
		return
	}

	var b strings.Builder
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	fmt.Fprintf(&b, "[%s] [%s]", l.sink.clock.Now().Format("2006-01-02 15:04:05.000"), level)
	for _, f := range l.fields {
		fmt.Fprintf(&b, " %s=%v", f.key, f.value)
	}
	b.WriteByte(' ')
	if len(args) > 0 {
		fmt.Fprintf(&b, msg, args...)
	} else {
		b.WriteString(msg)
	}
	b.WriteByte('\n')

	_, _ = io.WriteString(l.sink.out, b.String())
}

// ParseLogLevel parses a string to LogLevel.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

var (
	globalMu     sync.RWMutex
	globalLogger Logger = NewDefaultLogger(LevelInfo, os.Stderr)
)

// SetGlobalLogger sets the global logger.
func SetGlobalLogger(logger Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}

// GetGlobalLogger returns the global logger.
func GetGlobalLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// NullLogger discards everything.
type NullLogger struct{}

func (l *NullLogger) Debug(msg string, args ...interface{}) {}
func (l *NullLogger) Info(msg string, args ...interface{}) {}
func (l *NullLogger) Warn(msg string, args ...interface{}) {}
func (l *NullLogger) Error(msg string, args ...interface{}) {}

func (l *NullLogger) WithField(key string, value interface{}) Logger { return l }
func (l *NullLogger) WithFields(fields map[string]interface{}) Logger { return l }

// RecordingLogger keeps every line in memory. Tests use it to assert on
// diagnostics.
type RecordingLogger struct {
	rec    *recording
	fields map[string]interface{}
}

type recording struct {
	mu      sync.Mutex
	entries []LogEntry
}

// LogEntry is one recorded line.
type LogEntry struct {
	Level   LogLevel
	Message string
	Fields  map[string]interface{}
}

// NewRecordingLogger creates an empty recorder.
func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{rec: &recording{}}
}

func (l *RecordingLogger) record(level LogLevel, msg string, args ...interface{}) {
	l.rec.mu.Lock()
	defer l.rec.mu.Unlock()
	l.rec.entries = append(l.rec.entries, LogEntry{Level: level, Message: fmt.Sprintf(msg, args...), Fields: l.fields})
}

func (l *RecordingLogger) Debug(msg string, args ...interface{}) { l.record(LevelDebug, msg, args...) }
func (l *RecordingLogger) Info(msg string, args ...interface{}) { l.record(LevelInfo, msg, args...) }
func (l *RecordingLogger) Warn(msg string, args ...interface{}) { l.record(LevelWarn, msg, args...) }
func (l *RecordingLogger) Error(msg string, args ...interface{}) { l.record(LevelError, msg, args...) }

// WithField implements Logger.
func (l *RecordingLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields implements Logger. Derived loggers record into the same list.
func (l *RecordingLogger) WithFields(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &RecordingLogger{rec: l.rec, fields: merged}
}

// Entries returns the lines recorded at or above level.
func (l *RecordingLogger) Entries(level LogLevel) []LogEntry {
	l.rec.mu.Lock()
	defer l.rec.mu.Unlock()
	var out []LogEntry
	for _, e := range l.rec.entries {
		if e.Level >= level {
			out = append(out, e)
		}
	}
	return out
}
