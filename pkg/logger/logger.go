// Package logger provides line-delimited JSON logging with typed fields.
// It is a leaf package and stays free of external dependencies.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level is the minimum severity a logger will emit.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// Field is one key-value pair attached to a log line.
type Field struct {
	Key   string
	Value any
}

func F(key string, value any) Field   { return Field{key, value} }
func String(key, v string) Field      { return Field{key, v} }
func Int(key string, v int) Field     { return Field{key, v} }
func Int64(key string, v int64) Field { return Field{key, v} }
func Bool(key string, v bool) Field   { return Field{key, v} }
func Any(key string, v any) Field     { return Field{key, v} }

func Duration(key string, v time.Duration) Field { return Field{key, v.String()} }

// Err attaches the error message under the "error" key. A nil error
// produces an explicit null, which keeps log queries uniform.
func Err(err error) Field {
	if err == nil {
		return Field{"error", nil}
	}
	return Field{"error", err.Error()}
}

// Domain field helpers so every package logs identifiers under the
// same keys.
func LearnerID(id string) Field { return String("learner_id", id) }
func LessonID(id string) Field  { return String("lesson_id", id) }
func CourseID(id string) Field  { return String("course_id", id) }
func BadgeID(id string) Field   { return String("badge_id", id) }
func XPAmount(xp int) Field     { return Int("xp_amount", xp) }
func StreakDays(d int) Field    { return Int("streak_days", d) }

// Logger writes JSON lines to a single writer. Loggers derived with
// With share the writer and its mutex, so output from all of them
// interleaves safely.
type Logger struct {
	out       *lockedWriter
	level     Level
	bound     []Field
	addCaller bool
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) writeLine(line []byte) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	lw.w.Write(line)
	lw.w.Write([]byte{'\n'})
}

// Options configures a Logger.
type Options struct {
	Output    io.Writer // defaults to os.Stdout
	Level     Level
	AddCaller bool
}

// New creates a Logger.
func New(opts Options) *Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Logger{
		out:       &lockedWriter{w: opts.Output},
		level:     opts.Level,
		addCaller: opts.AddCaller,
	}
}

// Default returns an info-level stdout logger with caller annotation.
func Default() *Logger {
	return New(Options{Level: LevelInfo, AddCaller: true})
}

// With returns a Logger that includes fields on every line.
func (l *Logger) With(fields ...Field) *Logger {
	bound := make([]Field, 0, len(l.bound)+len(fields))
	bound = append(bound, l.bound...)
	bound = append(bound, fields...)
	return &Logger{out: l.out, level: l.level, bound: bound, addCaller: l.addCaller}
}

// WithLevel returns a Logger with a different minimum level.
func (l *Logger) WithLevel(level Level) *Logger {
	return &Logger{out: l.out, level: level, bound: l.bound, addCaller: l.addCaller}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.emit(LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.emit(LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.emit(LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.emit(LevelError, msg, fields) }

func (l *Logger) emit(level Level, msg string, fields []Field) {
	if level < l.level {
		return
	}

	entry := make(map[string]any, len(l.bound)+len(fields)+4)
	for _, f := range l.bound {
		entry[f.Key] = f.Value
	}
	for _, f := range fields {
		entry[f.Key] = f.Value
	}
	entry["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["level"] = level.String()
	entry["message"] = msg
	if l.addCaller {
		if caller := callerLocation(3); caller != "" {
			entry["caller"] = caller
		}
	}

	line, err := json.Marshal(entry)
	if err != nil {
		// A field carried an unmarshalable value; keep the message.
		line = []byte(fmt.Sprintf(`{"level":%q,"message":%q}`, level.String(), msg))
	}
	l.out.writeLine(line)
}

func callerLocation(skip int) string {
	_, file, lineNo, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	if idx := strings.LastIndexByte(file, '/'); idx >= 0 {
		file = file[idx+1:]
	}
	return fmt.Sprintf("%s:%d", file, lineNo)
}
