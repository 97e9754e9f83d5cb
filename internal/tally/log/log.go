package log

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blueledger/tally-go/internal/tally/contextx"
)

// Level is a log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a config string to a Level. Unknown strings fall back to INFO.
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

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// Field is a structured key/value pair attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

// KV creates a Field.
func KV(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Entry is the wire shape of one log line in JSON format.
type Entry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	UserID    string                 `json:"user_id,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
}

// Logger is a leveled logger with structured fields. Request, user and
// session IDs are pulled from the context when present.
type Logger struct {
	mu     sync.Mutex
	out    io.Writer
	level  Level
	format string // "text" or "json"
}

// New creates a Logger writing to stdout.
func New(level, format string) *Logger {
	return &Logger{
		out:    os.Stdout,
		level:  ParseLevel(level),
		format: format,
	}
}

// NewTo creates a Logger writing to w.
func NewTo(w io.Writer, level, format string) *Logger {
	return &Logger{out: w, level: ParseLevel(level), format: format}
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelDebug, msg, fields...)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelInfo, msg, fields...)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelWarn, msg, fields...)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelError, msg, fields...)
}

func (l *Logger) log(ctx context.Context, level Level, msg string, fields ...Field) {
	if level < l.level {
		return
	}

	entry := Entry{
		Timestamp: time.Now(),
		Level:     level.String(),
		Message:   msg,
	}
	if id, ok := contextx.GetRequestID(ctx); ok {
		entry.RequestID = id
	}
	if id, ok := contextx.GetUserID(ctx); ok {
		entry.UserID = id
	}
	if id, ok := contextx.GetSessionID(ctx); ok {
		entry.SessionID = id
	}
	if len(fields) > 0 {
		entry.Fields = make(map[string]interface{}, len(fields))
		for _, f := range fields {
			entry.Fields[f.Key] = f.Value
		}
	}

	var line string
	if l.format == "json" {
		b, err := json.Marshal(entry)
		if err != nil {
			line = fmt.Sprintf("log marshal failed: %v", err)
		} else {
			line = string(b)
		}
	} else {
		line = formatText(entry)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, line)
}

func formatText(entry Entry) string {
	var b strings.Builder
	b.WriteString(entry.Timestamp.Format("2006-01-02 15:04:05"))
	b.WriteString(" [")
	b.WriteString(entry.Level)
	b.WriteString("] ")
	if entry.RequestID != "" {
		fmt.Fprintf(&b, "[%s] ", entry.RequestID)
	}
	if entry.UserID != "" {
		fmt.Fprintf(&b, "user:%s ", entry.UserID)
	}
	if entry.SessionID != "" {
		fmt.Fprintf(&b, "session:%s ", entry.SessionID)
	}
	b.WriteString(entry.Message)

	if len(entry.Fields) > 0 {
		// Stable key order keeps text logs diffable.
		keys := make([]string, 0, len(entry.Fields))
		for k := range entry.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" |")
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, entry.Fields[k])
		}
	}
	return b.String()
}

// dateRotateWriter appends to <filename>.<YYYY-MM-DD>, rolling to a new file
// when the date changes.
type dateRotateWriter struct {
	filename string
	file     *os.File
	lastDate string
	mu       sync.Mutex
}

// NewWithFileRotation creates a Logger writing JSON lines to a date-rotated
// file.
func NewWithFileRotation(level, filename string) (*Logger, error) {
	w := &dateRotateWriter{filename: filename}
	if err := w.rotate(time.Now()); err != nil {
		return nil, err
	}
	return &Logger{out: w, level: ParseLevel(level), format: "json"}, nil
}

func (w *dateRotateWriter) rotate(now time.Time) error {
	date := now.Format("2006-01-02")
	if w.file != nil {
		if w.lastDate == date {
			return nil
		}
		w.file.Close()
	}
	f, err := os.OpenFile(fmt.Sprintf("%s.%s", w.filename, date), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	w.file = f
	w.lastDate = date
	return nil
}

func (w *dateRotateWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.rotate(time.Now()); err != nil {
		return 0, err
	}
	return w.file.Write(p)
}

var (
	globalLogger *Logger
	globalOnce   sync.Once
)

// Initialize sets up the process-wide logger once.
func Initialize(level, format string) *Logger {
	globalOnce.Do(func() {
		globalLogger = New(level, format)
	})
	return globalLogger
}

// GetLogger returns the process-wide logger, or a default INFO text logger if
// Initialize was never called.
func GetLogger() *Logger {
	if globalLogger == nil {
		return Initialize("INFO", "text")
	}
	return globalLogger
}
