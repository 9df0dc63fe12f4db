// Package log writes JSON log lines tagged with the launch, project and
// transport of the session.
package log

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Fields identifies the launch a logger reports for.
// Every entry carries these as top-level fields.
type Fields struct {
	Launch    string
	Project   string
	Transport string
}

func (f Fields) zapFields() []zap.Field {
	out := []zap.Field{
		zap.String("launch", f.Launch),
		zap.String("transport", f.Transport),
	}
	if f.Project != "" {
		out = append(out, zap.String("project", f.Project))
	}
	return out
}

// Logger provides structured logging with launch context.
type Logger struct {
	zap    *zap.Logger
	fields Fields
	level  zap.AtomicLevel
}

// NewLogger creates a logger with launch context at debug level.
// Output defaults to os.Stderr.
func NewLogger(fields Fields) *Logger {
	return newLogger(fields, os.Stderr, zap.NewAtomicLevelAt(zapcore.DebugLevel))
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zap: zap.NewNop(), level: zap.NewAtomicLevelAt(zapcore.FatalLevel)}
}

// WithOutput returns a new logger with the same context and level writing to w.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	return newLogger(l.fields, w, l.level)
}

// SetLevel changes the minimum level ("debug", "info", "warn", "error").
// Loggers derived through WithOutput share the level.
func (l *Logger) SetLevel(name string) error {
	lvl, err := zapcore.ParseLevel(name)
	if err != nil {
		return fmt.Errorf("log level %q: %w", name, err)
	}
	l.level.SetLevel(lvl)
	return nil
}

func newLogger(fields Fields, w io.Writer, level zap.AtomicLevel) *Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(w),
		level,
	)

	return &Logger{
		zap:    zap.New(core).With(fields.zapFields()...),
		fields: fields,
		level:  level,
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields map[string]any) {
	l.zap.Debug(message, zap.Any("fields", fields))
}

// Info logs an info message.
func (l *Logger) Info(message string, fields map[string]any) {
	l.zap.Info(message, zap.Any("fields", fields))
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields map[string]any) {
	l.zap.Warn(message, zap.Any("fields", fields))
}

// Error logs an error message.
func (l *Logger) Error(message string, fields map[string]any) {
	l.zap.Error(message, zap.Any("fields", fields))
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}
