package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Level describes severity of log message.
type Level = zerolog.Level

// ParseLevel converts string to Level, defaulting to info.
func ParseLevel(v string) Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(v)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Logger is a thin wrapper around zerolog with printf-style helpers.
type Logger struct {
	zl     zerolog.Logger
	closer io.Closer
}

// New creates a configured logger. An empty path logs to stdout; format
// "json" emits one JSON object per line, anything else is human readable.
func New(path, format string, level Level) (*Logger, error) {
	var output io.Writer = os.Stdout
	var closer io.Closer
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		output = f
		closer = f
	}
	return newLogger(output, format, level, closer), nil
}

// NewWriter builds a logger writing to w.
func NewWriter(w io.Writer, format string, level Level) *Logger {
	return newLogger(w, format, level, nil)
}

func newLogger(w io.Writer, format string, level Level, closer io.Closer) *Logger {
	if format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: closer != nil}
	}
	zl := zerolog.New(w).Level(level).With().Timestamp().Str("component", "printaudit").Logger()
	return &Logger{zl: zl, closer: closer}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// With returns a child logger carrying an extra field.
func (l *Logger) With(key string, value interface{}) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

// Infof logs informational messages.
func (l *Logger) Infof(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.zl.Info().Msgf(format, args...)
}

// Debugf logs verbose diagnostic messages.
func (l *Logger) Debugf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.zl.Debug().Msgf(format, args...)
}

// Warnf logs recoverable problems.
func (l *Logger) Warnf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.zl.Warn().Msgf(format, args...)
}

// Errorf logs errors.
func (l *Logger) Errorf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.zl.Error().Msgf(format, args...)
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
