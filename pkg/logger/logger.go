// Package logger builds the process-wide slog logger: JSON or text output,
// optional rotated log file, masking of sensitive attributes and error
// fan-out to Sentry.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	slogsentry "github.com/samber/slog-sentry/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	FormatJSON = "json"
	FormatText = "text"
)

// FileOptions configures the rotated log file. An empty Path disables it.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type Options struct {
	Level  string
	Format string
	File   FileOptions
	// Sentry forwards error records to the initialized Sentry hub.
	Sentry bool
	// Stdout overrides os.Stdout, mostly for tests.
	Stdout io.Writer
}

// Logger is a slog.Logger whose level can be changed at runtime.
type Logger struct {
	*slog.Logger

	level *slog.LevelVar
	file  io.Closer
}

// New creates a Logger from opts. An unknown level falls back to info.
func New(opts Options) *Logger {
	level := new(slog.LevelVar)
	if parsed, err := ParseLevel(opts.Level); err == nil {
		level.Set(parsed)
	}

	out := opts.Stdout
	if out == nil {
		out = os.Stdout
	}

	var file *lumberjack.Logger
	if opts.File.Path != "" {
		file = &lumberjack.Logger{
			Filename:   opts.File.Path,
			MaxSize:    opts.File.MaxSizeMB,
			MaxBackups: opts.File.MaxBackups,
			MaxAge:     opts.File.MaxAgeDays,
			Compress:   opts.File.Compress,
		}
		out = io.MultiWriter(out, file)
	}

	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, FormatText) {
		handler = slog.NewTextHandler(out, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(out, handlerOpts)
	}

	if opts.Sentry {
		handler = newFanoutHandler(handler, slogsentry.Option{Level: slog.LevelError}.NewSentryHandler())
	}

	l := &Logger{
		Logger: slog.New(NewMaskingHandler(handler)),
		level:  level,
	}
	if file != nil {
		l.file = file
	}

	return l
}

// SetLevel changes the minimum level of every handler built by New.
func (l *Logger) SetLevel(level string) error {
	parsed, err := ParseLevel(level)
	if err != nil {
		return err
	}
	l.level.Set(parsed)
	return nil
}

func (l *Logger) Level() slog.Level {
	return l.level.Level()
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ParseLevel maps debug, info, warn and error (case-insensitive) to slog levels.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}
