// Package logging builds the slog loggers used by the bot.
//
// Console output goes through tint. When a log directory is configured the
// same records are also written to a lumberjack-rotated file, without colour.
// slog has no fatal level, so this package defines LevelFatal and renders it
// as FTL (tint) or FATAL (any other handler).
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelFatal sits above slog.LevelError. Logging at this level never exits.
const LevelFatal = slog.Level(12)

const defaultFileName = "guildbot.log"

// Options controls where and how much the logger writes.
type Options struct {
	Level string

	Dir        string
	FileName   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Writer replaces os.Stdout as the console sink.
	Writer    io.Writer
	NoColor   bool
	AddSource bool
}

// New returns a logger and a close function for the rotated file, if any.
func New(opts Options) (*slog.Logger, func() error, error) {
	console := opts.Writer
	if console == nil {
		console = os.Stdout
	}

	noop := func() error { return nil }
	if opts.Dir == "" {
		return slog.New(newHandler(console, opts, opts.NoColor)), noop, nil
	}

	if opts.MaxSizeMB <= 0 || opts.MaxBackups < 0 || opts.MaxAgeDays < 0 {
		return nil, noop, fmt.Errorf("invalid log config: size=%d backups=%d age_days=%d", opts.MaxSizeMB, opts.MaxBackups, opts.MaxAgeDays)
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, noop, fmt.Errorf("create log dir: %w", err)
	}

	name := opts.FileName
	if name == "" {
		name = defaultFileName
	}
	file := &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, name),
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}

	logger := slog.New(newHandler(io.MultiWriter(console, file), opts, true))
	logger.Info("File logging enabled", "path", file.Filename)
	return logger, file.Close, nil
}

func newHandler(w io.Writer, opts Options, noColor bool) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:       ParseLevel(opts.Level),
		TimeFormat:  time.RFC3339,
		AddSource:   opts.AddSource,
		NoColor:     noColor,
		ReplaceAttr: replaceTintLevel,
	})
}

// ParseLevel maps a config string to a slog level. Unknown values mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "fatal":
		return LevelFatal
	default:
		return slog.LevelInfo
	}
}

// Fatal logs msg at LevelFatal.
func Fatal(ctx context.Context, logger *slog.Logger, msg string, args ...any) {
	if logger == nil {
		return
	}
	logger.Log(ctx, LevelFatal, msg, args...)
}

func replaceTintLevel(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.LevelKey {
		if level, ok := a.Value.Any().(slog.Level); ok && level >= LevelFatal {
			return slog.String(slog.LevelKey, "FTL")
		}
	}
	return a
}

// ReplaceLevel renders LevelFatal as FATAL for stdlib slog handlers.
func ReplaceLevel(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.LevelKey {
		if level, ok := a.Value.Any().(slog.Level); ok && level >= LevelFatal {
			return slog.String(slog.LevelKey, "FATAL")
		}
	}
	return a
}
