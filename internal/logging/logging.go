// ABOUTME: Root logger construction from the logging.* configuration keys
// ABOUTME: Colorized console output, JSON output, and optional rotated log files

package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Settings selects the handler built by New.
type Settings struct {
	Level      string // debug, info, warn, error
	Format     string // text, json
	File       string // optional path for a rotated JSON log
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Lookup is the slice of config.Tree that New needs.
type Lookup interface {
	GetString(path, def string) string
	GetInt(path string, def int) int
}

// SettingsFrom reads logging.* keys.
func SettingsFrom(cfg Lookup) Settings {
	return Settings{
		Level:      cfg.GetString("logging.level", "info"),
		Format:     cfg.GetString("logging.format", "text"),
		File:       cfg.GetString("logging.file", ""),
		MaxSizeMB:  cfg.GetInt("logging.max_size_mb", 50),
		MaxBackups: cfg.GetInt("logging.max_backups", 3),
		MaxAgeDays: cfg.GetInt("logging.max_age_days", 14),
	}
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds the root logger writing to w. The returned closer releases the
// rotated file, if one was opened.
func New(s Settings, w io.Writer) (*slog.Logger, io.Closer) {
	if w == nil {
		w = os.Stdout
	}
	level := ParseLevel(s.Level)
	opts := &slog.HandlerOptions{Level: level}

	var console slog.Handler
	if s.Format == "json" {
		console = slog.NewJSONHandler(w, opts)
	} else {
		console = NewColorHandler(w, level)
	}

	if s.File == "" {
		return slog.New(console), nopCloser{}
	}

	rotator := &lumberjack.Logger{
		Filename:   s.File,
		MaxSize:    s.MaxSizeMB,
		MaxBackups: s.MaxBackups,
		MaxAge:     s.MaxAgeDays,
		Compress:   true,
	}
	file := slog.NewJSONHandler(rotator, opts)
	return slog.New(fanout{console, file}), rotator
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// fanout sends every record to each handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
